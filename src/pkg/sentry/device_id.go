package sentry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	uuid "github.com/satori/go.uuid"
)

const deviceIDFileName = "device_id"

// GetAnonymousDeviceID 匿名设备 ID，保存在用户缓存目录，进程内只读取一次
var GetAnonymousDeviceID = sync.OnceValue(func() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return newDeviceID()
	}
	return loadOrCreateDeviceID(filepath.Join(dir, "diskpulse", deviceIDFileName))
})

// loadOrCreateDeviceID 文件不存在或内容无效时生成新 ID 并尽量写回
func loadOrCreateDeviceID(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); isValidDeviceID(id) {
			return id
		}
	}
	id := newDeviceID()
	if os.MkdirAll(filepath.Dir(path), 0o755) == nil {
		_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
	}
	return id
}

// isValidDeviceID 只接受随机生成（V4）的 UUID
func isValidDeviceID(id string) bool {
	u, err := uuid.FromString(id)
	return err == nil && u.Version() == uuid.V4
}

func newDeviceID() string {
	return uuid.Must(uuid.NewV4()).String()
}
