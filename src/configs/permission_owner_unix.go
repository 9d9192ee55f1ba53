//go:build !windows

package configs

import (
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// ownerHints 比较文件所有者和当前用户
func ownerHints(info fs.FileInfo) []string {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	uid := os.Geteuid()
	hints := []string{fmt.Sprintf("文件所有者 UID = %d，当前进程 UID = %d", stat.Uid, uid)}
	switch {
	case uid == 0:
		// macOS 的隐私保护（文稿、桌面等目录）对 root 也生效
		hints = append(hints, "当前以 root 运行仍无法读取，可能是系统隐私保护限制了该目录，请把配置文件放到其他位置")
	case os.Getenv("SUDO_USER") == "" && stat.Uid == 0:
		hints = append(hints, "文件属于 root，请用 sudo 运行或修改文件所有者")
	}
	return hints
}
