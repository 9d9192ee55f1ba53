// Package proctable 读取操作系统进程表：进程名与累计磁盘读写字节数
package proctable

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	defaultNameCacheSize = 4096
	defaultNameCacheTTL  = 10 * time.Minute
)

// Sample 一次刷新中单个进程的数据
type Sample struct {
	PID        int32
	Name       string
	ReadBytes  uint64 // 进程启动以来累计读取字节数
	WriteBytes uint64 // 进程启动以来累计写入字节数
}

// Options 进程表选项
type Options struct {
	NameCacheSize int
	NameCacheTTL  time.Duration
}

// OSTable 基于 gopsutil 的进程表。
// 只由采集循环所在的 goroutine 使用，不做并发保护。
type OSTable struct {
	names gcache.Cache // key: pid-createTime，进程号复用时会得到新的 key
	last  map[int32]Sample
}

// New 创建进程表
func New(opts Options) *OSTable {
	size := opts.NameCacheSize
	if size <= 0 {
		size = defaultNameCacheSize
	}
	ttl := opts.NameCacheTTL
	if ttl <= 0 {
		ttl = defaultNameCacheTTL
	}
	return &OSTable{
		names: gcache.New(size).LRU().Expiration(ttl).Build(),
		last:  make(map[int32]Sample),
	}
}

// Refresh 读取当前所有可访问进程的累计读写字节数。
// 无权限读取 I/O 计数的进程不会出现在结果中。
func (t *OSTable) Refresh(ctx context.Context) ([]Sample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	samples := make([]Sample, 0, len(procs))
	current := make(map[int32]Sample, len(procs))
	for _, p := range procs {
		readBytes, writeBytes, ok := readIOCounters(ctx, p)
		if !ok {
			continue
		}
		s := Sample{
			PID:        p.Pid,
			Name:       t.nameOf(ctx, p),
			ReadBytes:  readBytes,
			WriteBytes: writeBytes,
		}
		samples = append(samples, s)
		current[p.Pid] = s
	}
	t.last = current
	return samples, nil
}

// Name 返回进程当前的名称，进程不存在时 ok 为 false。
// 先查最近一次刷新的结果，查不到再直接询问操作系统（进程可能是刷新后才启动的）。
func (t *OSTable) Name(pid int32) (string, bool) {
	if s, ok := t.last[pid]; ok {
		return s.Name, true
	}
	ctx := context.Background()
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", false
	}
	name := t.nameOf(ctx, p)
	if name == "" {
		return "", false
	}
	return name, true
}

func (t *OSTable) nameOf(ctx context.Context, p *process.Process) string {
	createTime, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		name, _ := p.NameWithContext(ctx)
		return name
	}
	key := fmt.Sprintf("%d-%d", p.Pid, createTime)
	if v, err := t.names.Get(key); err == nil {
		if name, ok := v.(string); ok {
			return name
		}
	}
	name, err := p.NameWithContext(ctx)
	if err != nil || name == "" {
		return name
	}
	_ = t.names.Set(key, name)
	return name
}
