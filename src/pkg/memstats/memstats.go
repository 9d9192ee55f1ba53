// Package memstats 统计 diskpulse 自身的内存使用
package memstats

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

// SelfMemoryStats 单位都是字节。RSS 和 VMS 来自操作系统，读取失败时为 0；
// 其余来自 Go 运行时。
type SelfMemoryStats struct {
	RSS        uint64 `json:"rss"`
	VMS        uint64 `json:"vms"`
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

var selfPID = int32(os.Getpid())

// GetSelfMemory 长时间运行时用来确认计数表和名称缓存没有无限增长
func GetSelfMemory() SelfMemoryStats {
	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)
	out := SelfMemoryStats{
		Alloc:      rt.Alloc,
		TotalAlloc: rt.TotalAlloc,
		Sys:        rt.Sys,
		NumGC:      rt.NumGC,
	}
	proc, err := process.NewProcess(selfPID)
	if err != nil {
		return out
	}
	if info, err := proc.MemoryInfo(); err == nil && info != nil {
		out.RSS, out.VMS = info.RSS, info.VMS
	}
	return out
}
