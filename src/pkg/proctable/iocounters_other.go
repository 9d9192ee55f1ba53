//go:build !darwin

package proctable

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// readIOCounters 读取进程累计磁盘读写字节数（Linux 下来自 /proc/<pid>/io）
func readIOCounters(ctx context.Context, p *process.Process) (uint64, uint64, bool) {
	counters, err := p.IOCountersWithContext(ctx)
	if err != nil || counters == nil {
		return 0, 0, false
	}
	return counters.ReadBytes, counters.WriteBytes, true
}
