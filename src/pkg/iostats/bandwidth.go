//go:generate go run go.uber.org/mock/mockgen -source=bandwidth.go -destination=mock_test.go -package=iostats
package iostats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/diskpulse/diskpulse/src/pkg/proctable"
)

// ProcessTable 操作系统进程表
type ProcessTable interface {
	// Refresh 返回每个存活进程的累计读写字节数
	Refresh(ctx context.Context) ([]proctable.Sample, error)
	// Name 返回进程当前名称，进程不存在时 ok 为 false
	Name(pid int32) (name string, ok bool)
}

// previousReading 上一次采集时某进程的累计读写字节数
type previousReading struct {
	readBytes  uint64
	writeBytes uint64
}

// BandwidthCollector 进程带宽采集器。
// 由采集循环独占使用，内部不加锁。
type BandwidthCollector struct {
	table    ProcessTable
	previous map[int32]previousReading
}

// NewBandwidthCollector 创建带宽采集器
func NewBandwidthCollector(table ProcessTable) *BandwidthCollector {
	return &BandwidthCollector{
		table:    table,
		previous: make(map[int32]previousReading),
	}
}

// Prime 刷新一次进程表并记录当前累计值，不产生输出。
// 在第一次 Collect 之前调用，避免把进程整个生命周期的 I/O 算进第一个周期。
func (c *BandwidthCollector) Prime(ctx context.Context) error {
	samples, err := c.table.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("prime process table: %w", err)
	}
	for _, s := range samples {
		c.previous[s.PID] = previousReading{readBytes: s.ReadBytes, writeBytes: s.WriteBytes}
	}
	c.purge(samples)
	return nil
}

// Collect 刷新进程表，计算与上一次采集之间的读写速率。
// 只返回本周期有读写的进程，按总带宽降序排列。
func (c *BandwidthCollector) Collect(ctx context.Context, elapsed time.Duration) ([]ProcessIOStats, error) {
	samples, err := c.table.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh process table: %w", err)
	}

	var stats []ProcessIOStats
	for _, s := range samples {
		prev, ok := c.previous[s.PID]
		if !ok {
			// 第一次见到的进程用当前值作为基线，差值为 0
			prev = previousReading{readBytes: s.ReadBytes, writeBytes: s.WriteBytes}
		}
		readDelta := saturatingSub(s.ReadBytes, prev.readBytes)
		writeDelta := saturatingSub(s.WriteBytes, prev.writeBytes)
		c.previous[s.PID] = previousReading{readBytes: s.ReadBytes, writeBytes: s.WriteBytes}

		if readDelta == 0 && writeDelta == 0 {
			continue
		}
		stats = append(stats, ProcessIOStats{
			PID:        s.PID,
			Name:       s.Name,
			ReadBytes:  BytesPerSecondFromCount(readDelta, elapsed),
			WriteBytes: BytesPerSecondFromCount(writeDelta, elapsed),
		})
	}
	c.purge(samples)

	sortByBandwidth(stats)
	return stats, nil
}

// LookupProcessName 返回进程名，进程已退出时返回 ExitedProcessName
func (c *BandwidthCollector) LookupProcessName(pid int32) string {
	if name, ok := c.table.Name(pid); ok {
		return name
	}
	return ExitedProcessName
}

// purge 删除本次快照中不存在的进程记录
func (c *BandwidthCollector) purge(samples []proctable.Sample) {
	alive := make(map[int32]struct{}, len(samples))
	for _, s := range samples {
		alive[s.PID] = struct{}{}
	}
	for pid := range c.previous {
		if _, ok := alive[pid]; !ok {
			delete(c.previous, pid)
		}
	}
}

// saturatingSub 进程号被复用时累计值可能变小，此时差值按 0 处理
func saturatingSub(current, previous uint64) uint64 {
	if current < previous {
		return 0
	}
	return current - previous
}

func sortByBandwidth(stats []ProcessIOStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].TotalBandwidth() > stats[j].TotalBandwidth()
	})
}
