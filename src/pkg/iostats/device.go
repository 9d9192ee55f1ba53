package iostats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
)

// DeviceIOStats 单个块设备在一个采样周期内的 I/O 统计
type DeviceIOStats struct {
	Device     string         `json:"device"`
	ReadBytes  BytesPerSecond `json:"read_bytes_per_sec"`
	WriteBytes BytesPerSecond `json:"write_bytes_per_sec"`
	ReadOps    OpsPerSecond   `json:"read_ops_per_sec"`
	WriteOps   OpsPerSecond   `json:"write_ops_per_sec"`
	// 平均延迟（毫秒/次），平台不提供耗时或本周期没有操作时为 0
	AvgReadLatency  float64 `json:"avg_read_latency_ms"`
	AvgWriteLatency float64 `json:"avg_write_latency_ms"`
}

// TotalBandwidth 读写带宽之和
func (s DeviceIOStats) TotalBandwidth() BytesPerSecond {
	return s.ReadBytes.Add(s.WriteBytes)
}

type deviceCountersFunc func(ctx context.Context) (map[string]disk.IOCountersStat, error)

// DeviceCollector 系统级磁盘 I/O 采集器，不需要 root 权限。
// 和 BandwidthCollector 一样只由采集循环使用。
type DeviceCollector struct {
	counters deviceCountersFunc
	last     map[string]disk.IOCountersStat
}

// NewDeviceCollector 创建磁盘设备采集器
func NewDeviceCollector() *DeviceCollector {
	return newDeviceCollector(func(ctx context.Context) (map[string]disk.IOCountersStat, error) {
		return disk.IOCountersWithContext(ctx)
	})
}

func newDeviceCollector(counters deviceCountersFunc) *DeviceCollector {
	return &DeviceCollector{
		counters: counters,
		last:     make(map[string]disk.IOCountersStat),
	}
}

// Prime 记录当前累计值作为基线
func (c *DeviceCollector) Prime(ctx context.Context) error {
	counters, err := c.counters(ctx)
	if err != nil {
		return fmt.Errorf("read disk counters: %w", err)
	}
	c.last = counters
	return nil
}

// Collect 计算与上一次之间各设备的速率。
// 第一次出现的设备只记录基线；没有任何活动的设备不返回。结果按总带宽降序、设备名升序。
func (c *DeviceCollector) Collect(ctx context.Context, elapsed time.Duration) ([]DeviceIOStats, error) {
	counters, err := c.counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("read disk counters: %w", err)
	}

	var stats []DeviceIOStats
	for name, current := range counters {
		last, ok := c.last[name]
		if !ok {
			continue
		}
		readCount := saturatingSub(current.ReadCount, last.ReadCount)
		writeCount := saturatingSub(current.WriteCount, last.WriteCount)
		readBytes := saturatingSub(current.ReadBytes, last.ReadBytes)
		writeBytes := saturatingSub(current.WriteBytes, last.WriteBytes)
		if readCount == 0 && writeCount == 0 && readBytes == 0 && writeBytes == 0 {
			continue
		}

		stat := DeviceIOStats{
			Device:     name,
			ReadBytes:  BytesPerSecondFromCount(readBytes, elapsed),
			WriteBytes: BytesPerSecondFromCount(writeBytes, elapsed),
			ReadOps:    OpsPerSecondFromCount(readCount, elapsed),
			WriteOps:   OpsPerSecondFromCount(writeCount, elapsed),
		}
		// ReadTime/WriteTime 单位为毫秒
		if readCount > 0 {
			stat.AvgReadLatency = float64(saturatingSub(current.ReadTime, last.ReadTime)) / float64(readCount)
		}
		if writeCount > 0 {
			stat.AvgWriteLatency = float64(saturatingSub(current.WriteTime, last.WriteTime)) / float64(writeCount)
		}
		stats = append(stats, stat)
	}
	// 拔出的设备随 counters 一起消失
	c.last = counters

	sort.Slice(stats, func(i, j int) bool {
		bi, bj := stats[i].TotalBandwidth(), stats[j].TotalBandwidth()
		if bi != bj {
			return bi > bj
		}
		return stats[i].Device < stats[j].Device
	})
	return stats, nil
}
