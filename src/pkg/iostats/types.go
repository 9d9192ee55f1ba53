// Package iostats 按进程统计磁盘带宽和 IOPS
package iostats

import "time"

// ExitedProcessName 进程在查询名称前已退出时使用的占位名
const ExitedProcessName = "<exited>"

// ProcessIOStats 单个进程在一个采样周期内的 I/O 统计
// 每个周期重新构造，构造后不再修改
type ProcessIOStats struct {
	PID        int32          `json:"pid"`
	Name       string         `json:"name"`
	ReadBytes  BytesPerSecond `json:"read_bytes_per_sec"`
	WriteBytes BytesPerSecond `json:"write_bytes_per_sec"`
	// IOPS 未启用（例如没有 root 权限）时为 nil
	ReadOps  *OpsPerSecond `json:"read_ops_per_sec,omitempty"`
	WriteOps *OpsPerSecond `json:"write_ops_per_sec,omitempty"`
}

// TotalBandwidth 读写带宽之和
func (s ProcessIOStats) TotalBandwidth() BytesPerSecond {
	return s.ReadBytes.Add(s.WriteBytes)
}

// TotalIOPS 读写 IOPS 之和。
// 只有读写两项都缺失时 ok 才为 false，缺一项时按另一项计算。
func (s ProcessIOStats) TotalIOPS() (total OpsPerSecond, ok bool) {
	if s.ReadOps != nil {
		total = total.Add(*s.ReadOps)
		ok = true
	}
	if s.WriteOps != nil {
		total = total.Add(*s.WriteOps)
		ok = true
	}
	return total, ok
}

// OpsCount 一个采样周期内某进程的读写操作次数
type OpsCount struct {
	Reads  uint64 `json:"read_ops"`
	Writes uint64 `json:"write_ops"`
}

// Total 读写次数之和
func (c OpsCount) Total() uint64 {
	return c.Reads + c.Writes
}

// ParserStats 解析器诊断计数，只增不减
type ParserStats struct {
	IOLines    uint64 `json:"io_lines"`     // 识别为磁盘 I/O 并已处理的行
	NonIOLines uint64 `json:"non_io_lines"` // 非 I/O 或无法解析而跳过的行
}

// Views 聚合后的两个独立排序视图
type Views struct {
	ByBandwidth []ProcessIOStats `json:"by_bandwidth"` // 按总带宽降序
	ByIOPS      []ProcessIOStats `json:"by_iops"`      // 按总 IOPS 降序，IOPS 未启用时为空
}

// Frame 每个周期交给渲染层的数据
type Frame struct {
	Views
	// Devices 系统级磁盘设备统计，按总带宽降序
	Devices     []DeviceIOStats `json:"devices"`
	Timestamp   time.Time       `json:"timestamp"`
	Elapsed     time.Duration   `json:"elapsed"`
	IOPSEnabled bool            `json:"iops_enabled"`
	ParserError bool            `json:"parser_error"`
	ParserStats ParserStats     `json:"parser_stats"`
	RowLimit    int             `json:"row_limit"`
	// Notice 需要展示给用户的说明，例如 IOPS 因权限不足被禁用
	Notice string `json:"notice,omitempty"`
}

// Config 采集配置
type Config struct {
	Interval    time.Duration `yaml:"interval" json:"interval"`         // 刷新间隔
	RowLimit    int           `yaml:"row_limit" json:"row_limit"`       // 每个面板显示的行数
	IOPSEnabled bool          `yaml:"iops_enabled" json:"iops_enabled"` // 是否尝试启用 IOPS 采集
	Tracer      TracerConfig  `yaml:"tracer" json:"tracer"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Interval:    time.Second,
		RowLimit:    20,
		IOPSEnabled: true,
		Tracer:      DefaultTracerConfig(),
	}
}
