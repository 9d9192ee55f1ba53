// Package metrics 把最近一次采集结果导出为 Prometheus 指标
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/diskpulse/diskpulse/src/pkg/iostats"
)

const namespace = "diskpulse"

var (
	readBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "process", "read_bytes_per_second"),
		"Disk read bandwidth of the process over the last interval.",
		[]string{"pid", "name"}, nil,
	)
	writeBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "process", "write_bytes_per_second"),
		"Disk write bandwidth of the process over the last interval.",
		[]string{"pid", "name"}, nil,
	)
	readOpsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "process", "read_ops_per_second"),
		"Disk read operations per second of the process over the last interval.",
		[]string{"pid", "name"}, nil,
	)
	writeOpsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "process", "write_ops_per_second"),
		"Disk write operations per second of the process over the last interval.",
		[]string{"pid", "name"}, nil,
	)
	parserLinesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "parser", "lines_total"),
		"Tracer output lines seen by the parser, by kind.",
		[]string{"kind"}, nil,
	)
	parserErrorDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "parser", "error"),
		"1 if the tracer stream ended unexpectedly.",
		nil, nil,
	)
	deviceBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "bytes_per_second"),
		"Disk device bandwidth over the last interval.",
		[]string{"device", "op"}, nil,
	)
	deviceOpsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "device", "ops_per_second"),
		"Disk device operations per second over the last interval.",
		[]string{"device", "op"}, nil,
	)
	iopsEnabledDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "iops_enabled"),
		"1 if per-process IOPS collection is running.",
		nil, nil,
	)
)

// Collector 实现 prometheus.Collector 和 iostats.Sink。
// 每次 Publish 替换快照，抓取时根据快照生成常量指标。
type Collector struct {
	mu    sync.RWMutex
	frame iostats.Frame
	ok    bool
}

// NewCollector 创建指标收集器
func NewCollector() *Collector {
	return &Collector{}
}

// Publish 实现 iostats.Sink
func (c *Collector) Publish(frame iostats.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frame = frame
	c.ok = true
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- readBytesDesc
	ch <- writeBytesDesc
	ch <- readOpsDesc
	ch <- writeOpsDesc
	ch <- parserLinesDesc
	ch <- parserErrorDesc
	ch <- deviceBytesDesc
	ch <- deviceOpsDesc
	ch <- iopsEnabledDesc
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	frame, ok := c.frame, c.ok
	c.mu.RUnlock()
	if !ok {
		return
	}

	ch <- prometheus.MustNewConstMetric(iopsEnabledDesc, prometheus.GaugeValue, boolToFloat(frame.IOPSEnabled))

	for _, s := range uniqueProcesses(frame.Views) {
		pid := strconv.FormatInt(int64(s.PID), 10)
		ch <- prometheus.MustNewConstMetric(readBytesDesc, prometheus.GaugeValue, float64(s.ReadBytes), pid, s.Name)
		ch <- prometheus.MustNewConstMetric(writeBytesDesc, prometheus.GaugeValue, float64(s.WriteBytes), pid, s.Name)
		if s.ReadOps != nil {
			ch <- prometheus.MustNewConstMetric(readOpsDesc, prometheus.GaugeValue, float64(*s.ReadOps), pid, s.Name)
		}
		if s.WriteOps != nil {
			ch <- prometheus.MustNewConstMetric(writeOpsDesc, prometheus.GaugeValue, float64(*s.WriteOps), pid, s.Name)
		}
	}

	for _, d := range frame.Devices {
		ch <- prometheus.MustNewConstMetric(deviceBytesDesc, prometheus.GaugeValue, float64(d.ReadBytes), d.Device, "read")
		ch <- prometheus.MustNewConstMetric(deviceBytesDesc, prometheus.GaugeValue, float64(d.WriteBytes), d.Device, "write")
		ch <- prometheus.MustNewConstMetric(deviceOpsDesc, prometheus.GaugeValue, float64(d.ReadOps), d.Device, "read")
		ch <- prometheus.MustNewConstMetric(deviceOpsDesc, prometheus.GaugeValue, float64(d.WriteOps), d.Device, "write")
	}

	if !frame.IOPSEnabled {
		return
	}
	ch <- prometheus.MustNewConstMetric(parserLinesDesc, prometheus.CounterValue, float64(frame.ParserStats.IOLines), "io")
	ch <- prometheus.MustNewConstMetric(parserLinesDesc, prometheus.CounterValue, float64(frame.ParserStats.NonIOLines), "non_io")
	ch <- prometheus.MustNewConstMetric(parserErrorDesc, prometheus.GaugeValue, boolToFloat(frame.ParserError))
}

// uniqueProcesses 同一个进程可能同时出现在两个视图中，按 pid 去重
func uniqueProcesses(views iostats.Views) []iostats.ProcessIOStats {
	seen := make(map[int32]struct{}, len(views.ByBandwidth)+len(views.ByIOPS))
	out := make([]iostats.ProcessIOStats, 0, len(views.ByBandwidth)+len(views.ByIOPS))
	for _, list := range [][]iostats.ProcessIOStats{views.ByBandwidth, views.ByIOPS} {
		for _, s := range list {
			if _, ok := seen[s.PID]; ok {
				continue
			}
			seen[s.PID] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
