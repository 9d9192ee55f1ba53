package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/diskpulse/diskpulse/src/pkg/iostats"
)

const (
	titleBandwidth   = " Disk Bandwidth "
	titleIOPS        = " Disk IOPS "
	titleParserError = " Disk IOPS (parser error) "
	titleIOPSOff     = " Disk IOPS (disabled) "
	keyHelp          = "q: quit  +/-: rows"
)

var (
	bandwidthHeader = []string{"PID", "Process", "Read", "Write", "Total"}
	iopsHeader      = []string{"PID", "Process", "Read ops/s", "Write ops/s", "Total"}
)

// formatBytesRate 以 IEC 单位显示字节速率，例如 1.5 MiB/s
func formatBytesRate(b iostats.BytesPerSecond) string {
	return humanize.IBytes(uint64(b)) + "/s"
}

// formatOps IOPS 缺失时显示 "-"
func formatOps(o *iostats.OpsPerSecond) string {
	if o == nil {
		return "-"
	}
	return humanize.Comma(int64(*o))
}

func formatTotalOps(s iostats.ProcessIOStats) string {
	total, ok := s.TotalIOPS()
	if !ok {
		return "-"
	}
	return humanize.Comma(int64(total))
}

// limitRows 截取前 limit 行，limit 小于 1 时不截取
func limitRows(list []iostats.ProcessIOStats, limit int) []iostats.ProcessIOStats {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

// bandwidthRows 带宽面板的表格内容，第一行为表头
func bandwidthRows(frame iostats.Frame) [][]string {
	rows := [][]string{bandwidthHeader}
	for _, s := range limitRows(frame.ByBandwidth, frame.RowLimit) {
		rows = append(rows, []string{
			strconv.FormatInt(int64(s.PID), 10),
			s.Name,
			formatBytesRate(s.ReadBytes),
			formatBytesRate(s.WriteBytes),
			formatBytesRate(s.TotalBandwidth()),
		})
	}
	return rows
}

// iopsRows IOPS 面板的表格内容。IOPS 未启用时只有一行说明
func iopsRows(frame iostats.Frame) [][]string {
	if !frame.IOPSEnabled {
		notice := frame.Notice
		if notice == "" {
			notice = "IOPS monitoring disabled"
		}
		return [][]string{{notice}}
	}
	rows := [][]string{iopsHeader}
	for _, s := range limitRows(frame.ByIOPS, frame.RowLimit) {
		rows = append(rows, []string{
			strconv.FormatInt(int64(s.PID), 10),
			s.Name,
			formatOps(s.ReadOps),
			formatOps(s.WriteOps),
			formatTotalOps(s),
		})
	}
	return rows
}

func iopsTitle(frame iostats.Frame) string {
	switch {
	case !frame.IOPSEnabled:
		return titleIOPSOff
	case frame.ParserError:
		return titleParserError
	default:
		return titleIOPS
	}
}

// statusLine 底部状态栏
func statusLine(frame iostats.Frame) string {
	parts := []string{
		frame.Timestamp.Format("15:04:05"),
		fmt.Sprintf("interval %s", frame.Elapsed.Round(10*time.Millisecond)),
		fmt.Sprintf("rows %d", frame.RowLimit),
	}
	if len(frame.Devices) > 0 {
		parts = append(parts, deviceSummary(frame.Devices))
	}
	if frame.IOPSEnabled {
		parts = append(parts, fmt.Sprintf("parsed %s io / %s other",
			humanize.Comma(int64(frame.ParserStats.IOLines)),
			humanize.Comma(int64(frame.ParserStats.NonIOLines))))
	}
	if frame.ParserError {
		parts = append(parts, "parser error")
	}
	parts = append(parts, keyHelp)
	return strings.Join(parts, " | ")
}

// deviceSummary 所有磁盘设备的读写合计
func deviceSummary(devices []iostats.DeviceIOStats) string {
	var read, write iostats.BytesPerSecond
	var ops iostats.OpsPerSecond
	for _, d := range devices {
		read = read.Add(d.ReadBytes)
		write = write.Add(d.WriteBytes)
		ops = ops.Add(d.ReadOps).Add(d.WriteOps)
	}
	return fmt.Sprintf("disks R %s W %s %s ops/s", formatBytesRate(read), formatBytesRate(write), humanize.Comma(int64(ops)))
}
