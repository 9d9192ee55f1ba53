package iostats

import (
	"sort"
	"time"
)

// ProcessNamer 为只出现在 IOPS 数据中的进程解析名称
type ProcessNamer interface {
	LookupProcessName(pid int32) string
}

// Merge 合并带宽采集结果和 IOPS 快照。
//
// ops 为 nil 表示 IOPS 未启用，此时只有带宽视图，IOPS 字段保持 nil。
// 启用时，带宽列表里的进程都会带上读写 IOPS（没有操作记为 0）；
// 有操作但本周期没有带宽变化的进程以 0 带宽加入，名称通过 namer 查询。
// 两个视图分别排序，同值时按 pid 升序。
func Merge(bandwidth []ProcessIOStats, ops map[int32]OpsCount, elapsed time.Duration, namer ProcessNamer) Views {
	if ops == nil {
		byBandwidth := make([]ProcessIOStats, len(bandwidth))
		copy(byBandwidth, bandwidth)
		sortViewByBandwidth(byBandwidth)
		return Views{ByBandwidth: byBandwidth}
	}

	merged := make([]ProcessIOStats, 0, len(bandwidth)+len(ops))
	seen := make(map[int32]struct{}, len(bandwidth))
	for _, s := range bandwidth {
		seen[s.PID] = struct{}{}
		s.ReadOps, s.WriteOps = opsRates(ops[s.PID], elapsed)
		merged = append(merged, s)
	}
	for pid, count := range ops {
		if _, ok := seen[pid]; ok || count.Total() == 0 {
			continue
		}
		s := ProcessIOStats{PID: pid, Name: namer.LookupProcessName(pid)}
		s.ReadOps, s.WriteOps = opsRates(count, elapsed)
		merged = append(merged, s)
	}

	// 前 len(bandwidth) 项来自带宽列表，其余是只有 IOPS 的进程
	byBandwidth := make([]ProcessIOStats, len(bandwidth))
	copy(byBandwidth, merged[:len(bandwidth)])
	sortViewByBandwidth(byBandwidth)

	byIOPS := make([]ProcessIOStats, 0, len(merged))
	for _, s := range merged {
		if ops[s.PID].Total() > 0 {
			byIOPS = append(byIOPS, s)
		}
	}
	sortViewByIOPS(byIOPS)

	return Views{ByBandwidth: byBandwidth, ByIOPS: byIOPS}
}

func opsRates(count OpsCount, elapsed time.Duration) (*OpsPerSecond, *OpsPerSecond) {
	read := OpsPerSecondFromCount(count.Reads, elapsed)
	write := OpsPerSecondFromCount(count.Writes, elapsed)
	return &read, &write
}

func sortViewByBandwidth(stats []ProcessIOStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		bi, bj := stats[i].TotalBandwidth(), stats[j].TotalBandwidth()
		if bi != bj {
			return bi > bj
		}
		return stats[i].PID < stats[j].PID
	})
}

func sortViewByIOPS(stats []ProcessIOStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		oi, _ := stats[i].TotalIOPS()
		oj, _ := stats[j].TotalIOPS()
		if oi != oj {
			return oi > oj
		}
		return stats[i].PID < stats[j].PID
	})
}
