package iostats

import (
	"regexp"
	"strconv"
	"strings"
)

// traceOp 一行跟踪输出对应的操作类型
type traceOp int

const (
	traceOpNone traceOp = iota
	traceOpRead
	traceOpWrite
)

const (
	readOpPrefix  = "Rd"
	writeOpPrefix = "Wr"
)

// 行尾的 "进程名.pid"，允许末尾有空白
var tracePIDPattern = regexp.MustCompile(`(\S+)\.(\d+)\s*$`)

// parseTraceLine 解析 fs_usage 的一行输出，例如：
//
//	12:00:00.000001  RdData[A]  D=0x00b3c1a8  B=0x1000  /dev/disk1s1  /usr/lib/dyld  0.000171 W mdworker.1234
//
// 第二列以 Rd 或 Wr 开头的行才是磁盘读写事件，其余行以及格式不符的行返回 traceOpNone。
func parseTraceLine(line string) (traceOp, int32) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return traceOpNone, 0
	}

	var op traceOp
	switch {
	case strings.HasPrefix(fields[1], readOpPrefix):
		op = traceOpRead
	case strings.HasPrefix(fields[1], writeOpPrefix):
		op = traceOpWrite
	default:
		return traceOpNone, 0
	}

	m := tracePIDPattern.FindStringSubmatch(line)
	if m == nil {
		return traceOpNone, 0
	}
	pid, err := strconv.ParseInt(m[2], 10, 32)
	if err != nil {
		return traceOpNone, 0
	}
	return op, int32(pid)
}
