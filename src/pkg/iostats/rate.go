package iostats

import (
	"math"
	"time"
)

// BytesPerSecond 字节速率（bytes/s）
type BytesPerSecond uint64

// OpsPerSecond 操作速率（ops/s）
type OpsPerSecond uint64

// BytesPerSecondFromCount 由区间内的字节数和区间长度计算速率
func BytesPerSecondFromCount(count uint64, interval time.Duration) BytesPerSecond {
	return BytesPerSecond(ratePerSecond(count, interval))
}

// OpsPerSecondFromCount 由区间内的操作次数和区间长度计算速率
func OpsPerSecondFromCount(count uint64, interval time.Duration) OpsPerSecond {
	return OpsPerSecond(ratePerSecond(count, interval))
}

// ratePerSecond 浮点除法后四舍五入，区间为 0 时返回 0。
// 整数除法会把 1 次/2 秒 截断为 0，这里得到 1。
func ratePerSecond(count uint64, interval time.Duration) uint64 {
	if interval <= 0 {
		return 0
	}
	return uint64(math.Round(float64(count) / interval.Seconds()))
}

// Add 返回两个速率之和
func (b BytesPerSecond) Add(other BytesPerSecond) BytesPerSecond {
	return b + other
}

// Add 返回两个速率之和
func (o OpsPerSecond) Add(other OpsPerSecond) OpsPerSecond {
	return o + other
}
