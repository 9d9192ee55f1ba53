// Package privilege 检查当前进程是否以管理员权限运行
package privilege

import "golang.org/x/sys/windows"

// IsElevated 当前进程令牌已提升时返回 true
func IsElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
