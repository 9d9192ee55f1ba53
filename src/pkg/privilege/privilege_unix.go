//go:build !windows

// Package privilege 检查当前进程是否以 root 权限运行
package privilege

import "golang.org/x/sys/unix"

// IsElevated 有效用户 ID 为 0 时返回 true
func IsElevated() bool {
	return unix.Geteuid() == 0
}
