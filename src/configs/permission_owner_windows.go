//go:build windows

package configs

import "io/fs"

func ownerHints(fs.FileInfo) []string {
	return []string{"请确认当前用户对该文件有读取权限"}
}
