package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// PermissionDiagnostics 配置文件读取失败时的排查结果
type PermissionDiagnostics struct {
	FilePath    string
	FileExists  bool
	CanRead     bool
	Suggestions []string
}

// DiagnoseFilePermission 检查配置文件为什么读不到
func DiagnoseFilePermission(filePath string) *PermissionDiagnostics {
	d := &PermissionDiagnostics{FilePath: filePath}
	info, err := os.Stat(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.hint("文件 %s 不存在，请检查配置文件路径是否正确", filePath)
		if strings.HasPrefix(filePath, "~") {
			d.hint("路径中的 ~ 不会被展开，请使用绝对路径")
		}
		return d
	case err != nil:
		d.hint("无法获取文件信息: %v", err)
		return d
	case info.IsDir():
		d.FileExists = true
		d.hint("%s 是目录，请指定配置文件", filePath)
		return d
	}

	d.FileExists = true
	if f, err := os.Open(filePath); err == nil {
		d.CanRead = true
		_ = f.Close()
		return d
	}
	d.hint("无法读取文件 %s，当前权限: %v", filePath, info.Mode().Perm())
	d.Suggestions = append(d.Suggestions, ownerHints(info)...)
	return d
}

func (d *PermissionDiagnostics) hint(format string, args ...interface{}) {
	d.Suggestions = append(d.Suggestions, fmt.Sprintf(format, args...))
}

// FormatError 拼接成附加在错误信息后面的文本，没有建议时为空
func (d *PermissionDiagnostics) FormatError() string {
	if len(d.Suggestions) == 0 {
		return ""
	}
	return "\n[配置文件诊断]\n  " + strings.Join(d.Suggestions, "\n  ") + "\n"
}
