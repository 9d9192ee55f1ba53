//go:build windows

package iostats

import (
	"os"
	"os/exec"
)

// Windows 上没有 fs_usage，IOPS 采集在权限检查之后也会因为启动失败而降级
func setProcessGroup(_ *exec.Cmd) {}

func killProcessGroup(p *os.Process) error {
	return p.Kill()
}
