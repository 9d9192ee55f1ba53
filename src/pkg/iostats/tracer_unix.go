//go:build !windows

package iostats

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup 让跟踪程序成为新进程组的组长，
// fs_usage 可能派生子进程，Stop 时需要一起终止。
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup 向进程组发送 SIGKILL，失败时回退到只杀单个进程
func killProcessGroup(p *os.Process) error {
	if err := unix.Kill(-p.Pid, unix.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
