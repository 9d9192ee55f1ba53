package iostats

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

const defaultTracerPath = "/usr/bin/fs_usage"

// TracerConfig 磁盘事件跟踪程序的启动参数
type TracerConfig struct {
	Path string   `yaml:"path" json:"path"`
	Args []string `yaml:"args" json:"args"`
}

// DefaultTracerConfig 默认使用 fs_usage，只输出磁盘 I/O 事件，宽格式
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Path: defaultTracerPath,
		Args: []string{"-w", "-f", "diskio"},
	}
}

func (c TracerConfig) normalize() TracerConfig {
	if c.Path == "" {
		return DefaultTracerConfig()
	}
	return c
}

// tracerProcess 运行中的跟踪子进程
type tracerProcess interface {
	// Stdout 子进程的标准输出，只能由解析 goroutine 读取
	Stdout() io.Reader
	// Kill 终止子进程（及其进程组）
	Kill() error
	// Wait 回收子进程
	Wait() error
}

type spawnFunc func(ctx context.Context, cfg TracerConfig) (tracerProcess, error)

type execTracer struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

// startTracer 启动跟踪子进程。
// 不使用 exec.CommandContext，子进程的生命周期完全由 IOPSCollector.Stop 控制。
func startTracer(_ context.Context, cfg TracerConfig) (tracerProcess, error) {
	cfg = cfg.normalize()
	cmd := exec.Command(cfg.Path, cfg.Args...)
	// Stderr 为 nil 时输出到 os.DevNull
	cmd.Stderr = nil
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create tracer stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start tracer %s: %w", cfg.Path, err)
	}
	return &execTracer{cmd: cmd, stdout: stdout}, nil
}

func (t *execTracer) Stdout() io.Reader {
	return t.stdout
}

func (t *execTracer) Kill() error {
	return killProcessGroup(t.cmd.Process)
}

func (t *execTracer) Wait() error {
	return t.cmd.Wait()
}
