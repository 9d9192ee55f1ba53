package iostats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diskpulse/diskpulse/src/pkg/privilege"
	dpsentry "github.com/diskpulse/diskpulse/src/pkg/sentry"
)

var (
	// ErrNotPrivileged IOPS 采集需要 root 权限
	ErrNotPrivileged = errors.New("iops monitoring requires root privilege")
	// ErrAlreadyStarted Start 只能调用一次
	ErrAlreadyStarted = errors.New("iops collector already started")
	// ErrStopped 已停止的采集器不能再启动
	ErrStopped = errors.New("iops collector stopped")
)

const (
	defaultStopTimeout = 3 * time.Second
	maxTraceLineSize   = 1024 * 1024
)

type collectorState int32

const (
	stateCreated collectorState = iota
	stateStarted
	stateStopped
)

// IOPSCollector 通过解析 fs_usage 的输出统计每个进程的读写次数。
//
// 状态只会沿 Created → Started → Stopped 变化。
// Start 之后由一个后台 goroutine 独占子进程的标准输出，
// 与调用方之间只通过 CounterTable 交互。
type IOPSCollector struct {
	cfg         TracerConfig
	isElevated  func() bool
	spawn       spawnFunc
	stopTimeout time.Duration

	mu     sync.Mutex
	state  collectorState
	table  *CounterTable
	tracer tracerProcess
	done   chan struct{}
	// panicked 在 done 关闭之前写入
	panicked interface{}

	stopOnce   sync.Once
	diagnostic string

	stopping   atomic.Bool
	parserErr  atomic.Bool
	ioLines    atomic.Uint64
	nonIOLines atomic.Uint64
}

// NewIOPSCollector 创建处于 Created 状态的采集器
func NewIOPSCollector(cfg TracerConfig) *IOPSCollector {
	return &IOPSCollector{
		cfg:         cfg.normalize(),
		isElevated:  privilege.IsElevated,
		spawn:       startTracer,
		stopTimeout: defaultStopTimeout,
	}
}

// Start 启动跟踪子进程和解析 goroutine，返回共享的计数表。
// 没有 root 权限时返回 ErrNotPrivileged，调用方应退回到只采集带宽。
func (c *IOPSCollector) Start(ctx context.Context) (*CounterTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateStarted:
		return nil, ErrAlreadyStarted
	case stateStopped:
		return nil, ErrStopped
	}
	if !c.isElevated() {
		return nil, ErrNotPrivileged
	}

	tracer, err := c.spawn(ctx, c.cfg)
	if err != nil {
		return nil, err
	}

	table := NewCounterTable()
	done := make(chan struct{})
	c.tracer = tracer
	c.table = table
	c.done = done
	c.state = stateStarted

	stdout := tracer.Stdout()
	dpsentry.GoWithPanicHandler(func() {
		c.parse(stdout, table)
		close(done)
	}, func(r interface{}) {
		c.panicked = r
		c.parserErr.Store(true)
		close(done)
	})
	return table, nil
}

// parse 逐行读取跟踪输出直到流结束。
// 这里不打日志：仪表盘占用终端时日志输出会破坏画面，异常通过 HasParserError 暴露。
func (c *IOPSCollector) parse(r io.Reader, table *CounterTable) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxTraceLineSize)
	for scanner.Scan() {
		c.handleLine(table, scanner.Text())
	}
	// 非 Stop 导致的结束（读错误、跟踪程序被外部杀掉）都是不可恢复的
	if !c.stopping.Load() {
		c.parserErr.Store(true)
	}
}

func (c *IOPSCollector) handleLine(table *CounterTable, line string) {
	op, pid := parseTraceLine(line)
	switch op {
	case traceOpRead:
		table.RecordRead(pid)
	case traceOpWrite:
		table.RecordWrite(pid)
	default:
		c.nonIOLines.Add(1)
		return
	}
	c.ioLines.Add(1)
}

// SnapshotAndReset 见 CounterTable.SnapshotAndReset，未启动时返回 nil
func (c *IOPSCollector) SnapshotAndReset() map[int32]OpsCount {
	c.mu.Lock()
	table := c.table
	c.mu.Unlock()
	if table == nil {
		return nil
	}
	return table.SnapshotAndReset()
}

// HasParserError 解析 goroutine 是否因错误提前结束
func (c *IOPSCollector) HasParserError() bool {
	return c.parserErr.Load()
}

// ParserStats 返回解析计数
func (c *IOPSCollector) ParserStats() ParserStats {
	return ParserStats{
		IOLines:    c.ioLines.Load(),
		NonIOLines: c.nonIOLines.Load(),
	}
}

// Stop 终止跟踪子进程并等待解析 goroutine 退出，可以重复调用。
// 返回值是给用户看的诊断信息（正常时为空），
// 不返回 error 是因为调用时终端可能仍处于仪表盘模式，由调用方决定何时输出。
func (c *IOPSCollector) Stop() string {
	c.stopOnce.Do(func() {
		c.diagnostic = c.stop()
	})
	return c.diagnostic
}

func (c *IOPSCollector) stop() string {
	c.mu.Lock()
	prev := c.state
	c.state = stateStopped
	tracer, done := c.tracer, c.done
	c.mu.Unlock()

	if prev != stateStarted {
		return ""
	}
	c.stopping.Store(true)

	var problems []string
	if err := tracer.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		problems = append(problems, fmt.Sprintf("kill tracer: %v", err))
	}

	exited := waitDone(done, c.stopTimeout)
	// Wait 会关闭标准输出管道，goroutine 卡在读上时也能结束
	if err := tracer.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			problems = append(problems, fmt.Sprintf("wait tracer: %v", err))
		}
	}
	if !exited {
		exited = waitDone(done, c.stopTimeout)
	}

	switch {
	case !exited:
		problems = append(problems, fmt.Sprintf("parser goroutine did not exit within %s", 2*c.stopTimeout))
	case c.panicked != nil:
		problems = append(problems, fmt.Sprintf("parser goroutine panicked: %v", c.panicked))
	}
	return strings.Join(problems, "; ")
}

func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
