package iostats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	dpsentry "github.com/diskpulse/diskpulse/src/pkg/sentry"
)

const (
	noticeIOPSDisabled     = "IOPS monitoring disabled"
	noticeIOPSNeedsRoot    = "IOPS monitoring requires root, run with sudo to enable (showing bandwidth only)"
	noticeIOPSStartFailure = "IOPS monitoring unavailable, tracer failed to start (showing bandwidth only)"
)

// Sink 接收每个周期的采集结果。
// Publish 在采集 goroutine 上调用，实现不能阻塞。
type Sink interface {
	Publish(frame Frame)
}

// Monitor 采集主循环：按固定间隔采集带宽和 IOPS，合并后分发给各个 Sink
type Monitor struct {
	cfg       Config
	bandwidth *BandwidthCollector
	// 读取设备计数失败时为 nil
	devices *DeviceCollector
	// IOPS 未启用时为 nil
	iops  *IOPSCollector
	sinks []Sink

	rowLimit atomic.Int64
	notice   string
	now      func() time.Time

	// 以下字段只在采集 goroutine 中访问
	lastTick        time.Time
	parserErrLogged bool

	stopCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	diagnostic string
}

// NewMonitor 创建采集主循环
func NewMonitor(cfg Config, table ProcessTable, sinks ...Sink) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	m := &Monitor{
		cfg:       cfg,
		bandwidth: NewBandwidthCollector(table),
		devices:   NewDeviceCollector(),
		sinks:     sinks,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
	if cfg.IOPSEnabled {
		m.iops = NewIOPSCollector(cfg.Tracer)
	}
	m.SetRowLimit(cfg.RowLimit)
	return m
}

// Start 记录带宽基线、尝试启动 IOPS 采集，然后启动采集循环。
// IOPS 启动失败不算错误，退回到只采集带宽并在 Frame.Notice 中说明原因。
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.bandwidth.Prime(ctx); err != nil {
		return err
	}
	if err := m.devices.Prime(ctx); err != nil {
		logrus.WithError(err).Warn("读取磁盘设备计数失败，设备统计已禁用")
		m.devices = nil
	}
	m.startIOPS(ctx)
	m.lastTick = m.now()

	m.wg.Add(1)
	dpsentry.GoWithContext(ctx, m.run)
	logrus.WithFields(logrus.Fields{
		"interval": m.cfg.Interval,
		"iops":     m.iops != nil,
	}).Info("磁盘 I/O 监控已启动")
	return nil
}

func (m *Monitor) startIOPS(ctx context.Context) {
	if m.iops == nil {
		m.notice = noticeIOPSDisabled
		return
	}
	_, err := m.iops.Start(ctx)
	if err == nil {
		return
	}
	if errors.Is(err, ErrNotPrivileged) {
		m.notice = noticeIOPSNeedsRoot
		logrus.Warn("没有 root 权限，IOPS 采集已禁用")
	} else {
		m.notice = noticeIOPSStartFailure
		logrus.WithError(err).Error("启动磁盘事件跟踪程序失败，IOPS 采集已禁用")
	}
	m.iops = nil
}

// IOPSEnabled IOPS 采集是否在运行，Start 之后才有意义
func (m *Monitor) IOPSEnabled() bool {
	return m.iops != nil
}

// Notice 启动时产生的提示信息
func (m *Monitor) Notice() string {
	return m.notice
}

// SetRowLimit 调整每个面板显示的行数，最小为 1
func (m *Monitor) SetRowLimit(n int) {
	if n < 1 {
		n = 1
	}
	m.rowLimit.Store(int64(n))
}

// RowLimit 当前行数限制
func (m *Monitor) RowLimit() int {
	return int(m.rowLimit.Load())
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick 执行一次采集并分发结果
func (m *Monitor) tick(ctx context.Context) {
	now := m.now()
	elapsed := now.Sub(m.lastTick)
	m.lastTick = now

	stats, err := m.bandwidth.Collect(ctx, elapsed)
	if err != nil {
		logrus.WithError(err).Warn("采集进程带宽失败")
	}

	frame := Frame{
		Timestamp:   now,
		Elapsed:     elapsed,
		IOPSEnabled: m.iops != nil,
		RowLimit:    m.RowLimit(),
		Notice:      m.notice,
	}

	if m.devices != nil {
		devices, err := m.devices.Collect(ctx, elapsed)
		if err != nil {
			logrus.WithError(err).Debug("采集磁盘设备统计失败")
		}
		frame.Devices = devices
	}

	var ops map[int32]OpsCount
	if m.iops != nil {
		ops = m.iops.SnapshotAndReset()
		frame.ParserError = m.iops.HasParserError()
		frame.ParserStats = m.iops.ParserStats()
		if frame.ParserError && !m.parserErrLogged {
			m.parserErrLogged = true
			logrus.WithField("parser_stats", frame.ParserStats).Error("磁盘事件跟踪程序已退出，IOPS 数据停止更新")
		}
	}
	frame.Views = Merge(stats, ops, elapsed, m.bandwidth)

	for _, sink := range m.sinks {
		sink.Publish(frame)
	}
}

// Close 停止采集循环和 IOPS 采集器，可以重复调用。
// 返回 IOPSCollector.Stop 的诊断信息，调用方应在恢复终端之后再输出。
func (m *Monitor) Close() string {
	m.closeOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		if m.iops != nil {
			m.diagnostic = m.iops.Stop()
		}
		logrus.Info("磁盘 I/O 监控已停止")
	})
	return m.diagnostic
}

// FrameStore 保存最近一次的 Frame，供 HTTP 接口读取
type FrameStore struct {
	mu    sync.RWMutex
	frame Frame
	ok    bool
}

// NewFrameStore 创建空的 FrameStore
func NewFrameStore() *FrameStore {
	return &FrameStore{}
}

// Publish 实现 Sink
func (s *FrameStore) Publish(frame Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = frame
	s.ok = true
}

// Latest 返回最近一次的 Frame，还没有采集过时 ok 为 false
func (s *FrameStore) Latest() (frame Frame, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.ok
}
