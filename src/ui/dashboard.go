// Package ui 终端仪表盘：上方带宽和 IOPS 两个表格，底部状态栏
package ui

import (
	"context"
	"fmt"

	termui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/sirupsen/logrus"

	"github.com/diskpulse/diskpulse/src/pkg/iostats"
)

// RowLimiter 运行时调整行数，由 iostats.Monitor 实现
type RowLimiter interface {
	RowLimit() int
	SetRowLimit(n int)
}

// Dashboard 实现 iostats.Sink，在 Run 的 goroutine 中渲染
type Dashboard struct {
	frames  chan iostats.Frame
	limiter RowLimiter

	bandwidth *widgets.Table
	iops      *widgets.Table
	status    *widgets.Paragraph
	grid      *termui.Grid

	last    iostats.Frame
	hasLast bool
}

// New 创建仪表盘
func New() *Dashboard {
	return &Dashboard{
		frames: make(chan iostats.Frame, 1),
	}
}

// SetRowLimiter 绑定 +/- 按键调整的对象，未绑定时按键无效。
// 需要在 Run 之前调用。
func (d *Dashboard) SetRowLimiter(limiter RowLimiter) {
	d.limiter = limiter
}

// Publish 实现 iostats.Sink。
// 渲染跟不上时丢弃尚未渲染的旧 Frame，只保留最新的一个。
func (d *Dashboard) Publish(frame iostats.Frame) {
	for {
		select {
		case d.frames <- frame:
			return
		default:
		}
		select {
		case <-d.frames:
		default:
		}
	}
}

// Run 接管终端直到按下 q / Ctrl+C 或 ctx 结束，返回前恢复终端
func (d *Dashboard) Run(ctx context.Context) error {
	if err := termui.Init(); err != nil {
		return fmt.Errorf("failed to init termui: %w", err)
	}
	defer termui.Close()

	d.initWidgets()
	termWidth, termHeight := termui.TerminalDimensions()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	termui.Render(d.grid)

	uiEvents := termui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-uiEvents:
			if e.Type == termui.KeyboardEvent && (e.ID == "q" || e.ID == "<C-c>") {
				return nil
			}
			if e.Type == termui.ResizeEvent {
				payload := e.Payload.(termui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				termui.Clear()
				termui.Render(d.grid)
				continue
			}
			if e.Type == termui.KeyboardEvent && d.handleKey(e.ID) {
				termui.Render(d.grid)
			}
		case frame := <-d.frames:
			d.last, d.hasLast = frame, true
			d.update(frame)
			termui.Render(d.grid)
		}
	}
}

func (d *Dashboard) initWidgets() {
	d.bandwidth = widgets.NewTable()
	d.bandwidth.Title = titleBandwidth
	d.bandwidth.Rows = [][]string{bandwidthHeader}
	d.bandwidth.TextStyle = termui.NewStyle(termui.ColorWhite)
	d.bandwidth.RowSeparator = false
	d.bandwidth.BorderStyle.Fg = termui.ColorGreen

	d.iops = widgets.NewTable()
	d.iops.Title = titleIOPS
	d.iops.Rows = [][]string{iopsHeader}
	d.iops.TextStyle = termui.NewStyle(termui.ColorWhite)
	d.iops.RowSeparator = false
	d.iops.BorderStyle.Fg = termui.ColorYellow

	d.status = widgets.NewParagraph()
	d.status.Text = "waiting for first sample... | " + keyHelp
	d.status.Border = false

	d.grid = termui.NewGrid()
	d.grid.Set(
		termui.NewRow(0.94,
			termui.NewCol(0.5, d.bandwidth),
			termui.NewCol(0.5, d.iops),
		),
		termui.NewRow(0.06, d.status),
	)
}

// handleKey 处理 +/- 调整行数，返回是否需要重新渲染
func (d *Dashboard) handleKey(id string) bool {
	if d.limiter == nil {
		return false
	}
	var limit int
	switch id {
	case "+", "=":
		limit = d.limiter.RowLimit() + 1
	case "-", "_":
		limit = d.limiter.RowLimit() - 1
	default:
		return false
	}
	d.limiter.SetRowLimit(limit)
	logrus.WithField("rows", d.limiter.RowLimit()).Debug("调整显示行数")
	if !d.hasLast {
		return false
	}
	d.last.RowLimit = d.limiter.RowLimit()
	d.update(d.last)
	return true
}

func (d *Dashboard) update(frame iostats.Frame) {
	d.bandwidth.Rows = bandwidthRows(frame)

	d.iops.Title = iopsTitle(frame)
	d.iops.Rows = iopsRows(frame)
	if frame.ParserError {
		d.iops.BorderStyle.Fg = termui.ColorRed
	} else {
		d.iops.BorderStyle.Fg = termui.ColorYellow
	}

	d.status.Text = statusLine(frame)
}
