package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diskpulse/diskpulse/src/configs"
	dpsentry "github.com/diskpulse/diskpulse/src/pkg/sentry"
)

const (
	logFilePrefix     = "diskpulse"
	debugPollInterval = 500 * time.Millisecond
)

var (
	mu          sync.Mutex
	logFile     *rotatingFile
	stopWatcher context.CancelFunc
)

// New 按当前配置设置全局 logrus Logger，可以重复调用。
// 仪表盘占用终端时日志只写文件，toStderr 为 true（--no-ui）时同时输出到 stderr。
func New(ctx context.Context, toStderr bool) (*logrus.Logger, error) {
	cfg := configs.GetCurrentConfig()
	if cfg == nil {
		return nil, configs.ErrConfigMissing
	}

	var out []io.Writer
	if toStderr {
		out = append(out, os.Stderr)
	}
	file, err := openLogFile(cfg.Log.OutPutFolder, cfg.Log.RotateDays)
	if err != nil {
		return nil, err
	}
	if file != nil {
		out = append(out, file)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	if stopWatcher != nil {
		stopWatcher()
	}
	watchCtx, cancel := context.WithCancel(ctx)
	stopWatcher = cancel

	logger := logrus.StandardLogger()
	switch len(out) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(out[0])
	default:
		logger.SetOutput(io.MultiWriter(out...))
	}
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	setDebug(logger, cfg.Debug)
	dpsentry.GoWithContext(watchCtx, func(ctx context.Context) {
		followDebug(ctx, logger, cfg.Debug, debugPollInterval)
	})
	return logger, nil
}

// openLogFile folder 为空时不写文件，返回 nil
func openLogFile(folder string, keepDays int) (*rotatingFile, error) {
	if folder == "" {
		return nil, nil
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create log folder %s: %w", folder, err)
	}
	f, err := openRotatingFile(folder, logFilePrefix, keepDays)
	if err != nil {
		return nil, fmt.Errorf("open log file in %s: %w", folder, err)
	}
	return f, nil
}

// followDebug 配置中的 debug 开关变化时同步日志级别
func followDebug(ctx context.Context, logger *logrus.Logger, debug bool, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cur := configs.IsDebug(); cur != debug {
				debug = cur
				setDebug(logger, debug)
			}
		}
	}
}

func setDebug(logger *logrus.Logger, debug bool) {
	level := logrus.InfoLevel
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(debug)
}

// GetLogger 全局 Logger
func GetLogger() *logrus.Logger {
	return logrus.StandardLogger()
}
