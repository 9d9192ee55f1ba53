package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/diskpulse/diskpulse/src/cmd/diskpulse/internal/flag"
	"github.com/diskpulse/diskpulse/src/configs"
	"github.com/diskpulse/diskpulse/src/consts"
	"github.com/diskpulse/diskpulse/src/log"
	"github.com/diskpulse/diskpulse/src/metrics"
	"github.com/diskpulse/diskpulse/src/pkg/iostats"
	"github.com/diskpulse/diskpulse/src/pkg/proctable"
	dpsentry "github.com/diskpulse/diskpulse/src/pkg/sentry"
	"github.com/diskpulse/diskpulse/src/servers"
	"github.com/diskpulse/diskpulse/src/ui"
)

var (
	// SentryDSN Sentry DSN (编译时注入，请勿在源代码中硬编码)
	// 使用 -ldflags="-X main.SentryDSN=your_dsn" 在编译时注入
	// 或设置环境变量 SENTRY_DSN
	SentryDSN = ""
	// SentryEnv Sentry Environment (编译时注入)
	SentryEnv = "production"
)

func getConfig(opts *flag.Options) (*configs.Config, error) {
	var config *configs.Config
	if opts.Conf != "" {
		c, err := configs.NewConfigWithFile(opts.Conf)
		if err != nil {
			return nil, err
		}
		config = c
	} else if c, err := getConfigBesidesExecutable(); err == nil {
		config = c
	} else {
		config = configs.NewConfig()
	}
	// 命令行中显式指定的参数优先于配置文件
	opts.Apply(config)
	return config, config.Verify()
}

func getConfigBesidesExecutable() (*configs.Config, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(filepath.Dir(exePath), "config.yml")
	return configs.NewConfigWithFile(configPath)
}

func initSentry(config *configs.Config) {
	// DSN 来源优先级：编译时注入 > 环境变量 SENTRY_DSN
	sentryDSN := SentryDSN
	if sentryDSN == "" {
		sentryDSN = os.Getenv("SENTRY_DSN")
	}
	if !config.Sentry.Enable || sentryDSN == "" {
		return
	}
	environment := SentryEnv
	if config.Debug {
		environment = "development"
	}
	if err := dpsentry.Init(sentryDSN, environment, consts.AppVersion); err != nil {
		// Sentry 初始化失败不影响程序运行
		fmt.Fprintf(os.Stderr, "警告: Sentry 初始化失败: %v\n", err)
	}
}

func main() {
	// 程序退出时刷新 Sentry 事件队列
	defer dpsentry.Flush(2 * time.Second)
	// 捕获主 goroutine 的 panic
	defer dpsentry.Recover()

	opts, err := flag.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	config, err := getConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if opts.WriteConfig != "" {
		config.File = opts.WriteConfig
		if err := config.Marshal(); err != nil {
			fmt.Fprintf(os.Stderr, "写入配置文件失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("config written to %s\n", opts.WriteConfig)
		return
	}

	configs.SetCurrentConfig(config)
	initSentry(config)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	logger, err := log.New(rootCtx, opts.NoUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("%s Version: %s Link Start", consts.AppName, consts.AppVersion)
	if config.File != "" {
		logger.Debugf("config path: %s.", config.File)
	}
	logger.Debugf("%+v", consts.GetAppInfo())
	logger.Debugf("%+v", configs.GetCurrentConfig())

	store := iostats.NewFrameStore()
	collector := metrics.NewCollector()
	sinks := []iostats.Sink{store, collector}

	var dashboard *ui.Dashboard
	if !opts.NoUI {
		dashboard = ui.New()
		sinks = append(sinks, dashboard)
	}

	monitor := iostats.NewMonitor(config.IOStatsConfig(), proctable.New(config.ProcTableOptions()), sinks...)
	if dashboard != nil {
		dashboard.SetRowLimiter(monitor)
	}
	if err := monitor.Start(rootCtx); err != nil {
		logger.WithError(err).Error("启动磁盘 I/O 监控失败")
		fmt.Fprintf(os.Stderr, "启动磁盘 I/O 监控失败: %v\n", err)
		os.Exit(1)
	}
	if opts.NoUI && monitor.Notice() != "" {
		logger.Warn(monitor.Notice())
	}

	var server *servers.Server
	if config.RPC.Enable {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collector)
		registry.MustRegister(prometheus.NewGoCollector())
		server = servers.NewServer(config.RPC.Bind, store, registry)
		if err := server.Start(rootCtx); err != nil {
			logger.WithError(err).Error("failed to init server")
		}
	}

	c := make(chan os.Signal, 1)
	// 使用 os.Interrupt 更跨平台，在 Windows 上 SIGHUP 可能不被支持
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	dpsentry.Go(func() {
		select {
		case <-c:
			logger.Info("Received shutdown signal, closing...")
			rootCancel()
		case <-rootCtx.Done():
		}
	})

	if dashboard != nil {
		// 仪表盘在主 goroutine 中运行，返回时终端已经恢复
		if err := dashboard.Run(rootCtx); err != nil {
			logger.WithError(err).Error("终端仪表盘异常退出")
			fmt.Fprintln(os.Stderr, err.Error())
		}
	} else {
		<-rootCtx.Done()
	}
	rootCancel()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := server.Close(shutdownCtx); err != nil {
			logger.WithError(err).Warn("关闭 HTTP 服务失败")
		}
		cancel()
	}
	// 诊断信息只能在终端恢复之后输出，否则会打乱仪表盘画面
	if diagnostic := monitor.Close(); diagnostic != "" {
		logger.WithField("diagnostic", diagnostic).Warn("IOPS 采集器异常退出")
		fmt.Fprintln(os.Stderr, diagnostic)
	}
	logger.Info("Bye~")
}
