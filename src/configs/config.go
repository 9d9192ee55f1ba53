package configs

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/diskpulse/diskpulse/src/pkg/iostats"
	"github.com/diskpulse/diskpulse/src/pkg/proctable"
)

// ErrConfigMissing 配置为 nil
var ErrConfigMissing = errors.New("配置不存在")

const minInterval = 100 * time.Millisecond

// RPC HTTP 接口配置
type RPC struct {
	Enable bool   `yaml:"enable" json:"enable"`
	Bind   string `yaml:"bind" json:"bind"`
}

var defaultRPC = RPC{
	Enable: false,
	Bind:   "127.0.0.1:9367",
}

func (r *RPC) verify() error {
	if r == nil {
		return nil
	}
	if !r.Enable {
		return nil
	}
	if _, err := net.ResolveTCPAddr("tcp", r.Bind); err != nil {
		return fmt.Errorf("无效的RPC绑定地址: %w", err)
	}
	return nil
}

// IOPS 磁盘操作次数采集配置
type IOPS struct {
	Enable     bool     `yaml:"enable" json:"enable"`
	TracerPath string   `yaml:"tracer_path" json:"tracer_path"`
	TracerArgs []string `yaml:"tracer_args" json:"tracer_args"`
}

// Log 日志配置
type Log struct {
	// OutPutFolder 日志目录，为空时不写日志文件
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	// RotateDays 按天滚动日志时最多保留的天数（<=0 表示不清理）
	RotateDays int `yaml:"rotate_days" json:"rotate_days"`
}

// Sentry 崩溃上报配置，DSN 来自编译参数或环境变量 SENTRY_DSN
type Sentry struct {
	Enable bool `yaml:"enable" json:"enable"`
}

// NameCache 进程名缓存
type NameCache struct {
	Size int           `yaml:"size" json:"size"`
	TTL  time.Duration `yaml:"ttl" json:"ttl"`
}

// Config 程序配置
type Config struct {
	File string `yaml:"-" json:"-"`

	Interval  time.Duration `yaml:"interval" json:"interval"`
	RowLimit  int           `yaml:"row_limit" json:"row_limit"`
	Debug     bool          `yaml:"debug" json:"debug"`
	IOPS      IOPS          `yaml:"iops" json:"iops"`
	Log       Log           `yaml:"log" json:"log"`
	RPC       RPC           `yaml:"rpc" json:"rpc"`
	Sentry    Sentry        `yaml:"sentry" json:"sentry"`
	NameCache NameCache     `yaml:"name_cache" json:"name_cache"`
}

// 使用 atomic.Value 存放当前配置指针，避免并发读写造成 data race
var config atomic.Value // stores *Config

// 单独的 Debug 原子标志，便于高频读取
var currentDebug atomic.Bool

// SetCurrentConfig 替换全局配置
func SetCurrentConfig(cfg *Config) {
	if cfg == nil {
		config.Store((*Config)(nil))
		currentDebug.Store(false)
		return
	}
	config.Store(cfg)
	currentDebug.Store(cfg.Debug)
}

// GetCurrentConfig 返回全局配置，未设置时为 nil
func GetCurrentConfig() *Config {
	v := config.Load()
	if v == nil {
		return nil
	}
	return v.(*Config)
}

// IsDebug 提供并发安全、低开销的 Debug 值读取
func IsDebug() bool {
	return currentDebug.Load()
}

// SetDebug 切换调试模式，只修改内存中的配置
func SetDebug(v bool) *Config {
	next := NewConfig()
	if cur := GetCurrentConfig(); cur != nil {
		clone := *cur
		next = &clone
	}
	next.Debug = v
	SetCurrentConfig(next)
	return next
}

func defaultConfig() Config {
	tracer := iostats.DefaultTracerConfig()
	return Config{
		Interval: time.Second,
		RowLimit: 20,
		Debug:    false,
		IOPS: IOPS{
			Enable:     true,
			TracerPath: tracer.Path,
			TracerArgs: tracer.Args,
		},
		Log: Log{
			OutPutFolder: defaultLogFolder(),
			RotateDays:   7,
		},
		RPC:    defaultRPC,
		Sentry: Sentry{Enable: false},
		NameCache: NameCache{
			Size: 4096,
			TTL:  10 * time.Minute,
		},
	}
}

// defaultLogFolder 仪表盘占用终端，日志默认写到用户缓存目录
func defaultLogFolder() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "diskpulse")
	}
	return filepath.Join(dir, "diskpulse", "logs")
}

// NewConfig 返回默认配置
func NewConfig() *Config {
	c := defaultConfig()
	return &c
}

// Verify will return an error when this config has problem.
func (c *Config) Verify() error {
	if c == nil {
		return ErrConfigMissing
	}
	if c.Interval < minInterval {
		return fmt.Errorf("刷新间隔不能小于 %s", minInterval)
	}
	if c.RowLimit < 1 {
		return fmt.Errorf("显示行数必须大于 0")
	}
	if err := c.RPC.verify(); err != nil {
		return err
	}
	if c.NameCache.Size < 0 {
		return fmt.Errorf("进程名缓存大小不能为负数")
	}
	return nil
}

// IOStatsConfig 转换为采集层配置
func (c *Config) IOStatsConfig() iostats.Config {
	return iostats.Config{
		Interval:    c.Interval,
		RowLimit:    c.RowLimit,
		IOPSEnabled: c.IOPS.Enable,
		Tracer: iostats.TracerConfig{
			Path: c.IOPS.TracerPath,
			Args: append([]string(nil), c.IOPS.TracerArgs...),
		},
	}
}

// ProcTableOptions 转换为进程表选项
func (c *Config) ProcTableOptions() proctable.Options {
	return proctable.Options{
		NameCacheSize: c.NameCache.Size,
		NameCacheTTL:  c.NameCache.TTL,
	}
}

// NewConfigWithBytes 在默认配置之上解析 YAML
func NewConfigWithBytes(b []byte) (*Config, error) {
	config := defaultConfig()
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// NewConfigWithFile 读取配置文件。
// 不会把补全后的配置写回文件：以 sudo 运行时写回会把文件属主改成 root。
func NewConfigWithFile(file string) (*Config, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		// 进行权限诊断，提供更详细的错误信息
		diagInfo := DiagnoseFilePermission(file).FormatError()
		if diagInfo != "" {
			return nil, fmt.Errorf("can`t open file: %s%s", file, diagInfo)
		}
		return nil, fmt.Errorf("can`t open file: %s", file)
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", file, err)
	}
	config.File = file
	return config, nil
}

// Marshal 把配置连同注释写入 c.File
func (c *Config) Marshal() error {
	if c.File == "" {
		return errors.New("config path not set")
	}

	// 先序列化为字节再解析为 Node，便于注入注释
	var node yaml.Node
	tempBytes, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(tempBytes, &node); err != nil {
		return err
	}
	DecorateConfigNode(&node)

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&node); err != nil {
		return err
	}
	return os.WriteFile(c.File, buf.Bytes(), 0644)
}
