package flag

import (
	"time"

	"github.com/alecthomas/kingpin"

	"github.com/diskpulse/diskpulse/src/configs"
	"github.com/diskpulse/diskpulse/src/consts"
)

// Options 命令行参数。
// 数值类参数为 0、字符串为空表示未在命令行指定，不覆盖配置文件。
type Options struct {
	Conf        string
	WriteConfig string
	Interval    time.Duration
	Rows        int
	NoIOPS      bool
	NoUI        bool
	Debug       bool
	RPCBind     string
}

func newApp(o *Options) *kingpin.Application {
	app := kingpin.New(consts.AppName, "Live per-process disk bandwidth and IOPS monitor.")
	app.Version(consts.AppVersion)
	app.HelpFlag.Short('h')

	app.Flag("config", "Config file.").Short('c').StringVar(&o.Conf)
	app.Flag("write-config", "Write the effective config with comments to this file and exit.").StringVar(&o.WriteConfig)
	app.Flag("interval", "Refresh interval, e.g. 1s, 500ms.").Short('i').DurationVar(&o.Interval)
	app.Flag("rows", "Rows shown per panel.").Short('n').IntVar(&o.Rows)
	app.Flag("no-iops", "Disable IOPS collection even when running as root.").BoolVar(&o.NoIOPS)
	app.Flag("no-ui", "Run without the terminal dashboard, logging to stderr.").BoolVar(&o.NoUI)
	app.Flag("debug", "Enable debug logging.").Short('d').BoolVar(&o.Debug)
	app.Flag("rpc-bind", "Enable the HTTP API and bind it to this address.").StringVar(&o.RPCBind)
	return app
}

// Parse 解析命令行参数，不包括程序名
func Parse(args []string) (*Options, error) {
	o := new(Options)
	if _, err := newApp(o).Parse(args); err != nil {
		return nil, err
	}
	return o, nil
}

// GenConfigFromFlags 在默认配置上应用命令行参数
func (o *Options) GenConfigFromFlags() *configs.Config {
	c := configs.NewConfig()
	o.Apply(c)
	return c
}

// Apply 用命令行中显式指定的参数覆盖配置
func (o *Options) Apply(c *configs.Config) {
	if o.Interval != 0 {
		c.Interval = o.Interval
	}
	if o.Rows != 0 {
		c.RowLimit = o.Rows
	}
	if o.NoIOPS {
		c.IOPS.Enable = false
	}
	if o.Debug {
		c.Debug = true
	}
	if o.RPCBind != "" {
		c.RPC.Enable = true
		c.RPC.Bind = o.RPCBind
	}
}
