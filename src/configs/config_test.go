package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNewConfig(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, time.Second, c.Interval)
	assert.Equal(t, 20, c.RowLimit)
	assert.True(t, c.IOPS.Enable)
	assert.Equal(t, "/usr/bin/fs_usage", c.IOPS.TracerPath)
	assert.Equal(t, []string{"-w", "-f", "diskio"}, c.IOPS.TracerArgs)
	assert.False(t, c.RPC.Enable)
	assert.NoError(t, c.Verify())
}

func TestNewConfigWithBytes(t *testing.T) {
	c, err := NewConfigWithBytes([]byte(`
interval: 500ms
row_limit: 5
iops:
  enable: false
rpc:
  enable: true
  bind: 127.0.0.1:9999
name_cache:
  ttl: 1m
`))
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, c.Interval)
	assert.Equal(t, 5, c.RowLimit)
	assert.False(t, c.IOPS.Enable)
	// 未出现的字段保留默认值
	assert.Equal(t, "/usr/bin/fs_usage", c.IOPS.TracerPath)
	assert.Equal(t, "127.0.0.1:9999", c.RPC.Bind)
	assert.Equal(t, time.Minute, c.NameCache.TTL)
	assert.Equal(t, 4096, c.NameCache.Size)

	_, err = NewConfigWithBytes([]byte("interval: [1"))
	assert.Error(t, err)
}

func TestNewConfigWithFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(file, []byte("row_limit: 7\n"), 0644))

	c, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, file, c.File)
	assert.Equal(t, 7, c.RowLimit)

	_, err = NewConfigWithFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "can`t open file")
}

func TestConfig_Marshal(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yml")
	c := NewConfig()
	c.RowLimit = 12
	c.Interval = 2 * time.Second

	assert.Error(t, (&Config{}).Marshal())

	c.File = file
	require.NoError(t, c.Marshal())

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "自动生成")
	assert.Contains(t, string(b), "interval: 2s")

	loaded, err := NewConfigWithFile(file)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.RowLimit)
	assert.Equal(t, 2*time.Second, loaded.Interval)
}

func TestRPC_Verify(t *testing.T) {
	var rpc *RPC
	assert.NoError(t, rpc.verify())
	rpc = new(RPC)
	rpc.Bind = "foo@bar"
	assert.NoError(t, rpc.verify())
	rpc.Enable = true
	assert.Error(t, rpc.verify())
}

func TestConfig_Verify(t *testing.T) {
	var cfg *Config
	assert.ErrorIs(t, cfg.Verify(), ErrConfigMissing)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"默认配置", func(c *Config) {}, false},
		{"间隔过小", func(c *Config) { c.Interval = 10 * time.Millisecond }, true},
		{"最小间隔", func(c *Config) { c.Interval = 100 * time.Millisecond }, false},
		{"行数为 0", func(c *Config) { c.RowLimit = 0 }, true},
		{"RPC 地址无效", func(c *Config) { c.RPC = RPC{Enable: true, Bind: "foo@bar"} }, true},
		{"缓存大小为负", func(c *Config) { c.NameCache.Size = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Verify())
			} else {
				assert.NoError(t, c.Verify())
			}
		})
	}
}

func TestCurrentConfig(t *testing.T) {
	t.Cleanup(func() { SetCurrentConfig(nil) })

	SetCurrentConfig(nil)
	assert.Nil(t, GetCurrentConfig())
	assert.False(t, IsDebug())

	c := NewConfig()
	c.Debug = true
	SetCurrentConfig(c)
	assert.Same(t, c, GetCurrentConfig())
	assert.True(t, IsDebug())

	next := SetDebug(false)
	assert.False(t, IsDebug())
	assert.True(t, c.Debug, "SetDebug 不修改旧的配置对象")
	assert.Same(t, next, GetCurrentConfig())
}

func TestConfig_Conversions(t *testing.T) {
	c := NewConfig()
	c.IOPS.TracerArgs = []string{"-w"}

	ioCfg := c.IOStatsConfig()
	assert.Equal(t, c.Interval, ioCfg.Interval)
	assert.Equal(t, c.RowLimit, ioCfg.RowLimit)
	assert.True(t, ioCfg.IOPSEnabled)
	assert.Equal(t, []string{"-w"}, ioCfg.Tracer.Args)

	ioCfg.Tracer.Args[0] = "changed"
	assert.Equal(t, "-w", c.IOPS.TracerArgs[0])

	opts := c.ProcTableOptions()
	assert.Equal(t, 4096, opts.NameCacheSize)
	assert.Equal(t, 10*time.Minute, opts.NameCacheTTL)
}

func TestDecorateConfigNode(t *testing.T) {
	var doc yaml.Node
	b, err := yaml.Marshal(NewConfig())
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(b, &doc))

	DecorateConfigNode(&doc)
	out, err := yaml.Marshal(&doc)
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "自动生成")
	assert.Contains(t, s, "fs_usage")
	assert.Contains(t, s, "IOPS 采集需要 root 权限")

	assert.Nil(t, lookupKey(doc.Content[0], []string{"iops", "missing"}))
	assert.Nil(t, lookupKey(doc.Content[0], []string{"interval", "x"}))
}
