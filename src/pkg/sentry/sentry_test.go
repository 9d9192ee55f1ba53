package sentry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "tracer exited", "tracer exited"},
		{"mac home", "open /Users/alice/Library/x.db", "open /Users/[REDACTED]/Library/x.db"},
		{"linux home", "/home/bob/.cache/diskpulse", "/home/[REDACTED]/.cache/diskpulse"},
		{"key value", "dsn=https://abc@example.com/1", "dsn=[REDACTED]"},
		{"colon", "password: hunter2", "password=[REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeString(tt.in))
		})
	}
}

func TestBeforeSendHook(t *testing.T) {
	event := &sentry.Event{
		Message: "stop failed in /Users/alice/bin",
		Extra: map[string]interface{}{
			"auth_token": "abc",
			"count":      3,
			"nested":     map[string]interface{}{"path": "/home/bob/x"},
		},
		Tags: map[string]string{"secret": "x", "cmd": "/Users/alice/fs_usage"},
	}

	got := beforeSendHook(event, nil)

	assert.Equal(t, "stop failed in /Users/[REDACTED]/bin", got.Message)
	assert.Equal(t, redacted, got.Extra["auth_token"])
	assert.Equal(t, 3, got.Extra["count"])
	assert.Equal(t, map[string]interface{}{"path": "/home/[REDACTED]/x"}, got.Extra["nested"])
	assert.Equal(t, redacted, got.Tags["secret"])
	assert.Equal(t, "/Users/[REDACTED]/fs_usage", got.Tags["cmd"])
}

func TestLoadOrCreateDeviceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", deviceIDFileName)

	first := loadOrCreateDeviceID(path)
	require.True(t, isValidDeviceID(first))

	second := loadOrCreateDeviceID(path)
	assert.Equal(t, first, second, "应复用已保存的设备 ID")

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	third := loadOrCreateDeviceID(path)
	assert.NotEqual(t, "garbage", third)
	assert.True(t, isValidDeviceID(third))
}

func TestGoWithPanicHandler(t *testing.T) {
	got := make(chan interface{}, 1)
	GoWithPanicHandler(func() {
		panic("boom")
	}, func(r interface{}) {
		got <- r
	})
	assert.Equal(t, "boom", <-got)
}

func TestGo_RecoversWithoutInit(t *testing.T) {
	done := make(chan struct{})
	Go(func() {
		defer close(done)
		panic("ignored")
	})
	<-done
}

func TestInit_EmptyDSN(t *testing.T) {
	require.NoError(t, Init("", "test", "dev"))
	assert.False(t, enabled.Load())
	Flush(0)
}
