// Package sentry 封装 Sentry 错误上报。
// 只上报崩溃，事件发送前会清理路径、命令行中的用户信息。
package sentry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

var enabled atomic.Bool

// Init 初始化 Sentry SDK。
// dsn 为空时不初始化，此时下面的 goroutine 辅助函数只做 panic 恢复。
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}
	opts := sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		BeforeSend:       beforeSendHook,
	}
	if err := sentry.Init(opts); err != nil {
		return err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{ID: GetAnonymousDeviceID()})
	})
	enabled.Store(true)
	return nil
}

// Flush 程序退出前调用，等待未发送的事件
func Flush(timeout time.Duration) {
	if enabled.Load() {
		sentry.Flush(timeout)
	}
}

func hubFor(ctx context.Context) *sentry.Hub {
	if ctx != nil {
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			return hub
		}
	}
	return sentry.CurrentHub()
}

// capture 上报 recover 得到的值，未初始化时什么都不做
func capture(ctx context.Context, recovered interface{}) {
	if !enabled.Load() {
		return
	}
	hub := hubFor(ctx)
	if hub == nil {
		return
	}
	if ctx == nil {
		hub.Recover(recovered)
		return
	}
	hub.RecoverWithContext(ctx, recovered)
}

// Recover 在 defer 中直接调用。recover() 必须出现在被 defer 的函数里。
func Recover() {
	if r := recover(); r != nil {
		capture(nil, r)
	}
}

// Go 启动带 panic 恢复的 goroutine
func Go(f func()) {
	GoWithPanicHandler(f, nil)
}

// GoWithContext 同 Go，panic 通过 ctx 上的 Hub 上报
func GoWithContext(ctx context.Context, f func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				capture(ctx, r)
			}
		}()
		f(ctx)
	}()
}

// GoWithPanicHandler 同 Go，上报之后再把 panic 的值交给 onPanic，
// 供调用方得知 goroutine 异常退出。
func GoWithPanicHandler(f func(), onPanic func(recovered interface{})) {
	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			capture(nil, r)
			if onPanic != nil {
				onPanic(r)
			}
		}()
		f()
	}()
}
