package servers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	applog "github.com/diskpulse/diskpulse/src/log"
)

// statusRecorder 记录处理器写出的状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog 以 debug 级别记录每个请求，错误状态码用 warn
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := applog.GetLogger().WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   rec.status,
			"duration": time.Since(start),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("HTTP 请求失败")
			return
		}
		entry.Debug("HTTP 请求")
	})
}
