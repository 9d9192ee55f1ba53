package servers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/diskpulse/diskpulse/src/pkg/iostats"
	dpsentry "github.com/diskpulse/diskpulse/src/pkg/sentry"
)

// FrameSource 提供最近一次采集结果
type FrameSource interface {
	Latest() (iostats.Frame, bool)
}

type commonResp struct {
	ErrNo  int         `json:"err_no"`
	ErrMsg string      `json:"err_msg"`
	Data   interface{} `json:"data"`
}

// Server HTTP 接口
type Server struct {
	server   *http.Server
	listener net.Listener
}

// NewServer 创建 HTTP 服务，gatherer 为 /metrics 的数据源
func NewServer(bind string, frames FrameSource, gatherer prometheus.Gatherer) *Server {
	return &Server{
		server: &http.Server{
			Addr:        bind,
			Handler:     initMux(frames, gatherer),
			ReadTimeout: 10 * time.Second,
		},
	}
}

func initMux(frames FrameSource, gatherer prometheus.Gatherer) *mux.Router {
	h := &handler{frames: frames}

	m := mux.NewRouter()
	m.Use(accessLog)
	m.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	apiRoute := m.PathPrefix("/api").Subrouter()
	apiRoute.HandleFunc("/status", h.getStatus).Methods(http.MethodGet)
	apiRoute.HandleFunc("/processes", h.getProcesses).Methods(http.MethodGet)
	apiRoute.HandleFunc("/processes/{pid:[0-9]+}", h.getProcess).Methods(http.MethodGet)
	apiRoute.HandleFunc("/devices", h.getDevices).Methods(http.MethodGet)
	return m
}

// Start 监听端口并在后台提供服务，ctx 结束时关闭
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = listener

	dpsentry.Go(func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("HTTP 服务异常退出")
		}
	})
	dpsentry.GoWithContext(ctx, func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.Close(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("关闭 HTTP 服务失败")
		}
	})
	logrus.WithField("addr", listener.Addr().String()).Info("HTTP 服务已启动")
	return nil
}

// Addr 实际监听的地址，Start 之前为空
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close 优雅关闭
func (s *Server) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(writer http.ResponseWriter, obj interface{}) {
	writeJsonWithStatusCode(writer, http.StatusOK, obj)
}

func writeJsonWithStatusCode(writer http.ResponseWriter, statusCode int, obj interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	if err := json.NewEncoder(writer).Encode(obj); err != nil {
		logrus.WithError(err).Debug("写入响应失败")
	}
}
