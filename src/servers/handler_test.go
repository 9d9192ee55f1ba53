package servers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diskpulse/diskpulse/src/metrics"
	"github.com/diskpulse/diskpulse/src/pkg/iostats"
)

func opsPtr(n uint64) *iostats.OpsPerSecond {
	v := iostats.OpsPerSecond(n)
	return &v
}

func testFrame() iostats.Frame {
	return iostats.Frame{
		Views: iostats.Views{
			ByBandwidth: []iostats.ProcessIOStats{
				{PID: 10, Name: "dd", ReadBytes: 250, ReadOps: opsPtr(0), WriteOps: opsPtr(0)},
				{PID: 11, Name: "cp", WriteBytes: 100, ReadOps: opsPtr(0), WriteOps: opsPtr(0)},
			},
			ByIOPS: []iostats.ProcessIOStats{
				{PID: 500, Name: "myproc", ReadOps: opsPtr(3), WriteOps: opsPtr(2)},
			},
		},
		Devices:     []iostats.DeviceIOStats{{Device: "disk0", ReadBytes: 4096, ReadOps: 2}},
		Timestamp:   time.UnixMilli(1700000000000),
		IOPSEnabled: true,
		ParserStats: iostats.ParserStats{IOLines: 5, NonIOLines: 1},
		RowLimit:    20,
	}
}

type decodedResp struct {
	ErrNo  int             `json:"err_no"`
	ErrMsg string          `json:"err_msg"`
	Data   json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, h http.Handler, target string) (int, decodedResp) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var resp decodedResp
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func newTestRouter(frame *iostats.Frame) (http.Handler, *metrics.Collector) {
	store := iostats.NewFrameStore()
	collector := metrics.NewCollector()
	if frame != nil {
		store.Publish(*frame)
		collector.Publish(*frame)
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	return initMux(store, registry), collector
}

func TestGetProcesses(t *testing.T) {
	frame := testFrame()
	h, _ := newTestRouter(&frame)

	tests := []struct {
		name     string
		target   string
		wantCode int
		wantPIDs []int32
	}{
		{"默认带宽视图", "/api/processes", http.StatusOK, []int32{10, 11}},
		{"IOPS 视图", "/api/processes?view=iops", http.StatusOK, []int32{500}},
		{"限制行数", "/api/processes?limit=1", http.StatusOK, []int32{10}},
		{"limit=0 不限制", "/api/processes?limit=0", http.StatusOK, []int32{10, 11}},
		{"无效视图", "/api/processes?view=cpu", http.StatusBadRequest, nil},
		{"无效 limit", "/api/processes?limit=-1", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := doRequest(t, h, tt.target)
			require.Equal(t, tt.wantCode, code)
			if tt.wantCode != http.StatusOK {
				assert.Equal(t, tt.wantCode, resp.ErrNo)
				return
			}
			var data processesResp
			require.NoError(t, json.Unmarshal(resp.Data, &data))
			pids := make([]int32, 0, len(data.Processes))
			for _, p := range data.Processes {
				pids = append(pids, p.PID)
			}
			assert.Equal(t, tt.wantPIDs, pids)
			assert.Equal(t, int64(1700000000000), data.Timestamp)
		})
	}
}

func TestGetProcesses_NoData(t *testing.T) {
	h, _ := newTestRouter(nil)
	code, resp := doRequest(t, h, "/api/processes")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, http.StatusServiceUnavailable, resp.ErrNo)
}

func TestGetProcesses_IOPSDisabled(t *testing.T) {
	frame := testFrame()
	frame.IOPSEnabled = false
	h, _ := newTestRouter(&frame)
	code, _ := doRequest(t, h, "/api/processes?view=iops")
	assert.Equal(t, http.StatusConflict, code)
}

func TestGetProcess(t *testing.T) {
	frame := testFrame()
	h, _ := newTestRouter(&frame)

	code, resp := doRequest(t, h, "/api/processes/500")
	require.Equal(t, http.StatusOK, code)
	var s iostats.ProcessIOStats
	require.NoError(t, json.Unmarshal(resp.Data, &s))
	assert.Equal(t, "myproc", s.Name)
	require.NotNil(t, s.ReadOps)
	assert.Equal(t, iostats.OpsPerSecond(3), *s.ReadOps)

	code, _ = doRequest(t, h, "/api/processes/42")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = doRequest(t, h, "/api/processes/abc")
	assert.Equal(t, http.StatusNotFound, code, "路由只匹配数字 pid")
}

func TestGetDevices(t *testing.T) {
	h, _ := newTestRouter(nil)
	code, _ := doRequest(t, h, "/api/devices")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	frame := testFrame()
	h, _ = newTestRouter(&frame)
	code, resp := doRequest(t, h, "/api/devices")
	require.Equal(t, http.StatusOK, code)
	var data devicesResp
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Devices, 1)
	assert.Equal(t, "disk0", data.Devices[0].Device)
	assert.Equal(t, iostats.BytesPerSecond(4096), data.Devices[0].ReadBytes)
}

func TestGetStatus(t *testing.T) {
	frame := testFrame()
	frame.Notice = "hello"
	h, _ := newTestRouter(&frame)

	code, resp := doRequest(t, h, "/api/status")
	require.Equal(t, http.StatusOK, code)
	var status statusResp
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, "diskpulse", status.AppName)
	assert.True(t, status.IOPSEnabled)
	assert.Equal(t, "hello", status.Notice)
	assert.Equal(t, uint64(5), status.ParserStats.IOLines)
	assert.Equal(t, int64(1700000000000), status.LastUpdate)
	assert.NotZero(t, status.SelfMemory.Sys)
}

func TestMetricsEndpoint(t *testing.T) {
	frame := testFrame()
	h, _ := newTestRouter(&frame)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `diskpulse_process_read_ops_per_second{name="myproc",pid="500"} 3`)
	assert.Contains(t, string(body), `diskpulse_parser_lines_total{kind="io"} 5`)
}

func TestServer_StartAndClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer("127.0.0.1:0", iostats.NewFrameStore(), prometheus.NewRegistry())
	require.NoError(t, s.Start(ctx))
	require.NotEmpty(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Close(context.Background()))
}

func TestAccessLog_RecordsStatus(t *testing.T) {
	h := accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
