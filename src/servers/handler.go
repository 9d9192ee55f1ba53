package servers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/diskpulse/diskpulse/src/consts"
	"github.com/diskpulse/diskpulse/src/pkg/iostats"
	"github.com/diskpulse/diskpulse/src/pkg/memstats"
)

const (
	viewBandwidth = "bandwidth"
	viewIOPS      = "iops"
)

type handler struct {
	frames FrameSource
}

type statusResp struct {
	consts.Info
	IOPSEnabled bool                     `json:"iops_enabled"`
	ParserError bool                     `json:"parser_error"`
	ParserStats iostats.ParserStats      `json:"parser_stats"`
	Notice      string                   `json:"notice,omitempty"`
	RowLimit    int                      `json:"row_limit"`
	LastUpdate  int64                    `json:"last_update"` // 毫秒时间戳，还没有数据时为 0
	SelfMemory  memstats.SelfMemoryStats `json:"self_memory"`
}

func (h *handler) getStatus(writer http.ResponseWriter, r *http.Request) {
	resp := statusResp{
		Info:       consts.GetAppInfo(),
		SelfMemory: memstats.GetSelfMemory(),
	}
	if frame, ok := h.frames.Latest(); ok {
		resp.IOPSEnabled = frame.IOPSEnabled
		resp.ParserError = frame.ParserError
		resp.ParserStats = frame.ParserStats
		resp.Notice = frame.Notice
		resp.RowLimit = frame.RowLimit
		resp.LastUpdate = frame.Timestamp.UnixMilli()
	}
	writeJSON(writer, commonResp{Data: resp})
}

type processesResp struct {
	View      string                   `json:"view"`
	Timestamp int64                    `json:"timestamp"`
	Processes []iostats.ProcessIOStats `json:"processes"`
}

// getProcesses 返回某个视图的进程列表
// 参数 view=bandwidth|iops（默认 bandwidth），limit 默认为当前行数限制，0 表示不限制
func (h *handler) getProcesses(writer http.ResponseWriter, r *http.Request) {
	frame, ok := h.frames.Latest()
	if !ok {
		writeJsonWithStatusCode(writer, http.StatusServiceUnavailable, commonResp{
			ErrNo:  http.StatusServiceUnavailable,
			ErrMsg: "还没有采集数据",
		})
		return
	}

	view := r.URL.Query().Get("view")
	if view == "" {
		view = viewBandwidth
	}
	var list []iostats.ProcessIOStats
	switch view {
	case viewBandwidth:
		list = frame.ByBandwidth
	case viewIOPS:
		if !frame.IOPSEnabled {
			writeJsonWithStatusCode(writer, http.StatusConflict, commonResp{
				ErrNo:  http.StatusConflict,
				ErrMsg: "IOPS 采集未启用",
			})
			return
		}
		list = frame.ByIOPS
	default:
		writeJsonWithStatusCode(writer, http.StatusBadRequest, commonResp{
			ErrNo:  http.StatusBadRequest,
			ErrMsg: fmt.Sprintf("invalid view: %s", view),
		})
		return
	}

	limit := frame.RowLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 0 {
			writeJsonWithStatusCode(writer, http.StatusBadRequest, commonResp{
				ErrNo:  http.StatusBadRequest,
				ErrMsg: fmt.Sprintf("invalid limit: %s", limitStr),
			})
			return
		}
		limit = v
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []iostats.ProcessIOStats{}
	}

	writeJSON(writer, commonResp{Data: processesResp{
		View:      view,
		Timestamp: frame.Timestamp.UnixMilli(),
		Processes: list,
	}})
}

// getProcess 返回单个进程在最近一个周期的数据
func (h *handler) getProcess(writer http.ResponseWriter, r *http.Request) {
	pid, err := strconv.ParseInt(mux.Vars(r)["pid"], 10, 32)
	if err != nil {
		writeJsonWithStatusCode(writer, http.StatusBadRequest, commonResp{
			ErrNo:  http.StatusBadRequest,
			ErrMsg: err.Error(),
		})
		return
	}
	frame, _ := h.frames.Latest()
	for _, list := range [][]iostats.ProcessIOStats{frame.ByBandwidth, frame.ByIOPS} {
		for _, s := range list {
			if s.PID == int32(pid) {
				writeJSON(writer, commonResp{Data: s})
				return
			}
		}
	}
	writeJsonWithStatusCode(writer, http.StatusNotFound, commonResp{
		ErrNo:  http.StatusNotFound,
		ErrMsg: fmt.Sprintf("pid: %d has no disk activity in the last interval", pid),
	})
}

type devicesResp struct {
	Timestamp int64                   `json:"timestamp"`
	Devices   []iostats.DeviceIOStats `json:"devices"`
}

// getDevices 返回系统级磁盘设备统计
func (h *handler) getDevices(writer http.ResponseWriter, r *http.Request) {
	frame, ok := h.frames.Latest()
	if !ok {
		writeJsonWithStatusCode(writer, http.StatusServiceUnavailable, commonResp{
			ErrNo:  http.StatusServiceUnavailable,
			ErrMsg: "还没有采集数据",
		})
		return
	}
	devices := frame.Devices
	if devices == nil {
		devices = []iostats.DeviceIOStats{}
	}
	writeJSON(writer, commonResp{Data: devicesResp{
		Timestamp: frame.Timestamp.UnixMilli(),
		Devices:   devices,
	}})
}
