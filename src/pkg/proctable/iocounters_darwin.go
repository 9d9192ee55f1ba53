package proctable

import (
	"context"
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/shirou/gopsutil/v3/process"
)

// gopsutil 在 macOS 上没有实现进程 IOCounters，这里直接调用 proc_pid_rusage
const (
	rusageInfoV4    = 4   // RUSAGE_INFO_V4
	rusageV4Size    = 296 // sizeof(rusage_info_v4)
	diskReadOffset  = 144 // ri_diskio_bytesread
	diskWriteOffset = 152 // ri_diskio_byteswritten
)

var (
	procPidRusageFn   func(pid int32, flavor int32, buffer uintptr) int32
	procPidRusageOnce sync.Once
	procPidRusageOK   bool
)

func initProcPidRusage() {
	handle, err := purego.Dlopen("/usr/lib/libSystem.B.dylib", purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return
	}
	purego.RegisterLibFunc(&procPidRusageFn, handle, "proc_pid_rusage")
	procPidRusageOK = true
}

// readIOCounters 只能读取同一用户的进程，root 下可读取全部进程
func readIOCounters(_ context.Context, p *process.Process) (uint64, uint64, bool) {
	procPidRusageOnce.Do(initProcPidRusage)
	if !procPidRusageOK {
		return 0, 0, false
	}

	buf := make([]byte, rusageV4Size)
	if ret := procPidRusageFn(p.Pid, rusageInfoV4, uintptr(unsafe.Pointer(&buf[0]))); ret != 0 {
		return 0, 0, false
	}
	readBytes := binary.LittleEndian.Uint64(buf[diskReadOffset : diskReadOffset+8])
	writeBytes := binary.LittleEndian.Uint64(buf[diskWriteOffset : diskWriteOffset+8])
	return readBytes, writeBytes, true
}
