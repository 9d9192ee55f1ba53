package iostats

import (
	"sync"
	"sync/atomic"
)

// AtomicIOPSCounter 单个进程自上次重置以来的读写操作次数。
// 两个字段各自原子更新，递增时不持有任何锁。
type AtomicIOPSCounter struct {
	reads  atomic.Uint64
	writes atomic.Uint64
}

// swap 把两个字段置零并返回旧值。两次 Swap 之间可能有新的递增落入，
// 这部分会计入下一次快照，不会丢失。
func (c *AtomicIOPSCounter) swap() OpsCount {
	return OpsCount{
		Reads:  c.reads.Swap(0),
		Writes: c.writes.Swap(0),
	}
}

func (c *AtomicIOPSCounter) isZero() bool {
	return c.reads.Load() == 0 && c.writes.Load() == 0
}

// CounterTable pid 到计数器的映射，由解析 goroutine 与采集方共享。
// 插入和删除需要写锁；递增和置零只需要读锁。
type CounterTable struct {
	mu       sync.RWMutex
	counters map[int32]*AtomicIOPSCounter
}

// NewCounterTable 创建空的计数表
func NewCounterTable() *CounterTable {
	return &CounterTable{counters: make(map[int32]*AtomicIOPSCounter)}
}

// record 对 pid 的计数器执行 add。
// 快速路径只持有共享读锁，读锁的作用是防止计数器在递增前后被清理删除，
// 递增本身是原子操作，多个读者之间互不阻塞。
// 计数器不存在时加写锁，并再次检查是否已被其他路径插入。
func (t *CounterTable) record(pid int32, add func(c *AtomicIOPSCounter)) {
	t.mu.RLock()
	if counter, ok := t.counters[pid]; ok {
		add(counter)
		t.mu.RUnlock()
		return
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	counter, ok := t.counters[pid]
	if !ok {
		counter = &AtomicIOPSCounter{}
		t.counters[pid] = counter
	}
	add(counter)
}

// RecordRead 记录一次读操作
func (t *CounterTable) RecordRead(pid int32) {
	t.record(pid, func(c *AtomicIOPSCounter) { c.reads.Add(1) })
}

// RecordWrite 记录一次写操作
func (t *CounterTable) RecordWrite(pid int32) {
	t.record(pid, func(c *AtomicIOPSCounter) { c.writes.Add(1) })
}

// SnapshotAndReset 返回每个进程自上次调用以来的读写次数，并把计数置零。
//
// 快照为 0 的进程是清理候选；随后在写锁下逐个复查，仍为 0 才删除，
// 防止快照和清理之间新到达的事件被连同计数器一起丢掉。
// 返回值包含本周期所有进程（包括刚被删除的）。
func (t *CounterTable) SnapshotAndReset() map[int32]OpsCount {
	snapshot, candidates := t.swapAll()
	t.removeIfZero(candidates)
	return snapshot
}

// swapAll 在读锁下把所有计数器置零，返回旧值和快照为 0 的 pid
func (t *CounterTable) swapAll() (map[int32]OpsCount, []int32) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make(map[int32]OpsCount, len(t.counters))
	var candidates []int32
	for pid, counter := range t.counters {
		count := counter.swap()
		snapshot[pid] = count
		if count.Total() == 0 {
			candidates = append(candidates, pid)
		}
	}
	return snapshot, candidates
}

// removeIfZero 在写锁下删除仍然为 0 的候选计数器
func (t *CounterTable) removeIfZero(candidates []int32) {
	if len(candidates) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, pid := range candidates {
		if counter, ok := t.counters[pid]; ok && counter.isZero() {
			delete(t.counters, pid)
		}
	}
}

// Len 当前跟踪的进程数
func (t *CounterTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.counters)
}

// Has 是否正在跟踪该进程
func (t *CounterTable) Has(pid int32) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.counters[pid]
	return ok
}
