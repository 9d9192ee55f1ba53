package log

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// rotatingFile 每天一个日志文件 <prefix>-YYYY-MM-DD.log，
// keepDays > 0 时切换文件后删除 keepDays 天之前的旧文件。
type rotatingFile struct {
	dir      string
	prefix   string
	keepDays int
	clock    func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func openRotatingFile(dir, prefix string, keepDays int) (*rotatingFile, error) {
	r := &rotatingFile{dir: dir, prefix: prefix, keepDays: keepDays, clock: time.Now}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureDay(r.clock()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureDay(r.clock()); err != nil {
		return 0, err
	}
	return r.file.Write(p)
}

// Close 关闭当前文件，之后的 Write 会重新打开
func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file, r.day = nil, ""
	return err
}

func (r *rotatingFile) pathFor(day string) string {
	return filepath.Join(r.dir, r.prefix+"-"+day+".log")
}

// ensureDay 调用方持有 mu
func (r *rotatingFile) ensureDay(now time.Time) error {
	day := now.Format(dayLayout)
	if r.file != nil && r.day == day {
		return nil
	}
	f, err := os.OpenFile(r.pathFor(day), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if r.file != nil {
		_ = r.file.Close()
	}
	r.file, r.day = f, day
	if r.keepDays > 0 {
		r.prune(now.AddDate(0, 0, -r.keepDays).Format(dayLayout))
	}
	return nil
}

// prune 删除日期早于 oldest 的日志。日期格式固定宽度，可以直接按字符串比较。
func (r *rotatingFile) prune(oldest string) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		day, ok := r.dayOf(e.Name())
		if !ok || e.IsDir() || day >= oldest {
			continue
		}
		_ = os.Remove(filepath.Join(r.dir, e.Name()))
	}
}

func (r *rotatingFile) dayOf(name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, r.prefix+"-")
	if !ok {
		return "", false
	}
	day, ok := strings.CutSuffix(rest, ".log")
	if !ok {
		return "", false
	}
	if _, err := time.Parse(dayLayout, day); err != nil {
		return "", false
	}
	return day, true
}
