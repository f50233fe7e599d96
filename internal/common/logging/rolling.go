package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RollingFileWriter writes log output to date-stamped files in a directory,
// starting a new file each day and whenever the current file reaches the
// configured size limit. Files are named YYYY-MM-DD-N.log.
type RollingFileWriter struct {
	mu      sync.Mutex
	dir     string
	maxSize int64
	date    string // YYYY-MM-DD of the open file
	index   int
	size    int64
	file    *os.File
}

// NewRollingFileWriter creates the log directory if needed and resumes the
// highest-numbered file for today so restarts do not leave gaps.
func NewRollingFileWriter(dir string, maxSize int64) (*RollingFileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RollingFileWriter{
		dir:     dir,
		maxSize: maxSize,
		date:    time.Now().Format("2006-01-02"),
		index:   1,
	}
	w.index, w.size = findCurrentLogState(dir, w.date)

	if err := w.openCurrent(); err != nil {
		return nil, err
	}
	return w, nil
}

// findCurrentLogState returns the highest index used for the given date and
// the size of that file, defaulting to index 1 with size 0.
func findCurrentLogState(dir, date string) (int, int64) {
	index, size := 1, int64(0)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return index, size
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, date+"-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		idxStr := strings.TrimSuffix(strings.TrimPrefix(name, date+"-"), ".log")
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < index {
			continue
		}
		index = idx
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
	}
	return index, size
}

func (w *RollingFileWriter) filename() string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%d.log", w.date, w.index))
}

func (w *RollingFileWriter) openCurrent() error {
	if w.file != nil {
		w.file.Close()
	}
	file, err := os.OpenFile(w.filename(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	w.file = file
	return nil
}

func (w *RollingFileWriter) rotateIfNeeded() error {
	today := time.Now().Format("2006-01-02")
	switch {
	case today != w.date:
		w.date = today
		w.index = 1
		w.size = 0
	case w.maxSize > 0 && w.size >= w.maxSize:
		w.index++
		w.size = 0
	default:
		return nil
	}
	return w.openCurrent()
}

// Write implements io.Writer. Safe for concurrent use.
func (w *RollingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return 0, err
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Sync flushes the current file to disk.
func (w *RollingFileWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the current file.
func (w *RollingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// CleanupOldLogs removes .log files in dir whose date prefix is older than
// retentionDays. Returns the number of files removed.
func CleanupOldLogs(dir string, retentionDays int) int {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") || len(name) < 10 {
			continue
		}
		fileDate, err := time.ParseInLocation("2006-01-02", name[:10], time.Local)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				Error("Failed to remove old log file", err, String("path", path))
				continue
			}
			removed++
			Info("Removed old log file", String("path", path))
		}
	}
	return removed
}
