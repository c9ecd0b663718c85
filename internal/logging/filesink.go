package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// maxLogFiles bounds how many rotated log files are kept per service
// before the oldest is pruned, mirroring the Python job's
// RotatingFileHandler(backupCount=5) default.
const maxLogFiles = 5

// FileSink writes raw log lines to a per-process file under logDir and
// prunes older files for the same service beyond maxLogFiles, rather
// than rotating a single file in place by size. No rotation library is
// involved: a fresh file is opened on every process start and the
// directory is swept for leftovers from previous runs.
type FileSink struct {
	f *os.File
}

// NewFileSink ensures logDir exists, prunes old files for serviceName
// beyond maxLogFiles, then opens a new timestamped log file for this
// process. serviceName becomes the file prefix so multiple binaries
// (api, reddit-scraper, ...) sharing one log directory don't prune each
// other's history.
func NewFileSink(logDir, serviceName string) (*FileSink, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	pruneOldLogs(logDir, serviceName)

	path := filepath.Join(logDir, fmt.Sprintf("%s_%s.log", serviceName, time.Now().UTC().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

// Write implements io.Writer.
func (s *FileSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	_ = s.f.Sync()
	return s.f.Close()
}

// pruneOldLogs removes the oldest <prefix>_*.log files in logDir once
// more than maxLogFiles exist for that prefix.
func pruneOldLogs(logDir, prefix string) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	want := prefix + "_"
	var logFiles []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), want) && strings.HasSuffix(e.Name(), ".log") {
			logFiles = append(logFiles, e)
		}
	}
	if len(logFiles) <= maxLogFiles {
		return
	}

	sort.Slice(logFiles, func(i, j int) bool { return logFiles[i].Name() < logFiles[j].Name() })

	toRemove := len(logFiles) - maxLogFiles
	for i := 0; i < toRemove; i++ {
		_ = os.Remove(filepath.Join(logDir, logFiles[i].Name()))
	}
}
