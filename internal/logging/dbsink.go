package logging

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// LogStore is the narrow DB dependency the sink needs: batch-inserting
// rows into system_logs. Implemented by internal/store.Store.
type LogStore interface {
	InsertLogs(ctx context.Context, entries []models.LogEntry) error
}

// DBSink batches LogEntry rows and flushes them to Postgres on every
// emission (default batch size 1, to guarantee eventual persistence on
// crash) or on a 5s timer, whichever comes first. Write failures are
// swallowed after a single stderr warning, rate-limited to once per
// minute.
//
// DBSink implements zerolog.LevelWriter, so it attaches directly to the
// global logger as a second destination (AttachSinks) rather than
// requiring call sites to route through a bespoke wrapper type.
type DBSink struct {
	store      LogStore
	batchSize  int
	source     string
	scriptName string

	mu      sync.Mutex
	buf     []models.LogEntry
	closeCh chan struct{}
	wg      sync.WaitGroup

	lastDropWarnMu sync.Mutex
	lastDropWarn   time.Time
}

// NewDBSink starts a DBSink with the given flush batch size (default 1)
// and a background 5s ticker flush. source/scriptName tag every row the
// sink writes, matching the original job's source+script_name columns.
func NewDBSink(store LogStore, batchSize int, source, scriptName string) *DBSink {
	if batchSize <= 0 {
		batchSize = 1
	}
	s := &DBSink{
		store:      store,
		batchSize:  batchSize,
		source:     source,
		scriptName: scriptName,
		closeCh:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.tickerLoop()
	return s
}

func (s *DBSink) tickerLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.closeCh:
			s.flush()
			return
		}
	}
}

// Enqueue adds an entry and flushes immediately once the batch
// threshold is reached.
func (s *DBSink) Enqueue(entry models.LogEntry) {
	s.mu.Lock()
	s.buf = append(s.buf, entry)
	shouldFlush := len(s.buf) >= s.batchSize
	s.mu.Unlock()

	if shouldFlush {
		s.flush()
	}
}

func (s *DBSink) flush() {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()

	if err := s.store.InsertLogs(context.Background(), batch); err != nil {
		s.warnDrop(err, len(batch))
	}
}

func (s *DBSink) warnDrop(err error, n int) {
	s.lastDropWarnMu.Lock()
	if time.Since(s.lastDropWarn) < time.Minute {
		s.lastDropWarnMu.Unlock()
		return
	}
	s.lastDropWarn = time.Now()
	// Unlock before logging: the warning goes through the global
	// logger, which may include this sink and re-enter warnDrop.
	s.lastDropWarnMu.Unlock()
	log.Warn().Err(err).Int("dropped", n).Msg("log DB sink: write failed, entries dropped")
}

// Close flushes any buffered entries and stops the ticker.
func (s *DBSink) Close() {
	close(s.closeCh)
	s.wg.Wait()
}

// Write satisfies io.Writer so DBSink can be combined with other
// writers via zerolog.MultiLevelWriter even when the caller doesn't
// know the level (e.g. a raw zerolog.Event write).
func (s *DBSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter. p is the fully-encoded log
// line zerolog just produced (JSON in production, console text in
// development); it is parsed best-effort into a LogEntry and enqueued
// for batched persistence. A parse failure never fails the caller's
// log call, it just degrades to an unstructured message.
func (s *DBSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	entry := models.LogEntry{
		Timestamp:  time.Now().UTC(),
		Source:     s.source,
		ScriptName: s.scriptName,
		Level:      levelFromZerolog(level),
		Message:    models.TruncateMessage(extractMessage(p)),
		Context:    extractContext(p),
	}
	s.Enqueue(entry)
	return len(p), nil
}

// Bootstrap wires both durable sinks for one process: a DBSink batching
// into system_logs and, when logDir is non-empty, a rotating FileSink
// under it. It calls AttachSinks itself so callers only need to defer
// the returned closer. db/logDir failures never prevent startup: a nil
// component is simply omitted.
func Bootstrap(store LogStore, logDir, serviceName string) io.Closer {
	db := NewDBSink(store, 1, serviceName, serviceName)

	var file *FileSink
	if logDir != "" {
		f, err := NewFileSink(logDir, serviceName)
		if err != nil {
			log.Warn().Err(err).Str("logDir", logDir).Msg("logging: failed to open rotating log file, continuing without it")
		} else {
			file = f
		}
	}

	AttachSinks(db, file)
	return sinkCloser{db: db, file: file}
}

type sinkCloser struct {
	db   *DBSink
	file *FileSink
}

func (c sinkCloser) Close() error {
	c.db.Close()
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}

func levelFromZerolog(level zerolog.Level) models.LogLevel {
	switch level {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return models.LevelDebug
	case zerolog.WarnLevel:
		return models.LevelWarning
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return models.LevelError
	default:
		return models.LevelInfo
	}
}

func extractMessage(p []byte) string {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err == nil {
		if m, ok := raw["message"].(string); ok {
			return m
		}
	}
	return strings.TrimSpace(string(p))
}

func extractContext(p []byte) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err != nil {
		return nil
	}
	for _, k := range []string{"level", "time", "message", "service"} {
		delete(raw, k)
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}
