package logging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/social-ingest/internal/models"
)

type fakeLogStore struct {
	mu      sync.Mutex
	entries []models.LogEntry
	err     error
}

func (f *fakeLogStore) InsertLogs(ctx context.Context, entries []models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLogStore) snapshot() []models.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.LogEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

func TestDBSink_EnqueueFlushesImmediatelyAtBatchSizeOne(t *testing.T) {
	store := &fakeLogStore{}
	sink := NewDBSink(store, 1, "api", "api")
	defer sink.Close()

	sink.Enqueue(models.LogEntry{Message: "hello"})

	require.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello", store.snapshot()[0].Message)
}

func TestDBSink_EnqueueBuffersUntilBatchSizeReached(t *testing.T) {
	store := &fakeLogStore{}
	sink := NewDBSink(store, 3, "api", "api")
	defer sink.Close()

	sink.Enqueue(models.LogEntry{Message: "one"})
	sink.Enqueue(models.LogEntry{Message: "two"})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, store.snapshot())

	sink.Enqueue(models.LogEntry{Message: "three"})
	require.Eventually(t, func() bool { return len(store.snapshot()) == 3 }, time.Second, 10*time.Millisecond)
}

func TestDBSink_CloseFlushesRemainingBuffer(t *testing.T) {
	store := &fakeLogStore{}
	sink := NewDBSink(store, 10, "api", "api")

	sink.Enqueue(models.LogEntry{Message: "pending"})
	sink.Close()

	assert.Len(t, store.snapshot(), 1)
}

func TestDBSink_WriteLevelParsesJSONLineIntoLogEntry(t *testing.T) {
	store := &fakeLogStore{}
	sink := NewDBSink(store, 1, "reddit-scraper", "reddit-scraper")
	defer sink.Close()

	line := []byte(`{"level":"warn","time":"2026-01-01T00:00:00Z","service":"reddit-scraper","subreddit":"golang","message":"proxy flagged unhealthy"}`)

	n, err := sink.WriteLevel(zerolog.WarnLevel, line)

	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	require.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, time.Second, 10*time.Millisecond)

	entry := store.snapshot()[0]
	assert.Equal(t, models.LevelWarning, entry.Level)
	assert.Equal(t, "proxy flagged unhealthy", entry.Message)
	assert.Equal(t, "golang", entry.Context["subreddit"])
	assert.NotContains(t, entry.Context, "level")
	assert.NotContains(t, entry.Context, "message")
	assert.NotContains(t, entry.Context, "service")
}

func TestDBSink_WriteLevelFallsBackToRawTextWhenNotJSON(t *testing.T) {
	store := &fakeLogStore{}
	sink := NewDBSink(store, 1, "api", "api")
	defer sink.Close()

	_, err := sink.WriteLevel(zerolog.ErrorLevel, []byte("  plain console line  \n"))

	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	entry := store.snapshot()[0]
	assert.Equal(t, models.LevelError, entry.Level)
	assert.Equal(t, "plain console line", entry.Message)
	assert.Nil(t, entry.Context)
}

func TestDBSink_WriteLevelNeverReturnsErrorOnStoreFailure(t *testing.T) {
	store := &fakeLogStore{err: assertErr{}}
	sink := NewDBSink(store, 1, "api", "api")
	defer sink.Close()

	_, err := sink.WriteLevel(zerolog.InfoLevel, []byte(`{"message":"ok"}`))

	assert.NoError(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "insert failed" }

func TestLevelFromZerolog_MapsEverySeverity(t *testing.T) {
	assert.Equal(t, models.LevelDebug, levelFromZerolog(zerolog.DebugLevel))
	assert.Equal(t, models.LevelDebug, levelFromZerolog(zerolog.TraceLevel))
	assert.Equal(t, models.LevelInfo, levelFromZerolog(zerolog.InfoLevel))
	assert.Equal(t, models.LevelWarning, levelFromZerolog(zerolog.WarnLevel))
	assert.Equal(t, models.LevelError, levelFromZerolog(zerolog.ErrorLevel))
	assert.Equal(t, models.LevelError, levelFromZerolog(zerolog.FatalLevel))
}
