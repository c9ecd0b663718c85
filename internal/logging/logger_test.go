package logging

import (
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachSinks_RoutesGlobalLogCallsIntoTheDBSink(t *testing.T) {
	Init("production", "info", "api-test")

	store := &fakeLogStore{}
	sink := NewDBSink(store, 1, "api-test", "api-test")
	defer sink.Close()

	AttachSinks(sink, nil)

	log.Info().Str("creator", "nasa").Msg("fetched profile")

	require.Eventually(t, func() bool { return len(store.snapshot()) == 1 }, time.Second, 10*time.Millisecond)
	entry := store.snapshot()[0]
	assert.Equal(t, "fetched profile", entry.Message)
	assert.Equal(t, "nasa", entry.Context["creator"])
}

func TestAttachSinks_WithNoSinksIsANoOp(t *testing.T) {
	Init("production", "info", "api-test")
	AttachSinks(nil, nil)
}

func TestBootstrap_WritesThroughFileSinkAndFlushesOnClose(t *testing.T) {
	Init("production", "info", "bootstrap-test")
	store := &fakeLogStore{}

	closer := Bootstrap(store, t.TempDir(), "bootstrap-test")

	log.Info().Msg("bootstrap smoke test")
	require.NoError(t, closer.Close())

	assert.NotEmpty(t, store.snapshot())
}
