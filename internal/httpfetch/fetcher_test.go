package httpfetch

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/b9dashboard/social-ingest/internal/apperr"
)

func TestClassifyStatus_OKIsNeverTerminal(t *testing.T) {
	kind, terminal := ClassifyStatus(http.StatusOK, nil)
	assert.Equal(t, apperr.Kind(""), kind)
	assert.False(t, terminal)
}

func TestClassifyStatus_NotFoundWithBannedReasonIsKindBanned(t *testing.T) {
	kind, terminal := ClassifyStatus(http.StatusNotFound, []byte(`{"reason":"banned"}`))
	assert.Equal(t, apperr.KindBanned, kind)
	assert.True(t, terminal)
}

func TestClassifyStatus_PlainNotFoundIsKindNotFound(t *testing.T) {
	kind, terminal := ClassifyStatus(http.StatusNotFound, []byte(`{}`))
	assert.Equal(t, apperr.KindNotFound, kind)
	assert.True(t, terminal)
}

func TestClassifyStatus_ForbiddenIsTerminal(t *testing.T) {
	kind, terminal := ClassifyStatus(http.StatusForbidden, nil)
	assert.Equal(t, apperr.KindForbidden, kind)
	assert.True(t, terminal)
}

func TestClassifyStatus_TooManyRequestsIsNotTerminal(t *testing.T) {
	kind, terminal := ClassifyStatus(http.StatusTooManyRequests, nil)
	assert.Equal(t, apperr.KindRateLimited, kind)
	assert.False(t, terminal)
}

func TestClassifyStatus_ServerErrorIsTransientAndNotTerminal(t *testing.T) {
	kind, terminal := ClassifyStatus(http.StatusBadGateway, nil)
	assert.Equal(t, apperr.KindTransient, kind)
	assert.False(t, terminal)
}

func TestRateLimitDelay_GrowsLinearlyThenCapsAtThirtySeconds(t *testing.T) {
	assert.Equal(t, 5*time.Second, RateLimitDelay(0))
	assert.Equal(t, 7*time.Second, RateLimitDelay(1))
	assert.Equal(t, 9*time.Second, RateLimitDelay(2))
	assert.Equal(t, 30*time.Second, RateLimitDelay(20))
}
