// Package httpfetch implements the HTTP Fetcher (C3)'s shared rules:
// status-code classification and rate-limit backoff, used by the
// resty-based Reddit client. The RapidAPI-backed Instagram client does
// not import this package; it does its own 404 and retry handling.
package httpfetch

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/b9dashboard/social-ingest/internal/apperr"
)

// ClassifyStatus maps an HTTP status code (and, for 404s, the response
// body) onto the apperr taxonomy: kind is "" for 200, terminal
// reports whether retrying the same request is pointless (banned,
// not-found, forbidden) versus transient/rate-limited (worth a
// backoff-and-retry).
func ClassifyStatus(status int, body []byte) (kind apperr.Kind, terminal bool) {
	switch {
	case status == http.StatusOK:
		return "", false
	case status == http.StatusNotFound:
		if bodyReasonIsBanned(body) {
			return apperr.KindBanned, true
		}
		return apperr.KindNotFound, true
	case status == http.StatusForbidden:
		return apperr.KindForbidden, true
	case status == http.StatusTooManyRequests:
		return apperr.KindRateLimited, false
	case status >= 500:
		return apperr.KindTransient, false
	default:
		return apperr.KindTransient, false
	}
}

func bodyReasonIsBanned(body []byte) bool {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Reason == "banned"
}

// RateLimitDelay implements the 429 backoff schedule: min(5 + 2*attempt, 30)
// seconds, shared by every transport that hits a 429.
func RateLimitDelay(attempt int) time.Duration {
	secs := 5 + 2*attempt
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}
