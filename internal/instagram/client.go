// Package instagram implements the Instagram Scraper (C8): RapidAPI
// client, distributed rate limiting, engagement analytics, and the
// per-creator scrape pipeline.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/metrics"
)

const (
	maxRetries  = 5
	baseDelayMS = 500
)

// NotFoundError mirrors the teacher's UserNotFoundError: a terminal,
// non-retried classification distinct from transient transport errors.
type NotFoundError struct {
	Username string
	Message  string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("instagram user %s not found: %s", e.Username, e.Message)
}

// Client is the RapidAPI-backed Instagram data source, generalized
// from the teacher's single-endpoint pkg/external/rocketapi.go to the
// five endpoints spec §4.8/§6 requires.
type Client struct {
	httpClient *http.Client
	limiter    RateLimiter
	apiKey     string
	apiHost    string
	baseURL    string
}

func NewClient(apiKey, apiHost string, limiter RateLimiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		apiKey:     apiKey,
		apiHost:    apiHost,
		baseURL:    "https://" + apiHost,
	}
}

// rapidAPIEnvelope is the common wrapper most RapidAPI Instagram
// providers use around the underlying platform response.
type rapidAPIEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// get performs one RapidAPI GET with the teacher's exponential
// backoff retry policy (same constants, now context-aware and rate
// limited against the shared bucket rather than a process-local one).
func (c *Client) get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait failed: %w", err)
			}
		}

		body, status, err := c.doRequest(ctx, path, query)
		if err == nil && status == http.StatusOK {
			metrics.FetchesTotal.WithLabelValues("instagram", "ok").Inc()
			return body, nil
		}

		if status == http.StatusNotFound {
			metrics.FetchesTotal.WithLabelValues("instagram", "not_found").Inc()
			return nil, NotFoundError{Message: "HTTP 404"}
		}

		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("unexpected HTTP status %d: %s", status, string(body))
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := time.Duration(baseDelayMS*int(math.Pow(2, float64(attempt)))) * time.Millisecond
		log.Warn().Err(lastErr).Str("path", path).Int("attempt", attempt+1).Dur("retry_delay", delay).Msg("instagram client: request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	log.Error().Err(lastErr).Str("path", path).Msg("instagram client: request failed after all retries")
	metrics.FetchesTotal.WithLabelValues("instagram", "transport_error").Inc()
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, path string, query map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	q := req.URL.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// ProfileBlob is the subset of a profile lookup this system keeps.
type ProfileBlob struct {
	IGUserID       string `json:"id"`
	Username       string `json:"username"`
	FollowersCount int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	MediaCount     int64  `json:"media_count"`
	ProfilePicURL  string `json:"profile_pic_url"`
}

// FetchProfile calls the /profile endpoint (spec §4.8 step 1).
func (c *Client) FetchProfile(ctx context.Context, username string) (*ProfileBlob, error) {
	body, err := c.get(ctx, "/profile", map[string]string{"username": username})
	if err != nil {
		return nil, err
	}
	var env struct {
		Data ProfileBlob `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	return &env.Data, nil
}

// MediaBlob is one reel or post item as returned by /reels or /user-feeds.
type MediaBlob struct {
	MediaPK      string   `json:"media_pk"`
	TakenAt      float64  `json:"taken_at"`
	LikeCount    int64    `json:"like_count"`
	CommentCount int64    `json:"comment_count"`
	ViewCount    int64    `json:"view_count"`
	PlayCount    int64    `json:"play_count"`
	MediaURLs    []string `json:"media_urls"`
}

type mediaListEnvelope struct {
	Data struct {
		Items []MediaBlob `json:"items"`
	} `json:"data"`
}

// FetchReels calls /reels?username=...&count=count (spec §4.8 step 2).
func (c *Client) FetchReels(ctx context.Context, username string, count int) ([]MediaBlob, error) {
	body, err := c.get(ctx, "/reels", map[string]string{"username": username, "count": fmt.Sprintf("%d", count)})
	if err != nil {
		return nil, err
	}
	var env mediaListEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse reels response: %w", err)
	}
	return env.Data.Items, nil
}

// FetchPosts calls /user-feeds?username=...&count=count (spec §4.8 step 3).
func (c *Client) FetchPosts(ctx context.Context, username string, count int) ([]MediaBlob, error) {
	body, err := c.get(ctx, "/user-feeds", map[string]string{"username": username, "count": fmt.Sprintf("%d", count)})
	if err != nil {
		return nil, err
	}
	var env mediaListEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse user-feeds response: %w", err)
	}
	return env.Data.Items, nil
}

// UserInfoBlob supplements the profile endpoint with category/niche
// hints the distilled spec dropped but original_source retained.
type UserInfoBlob struct {
	Username     string `json:"username"`
	CategoryName string `json:"category_name"`
	IsBusiness   bool   `json:"is_business_account"`
}

// FetchUserInfo calls /user-info, used to seed InstagramCreator.Niche
// on first discovery.
func (c *Client) FetchUserInfo(ctx context.Context, username string) (*UserInfoBlob, error) {
	body, err := c.get(ctx, "/user-info", map[string]string{"username": username})
	if err != nil {
		return nil, err
	}
	var env struct {
		Data UserInfoBlob `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse user-info response: %w", err)
	}
	return &env.Data, nil
}

// RelatedProfile is one entry of /related-profiles, used for creator
// discovery (supplemented feature, grounded on original_source's
// "similar accounts" crawl).
type RelatedProfile struct {
	Username string `json:"username"`
	IGUserID string `json:"id"`
}

// FetchRelatedProfiles calls /related-profiles?username=....
func (c *Client) FetchRelatedProfiles(ctx context.Context, username string) ([]RelatedProfile, error) {
	body, err := c.get(ctx, "/related-profiles", map[string]string{"username": username})
	if err != nil {
		return nil, err
	}
	var env struct {
		Data struct {
			Profiles []RelatedProfile `json:"profiles"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse related-profiles response: %w", err)
	}
	return env.Data.Profiles, nil
}
