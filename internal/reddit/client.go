// Package reddit implements the Subreddit Scraper (C6) and User
// Scraper (C7): fetch, metric computation, protected upsert, and
// discovery over Reddit's public JSON endpoints.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"

	"github.com/b9dashboard/social-ingest/internal/apperr"
	"github.com/b9dashboard/social-ingest/internal/httpfetch"
	"github.com/b9dashboard/social-ingest/internal/metrics"
	"github.com/b9dashboard/social-ingest/internal/models"
	"github.com/b9dashboard/social-ingest/internal/proxy"
)

const baseURL = "https://www.reddit.com"

// ProxyReporter is the slice of proxy.Pool the client needs: recording
// each request's outcome against the proxy it was attributed to.
type ProxyReporter interface {
	Report(id string, ok bool)
}

// Client is the Reddit JSON API transport, built on resty (grounded
// on kirbs-btw-spotify-playlist-dataset, the pack's resty-based HTTP
// client) and using httpfetch's status classification to decide what
// counts as Banned/Forbidden/RateLimited.
type Client struct {
	rc         *resty.Client
	proxies    ProxyReporter
	maxRetries int
}

func NewClient(proxies ProxyReporter, maxRetries int) *Client {
	rc := resty.New().
		SetTimeout(15 * time.Second).
		SetBaseURL(baseURL)
	return &Client{rc: rc, proxies: proxies, maxRetries: maxRetries}
}

// fetchJSON performs the request/retry/backoff/classification dance
// for one Reddit JSON endpoint, attributing the outcome to p.
func (c *Client) fetchJSON(ctx context.Context, path string, p *models.Proxy) ([]byte, apperr.Kind) {
	attempt := 0
	rlAttempts := 0

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 100 * time.Millisecond
	boff.MaxInterval = 10 * time.Second
	boff.MaxElapsedTime = 0 // the caller's context carries the outer deadline

	for {
		attempt++
		req := c.rc.R().
			SetContext(ctx).
			SetHeader("User-Agent", proxy.UserAgent())

		resp, err := req.Get(path)
		if err != nil {
			c.report(p, false)
			if ctx.Err() != nil {
				return nil, apperr.KindTimeout
			}
			if attempt > c.maxRetries {
				return nil, apperr.KindTransient
			}
			if !sleepCtx(ctx, boff.NextBackOff()) {
				return nil, apperr.KindTimeout
			}
			continue
		}

		status := resp.StatusCode()
		body := resp.Body()
		kind, terminal := httpfetch.ClassifyStatus(status, body)

		if status == 200 {
			c.report(p, true)
			metrics.FetchesTotal.WithLabelValues("reddit", "ok").Inc()
			return body, ""
		}
		if terminal {
			metrics.FetchesTotal.WithLabelValues("reddit", string(kind)).Inc()
			return body, kind
		}
		if kind == apperr.KindRateLimited {
			if rlAttempts >= 5 {
				metrics.FetchesTotal.WithLabelValues("reddit", string(apperr.KindRateLimited)).Inc()
				return body, apperr.KindRateLimited
			}
			delay := httpfetch.RateLimitDelay(rlAttempts)
			rlAttempts++
			if !sleepCtx(ctx, delay) {
				return body, apperr.KindRateLimited
			}
			continue
		}
		// Transient (5xx or unexpected status).
		c.report(p, false)
		if attempt > c.maxRetries {
			return body, apperr.KindTransient
		}
		if !sleepCtx(ctx, boff.NextBackOff()) {
			return body, apperr.KindTimeout
		}
	}
}

func (c *Client) report(p *models.Proxy, ok bool) {
	if c.proxies == nil || p == nil {
		return
	}
	c.proxies.Report(p.ID, ok)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// AboutBlob is the subset of /r/{name}/about.json this system cares
// about (spec §3/§4.6).
type AboutBlob struct {
	DisplayName    string `json:"display_name"`
	URL            string `json:"url"`
	Subscribers    int64  `json:"subscribers"`
	AccountsActive int64  `json:"accounts_active"`
	Over18         bool   `json:"over18"`
}

// RawPost mirrors the fields of a Reddit post listing item this
// system interprets (spec §3 restricts interpreted fields).
type RawPost struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int64   `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int64   `json:"num_comments"`
	Over18      bool    `json:"over_18"`
	Spoiler     bool    `json:"spoiler"`
	Stickied    bool    `json:"stickied"`
	Locked      bool    `json:"locked"`
	IsSelf      bool    `json:"is_self"`
	IsVideo     bool    `json:"is_video"`
	IsGallery   bool    `json:"is_gallery"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Domain      string  `json:"domain"`
	Selftext    string  `json:"selftext"`
}

type listingEnvelope struct {
	Data struct {
		Children []struct {
			Data RawPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type aboutEnvelope struct {
	Data AboutBlob `json:"data"`
}

// FetchAbout calls /r/{name}/about.json.
func (c *Client) FetchAbout(ctx context.Context, name string, p *models.Proxy) (*AboutBlob, apperr.Kind) {
	body, kind := c.fetchJSON(ctx, fmt.Sprintf("/r/%s/about.json", name), p)
	if kind != "" {
		return nil, kind
	}
	var env aboutEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.KindTransient
	}
	return &env.Data, ""
}

// FetchHotPosts calls /r/{name}/hot.json?limit=limit.
func (c *Client) FetchHotPosts(ctx context.Context, name string, limit int, p *models.Proxy) ([]RawPost, apperr.Kind) {
	return c.fetchListing(ctx, fmt.Sprintf("/r/%s/hot.json?limit=%d", name, limit), p)
}

// FetchTopPosts calls /r/{name}/top.json?t=year&limit=limit.
func (c *Client) FetchTopPosts(ctx context.Context, name string, limit int, p *models.Proxy) ([]RawPost, apperr.Kind) {
	return c.fetchListing(ctx, fmt.Sprintf("/r/%s/top.json?t=year&limit=%d", name, limit), p)
}

// FetchUserAbout calls /user/{name}/about.json.
func (c *Client) FetchUserAbout(ctx context.Context, username string, p *models.Proxy) (*UserAboutBlob, apperr.Kind) {
	body, kind := c.fetchJSON(ctx, fmt.Sprintf("/user/%s/about.json", username), p)
	if kind != "" {
		return nil, kind
	}
	var env struct {
		Data UserAboutBlob `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.KindTransient
	}
	return &env.Data, ""
}

// FetchUserSubmitted calls /user/{name}/submitted.json?limit=limit.
func (c *Client) FetchUserSubmitted(ctx context.Context, username string, limit int, p *models.Proxy) ([]RawPost, apperr.Kind) {
	return c.fetchListing(ctx, fmt.Sprintf("/user/%s/submitted.json?limit=%d", username, limit), p)
}

func (c *Client) fetchListing(ctx context.Context, path string, p *models.Proxy) ([]RawPost, apperr.Kind) {
	body, kind := c.fetchJSON(ctx, path, p)
	if kind != "" {
		return nil, kind
	}
	var env listingEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperr.KindTransient
	}
	posts := make([]RawPost, 0, len(env.Data.Children))
	for _, child := range env.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, ""
}

// UserAboutBlob is the subset of /user/{name}/about.json this system
// interprets.
type UserAboutBlob struct {
	Name         string  `json:"name"`
	CreatedUTC   float64 `json:"created_utc"`
	LinkKarma    int64   `json:"link_karma"`
	CommentKarma int64   `json:"comment_karma"`
	IsSuspended  bool    `json:"is_suspended"`
}
