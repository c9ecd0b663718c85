package proxy

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/b9dashboard/social-ingest/internal/models"
)

const probeTimeout = 8 * time.Second

// probeURL is a small, stable endpoint every working proxy must be
// able to reach; reddit.com's own about.json is the cheapest request
// that exercises the exact path the Reddit scraper needs.
const probeURL = "https://www.reddit.com/r/test/about.json"

// NewHTTPProber builds a Prober that dials probeURL through each
// candidate proxy's endpoint, succeeding only on a non-error response.
// A proxy that cannot complete this request within probeTimeout is
// treated as non-responding, matching spec §4.2's startup health
// sweep.
func NewHTTPProber() Prober {
	return func(ctx context.Context, p *models.Proxy) bool {
		proxyURL, err := url.Parse("http://" + p.Endpoint)
		if err != nil {
			return false
		}

		client := &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
				DialContext: (&net.Dialer{
					Timeout: probeTimeout,
				}).DialContext,
			},
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
		if err != nil {
			return false
		}
		req.Header.Set("User-Agent", UserAgent())

		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode < 500
	}
}
