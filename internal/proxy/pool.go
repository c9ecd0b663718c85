// Package proxy implements the Proxy Pool (C2): an ordered,
// round-robin set of proxies partitioned into working/failed, with
// per-proxy health counters safe under concurrent access.
package proxy

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/b9dashboard/social-ingest/internal/metrics"
	"github.com/b9dashboard/social-ingest/internal/models"
)

// ErrNoProxy is returned by Next when the working set is empty.
var ErrNoProxy = errors.New("proxy pool: no working proxy available")

// maxConsecutiveFailures matches spec §4.2: after 3 consecutive
// failures a proxy is demoted to failed.
const maxConsecutiveFailures = 3

// ProxyLoader is the narrow DB dependency used by Load: fetching the
// enabled proxy rows.
type ProxyLoader interface {
	ListEnabledProxies(ctx context.Context) ([]models.Proxy, error)
}

// Prober probes a single proxy against a known endpoint, returning
// whether it responded.
type Prober func(ctx context.Context, p *models.Proxy) bool

type entry struct {
	proxy               models.Proxy
	mu                   sync.Mutex
	consecutiveFailures int
}

// Pool is the shared, concurrency-safe proxy rotation pool.
type Pool struct {
	loader ProxyLoader
	prober Prober

	mu      sync.RWMutex
	working []*entry
	failed  []*entry

	cursor atomic.Uint64
}

// New constructs an empty Pool. Call Load then TestAll before use.
func New(loader ProxyLoader, prober Prober) *Pool {
	return &Pool{loader: loader, prober: prober}
}

// Load fetches enabled proxies from the store and seeds the working
// set (pending a TestAll pass), returning the count loaded.
func (p *Pool) Load(ctx context.Context) (int, error) {
	proxies, err := p.loader.ListEnabledProxies(ctx)
	if err != nil {
		return 0, err
	}

	entries := make([]*entry, 0, len(proxies))
	for _, pr := range proxies {
		entries = append(entries, &entry{proxy: pr})
	}

	p.mu.Lock()
	p.working = entries
	p.failed = nil
	p.mu.Unlock()
	p.cursor.Store(0)

	return len(entries), nil
}

// TestAll probes every loaded proxy against a known endpoint and
// demotes non-responders to failed.
func (p *Pool) TestAll(ctx context.Context) {
	if p.prober == nil {
		return
	}

	p.mu.Lock()
	candidates := append([]*entry(nil), p.working...)
	p.mu.Unlock()

	var stillWorking, newlyFailed []*entry
	for _, e := range candidates {
		if p.prober(ctx, &e.proxy) {
			stillWorking = append(stillWorking, e)
		} else {
			newlyFailed = append(newlyFailed, e)
		}
	}

	p.mu.Lock()
	p.working = stillWorking
	p.failed = append(p.failed, newlyFailed...)
	p.mu.Unlock()
}

// Next returns the next proxy by round-robin over the working set.
func (p *Pool) Next() (*models.Proxy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.working) == 0 {
		return nil, ErrNoProxy
	}

	idx := p.cursor.Add(1) - 1
	e := p.working[int(idx%uint64(len(p.working)))]
	out := e.proxy
	return &out, nil
}

// WorkingCount returns the number of proxies currently in the working
// set, used to size worker pools (clamped elsewhere to [1,9] for
// Reddit).
func (p *Pool) WorkingCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.working)
}

// Report records the outcome of a request made through proxy id,
// updating success/failure counters and demoting to failed after 3
// consecutive failures.
func (p *Pool) Report(id string, ok bool) {
	p.mu.RLock()
	var target *entry
	idx := -1
	for i, e := range p.working {
		if e.proxy.ID == id {
			target = e
			idx = i
			break
		}
	}
	p.mu.RUnlock()

	if target == nil {
		return
	}

	target.mu.Lock()
	if ok {
		target.proxy.SuccessCount++
		target.consecutiveFailures = 0
	} else {
		target.proxy.FailureCount++
		target.consecutiveFailures++
		metrics.ProxyFailuresTotal.WithLabelValues(id).Inc()
	}
	demote := target.consecutiveFailures >= maxConsecutiveFailures
	target.mu.Unlock()

	if demote && idx >= 0 {
		p.demote(id)
	}
}

func (p *Pool) demote(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.working {
		if e.proxy.ID == id {
			p.working = append(p.working[:i], p.working[i+1:]...)
			p.failed = append(p.failed, e)
			return
		}
	}
}

// userAgents is a small rotation table of realistic desktop/mobile
// User-Agent strings. A real deployment would source a larger list;
// the pool's contract only requires a fresh pick per call.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// UserAgent returns a freshly randomized User-Agent string, required
// on every outbound request (per-request rotation).
func UserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}
