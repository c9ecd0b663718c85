package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/social-ingest/internal/apperr"
	"github.com/b9dashboard/social-ingest/internal/categorizer"
	"github.com/b9dashboard/social-ingest/internal/cleanup"
	"github.com/b9dashboard/social-ingest/internal/models"
	"github.com/b9dashboard/social-ingest/internal/reddit"
	"github.com/b9dashboard/social-ingest/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHealthChecker struct{ err error }

func (f *fakeHealthChecker) Healthy(ctx context.Context) error { return f.err }

type fakeProxyCounter struct{ working int }

func (f *fakeProxyCounter) WorkingCount() int { return f.working }

type fakeSubredditFetcher struct {
	row  models.Subreddit
	kind apperr.Kind
	err  error
}

func (f *fakeSubredditFetcher) FetchSingle(ctx context.Context, name string, opts reddit.SubredditScraperOptions) (models.Subreddit, apperr.Kind, error) {
	return f.row, f.kind, f.err
}

type fakeCreatorRegistrar struct{ err error }

func (f *fakeCreatorRegistrar) CreateCreator(ctx context.Context, igUserID, username, niche string) error {
	return f.err
}

type fakeLogCleaner struct {
	result cleanup.Result
	err    error
}

func (f *fakeLogCleaner) Run(ctx context.Context, logDir string, retentionDays int) (cleanup.Result, error) {
	return f.result, f.err
}

type fakeCategorizationStarter struct {
	jobID   string
	err     error
	gotOpts categorizer.BatchOptions
}

func (f *fakeCategorizationStarter) StartBatch(ctx context.Context, opts categorizer.BatchOptions) (string, error) {
	f.gotOpts = opts
	return f.jobID, f.err
}

type fakeJobStatusReader struct {
	status *store.JobStatus
	err    error
}

func (f *fakeJobStatusReader) GetJobStatus(ctx context.Context, jobID string) (*store.JobStatus, error) {
	return f.status, f.err
}

type fakeScraperControl struct {
	enabled  map[string]bool
	startErr error
	stopErr  error
}

func (f *fakeScraperControl) EnableScraper(ctx context.Context, name string) error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.enabled == nil {
		f.enabled = map[string]bool{}
	}
	f.enabled[name] = true
	return nil
}

func (f *fakeScraperControl) DisableScraper(ctx context.Context, name string) error {
	if f.stopErr != nil {
		return f.stopErr
	}
	if f.enabled == nil {
		f.enabled = map[string]bool{}
	}
	f.enabled[name] = false
	return nil
}

func doRequest(r http.Handler, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth_AllDependenciesUpReturns200(t *testing.T) {
	d := &Deps{DB: &fakeHealthChecker{}, Proxies: &fakeProxyCounter{working: 3}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_DatabaseDownReturns503(t *testing.T) {
	d := &Deps{DB: &fakeHealthChecker{err: errors.New("connection refused")}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth_ZeroWorkingProxiesReturns503(t *testing.T) {
	d := &Deps{DB: &fakeHealthChecker{}, Proxies: &fakeProxyCounter{working: 0}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReady_NoDBConfiguredIsAlwaysReady(t *testing.T) {
	d := &Deps{}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/ready", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAlive_NeverChecksDependencies(t *testing.T) {
	d := &Deps{DB: &fakeHealthChecker{err: errors.New("down")}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/alive", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFetchSingleSubreddit_UnconfiguredReturns501(t *testing.T) {
	d := &Deps{}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/subreddits/fetch-single", `{"subreddit_name":"sample"}`, nil)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestFetchSingleSubreddit_MissingNameReturns400(t *testing.T) {
	d := &Deps{Subreddits: &fakeSubredditFetcher{}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/subreddits/fetch-single", `{}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetchSingleSubreddit_BannedSubredditReturns404(t *testing.T) {
	d := &Deps{Subreddits: &fakeSubredditFetcher{kind: apperr.KindBanned}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/subreddits/fetch-single", `{"subreddit_name":"sample"}`, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFetchSingleSubreddit_PrivateSubredditReturns403(t *testing.T) {
	d := &Deps{Subreddits: &fakeSubredditFetcher{kind: apperr.KindForbidden}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/subreddits/fetch-single", `{"subreddit_name":"sample"}`, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFetchSingleSubreddit_SuccessReturns200WithRow(t *testing.T) {
	d := &Deps{Subreddits: &fakeSubredditFetcher{row: models.Subreddit{Name: "sample"}}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/subreddits/fetch-single", `{"subreddit_name":"sample"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sample")
}

func TestAddCreator_DuplicateReturns409(t *testing.T) {
	d := &Deps{Creators: &fakeCreatorRegistrar{err: store.ErrCreatorExists}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/instagram/creator", `{"username":"c","ig_user_id":"ig1"}`, nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAddCreator_SuccessReturns202(t *testing.T) {
	d := &Deps{Creators: &fakeCreatorRegistrar{}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/instagram/creator", `{"username":"c","ig_user_id":"ig1"}`, nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCleanupLogs_MissingBearerReturns401(t *testing.T) {
	d := &Deps{CronSecret: "topsecret", Cleaner: &fakeLogCleaner{}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/cron/cleanup-logs", `{}`, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCleanupLogs_ValidBearerRunsCleaner(t *testing.T) {
	d := &Deps{CronSecret: "topsecret", Cleaner: &fakeLogCleaner{result: cleanup.Result{}}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/cron/cleanup-logs", `{}`, map[string]string{
		"Authorization": "Bearer topsecret",
	})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCleanupLogs_UnconfiguredSecretReturns500(t *testing.T) {
	d := &Deps{Cleaner: &fakeLogCleaner{}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/cron/cleanup-logs", `{}`, map[string]string{
		"Authorization": "Bearer anything",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStartCategorization_DefaultsBatchSizeWhenUnset(t *testing.T) {
	starter := &fakeCategorizationStarter{jobID: "job-1"}
	d := &Deps{Categorizer: starter}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/categorization/start", `{}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "job-1")
	assert.Equal(t, 50, starter.gotOpts.BatchSize)
}

func TestCategorizationStatus_UnknownJobReturns404(t *testing.T) {
	d := &Deps{Jobs: &fakeJobStatusReader{status: nil}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/api/categorization/status/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategorizationStatus_KnownJobReturns200(t *testing.T) {
	d := &Deps{Jobs: &fakeJobStatusReader{status: &store.JobStatus{ID: "job-1", Status: "running"}}}
	r := NewRouter(d)

	w := doRequest(r, http.MethodGet, "/api/categorization/status/job-1", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestControlStartStop_UnconfiguredReturns501(t *testing.T) {
	d := &Deps{}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/control/reddit_subreddit_scraper/start", "", nil)

	assert.Equal(t, http.StatusNotImplemented, w.Code)

	w = doRequest(r, http.MethodPost, "/api/control/reddit_subreddit_scraper/stop", "", nil)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestControlStart_EnablesNamedScraper(t *testing.T) {
	ctrl := &fakeScraperControl{}
	d := &Deps{Control: ctrl}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/control/reddit_subreddit_scraper/start", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, ctrl.enabled["reddit_subreddit_scraper"])
}

func TestControlStop_DisablesNamedScraper(t *testing.T) {
	ctrl := &fakeScraperControl{}
	d := &Deps{Control: ctrl}
	r := NewRouter(d)

	w := doRequest(r, http.MethodPost, "/api/control/reddit_subreddit_scraper/stop", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, ctrl.enabled["reddit_subreddit_scraper"])
}

func TestRouter_UnknownRouteReturns404WithPathAndMethod(t *testing.T) {
	r := NewRouter(&Deps{})

	w := doRequest(r, http.MethodGet, "/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "/nope")
}

func TestProcessTimeMiddleware_StampsServerAndProcessTimeHeaders(t *testing.T) {
	r := gin.New()
	r.Use(ProcessTimeMiddleware("social-ingest-api"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := doRequest(r, http.MethodGet, "/ping", "", nil)

	// w.Header() is the live, still-mutable recorder map; it reflects
	// header writes the handler chain never actually committed to the
	// wire. Assert against the frozen post-commit snapshot instead.
	header := w.Result().Header
	assert.Equal(t, "social-ingest-api", header.Get("X-Server"))
	assert.NotEmpty(t, header.Get("X-Process-Time"))
}

// TestProcessTimeMiddleware_SurvivesGzipBuffering guards against the
// header being set after GzipMiddleware has already committed the
// buffered body to the real ResponseWriter, which would otherwise
// silently drop X-Process-Time for any real, non-empty response.
func TestProcessTimeMiddleware_SurvivesGzipBuffering(t *testing.T) {
	r := gin.New()
	r.Use(ProcessTimeMiddleware("social-ingest-api"), GzipMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, strings.Repeat("x", gzipMinBytes+1)) })

	w := doRequest(r, http.MethodGet, "/ping", "", map[string]string{"Accept-Encoding": "gzip"})

	header := w.Result().Header
	assert.Equal(t, "social-ingest-api", header.Get("X-Server"))
	assert.NotEmpty(t, header.Get("X-Process-Time"))
}

func TestCORSMiddleware_OptionsRequestReturns204WithoutCallingNext(t *testing.T) {
	called := false
	r := gin.New()
	r.Use(CORSMiddleware())
	r.OPTIONS("/ping", func(c *gin.Context) { called = true })

	w := doRequest(r, http.MethodOptions, "/ping", "", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestGzipMiddleware_SmallBodyIsNotCompressed(t *testing.T) {
	r := gin.New()
	r.Use(GzipMiddleware())
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })

	w := doRequest(r, http.MethodGet, "/small", "", map[string]string{"Accept-Encoding": "gzip"})

	assert.Equal(t, "", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", w.Body.String())
}

func TestGzipMiddleware_LargeBodyIsCompressedWhenClientAccepts(t *testing.T) {
	large := strings.Repeat("x", gzipMinBytes+1)
	r := gin.New()
	r.Use(GzipMiddleware())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })

	w := doRequest(r, http.MethodGet, "/large", "", map[string]string{"Accept-Encoding": "gzip"})

	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.NotEqual(t, large, w.Body.String())
}

func TestGzipMiddleware_NoAcceptEncodingLeavesBodyUntouched(t *testing.T) {
	large := strings.Repeat("x", gzipMinBytes+1)
	r := gin.New()
	r.Use(GzipMiddleware())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })

	w := doRequest(r, http.MethodGet, "/large", "", nil)

	assert.Equal(t, "", w.Header().Get("Content-Encoding"))
	assert.Equal(t, large, w.Body.String())
}
