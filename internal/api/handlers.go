package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/apperr"
	"github.com/b9dashboard/social-ingest/internal/categorizer"
	"github.com/b9dashboard/social-ingest/internal/reddit"
	"github.com/b9dashboard/social-ingest/internal/store"
)

// FetchSubredditRequest is POST /api/subreddits/fetch-single's body.
type FetchSubredditRequest struct {
	SubredditName string `json:"subreddit_name" binding:"required"`
}

// FetchSingleSubreddit implements POST /api/subreddits/fetch-single
// (spec §4.11): an on-demand fetch+merge+upsert outside the normal
// cycle, used by the dashboard's "refresh now" action.
func (d *Deps) FetchSingleSubreddit(c *gin.Context) {
	if d.Subreddits == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "subreddit fetch not configured on this binary"})
		return
	}

	var req FetchSubredditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	name := strings.ToLower(strings.TrimSpace(req.SubredditName))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subreddit_name is required"})
		return
	}

	row, kind, err := d.Subreddits.FetchSingle(c.Request.Context(), name, reddit.SubredditScraperOptions{PostsPerSubreddit: 25})
	if err != nil {
		log.Error().Err(err).Str("subreddit", name).Msg("api: fetch-single failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch failed"})
		return
	}
	if kind != "" {
		status, body := terminalResponse(name, kind)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, row)
}

func terminalResponse(name string, kind apperr.Kind) (int, gin.H) {
	switch kind {
	case apperr.KindBanned:
		return http.StatusNotFound, gin.H{"error": "subreddit is banned", "subreddit": name}
	case apperr.KindForbidden:
		return http.StatusForbidden, gin.H{"error": "subreddit is private", "subreddit": name}
	case apperr.KindNotFound:
		return http.StatusNotFound, gin.H{"error": "subreddit not found", "subreddit": name}
	default:
		return http.StatusInternalServerError, gin.H{"error": "upstream fetch failed", "kind": string(kind)}
	}
}

// AddCreatorRequest is POST /api/instagram/creator's body.
type AddCreatorRequest struct {
	Username string `json:"username" binding:"required"`
	IGUserID string `json:"ig_user_id" binding:"required"`
	Niche    string `json:"niche"`
}

// AddCreator implements POST /api/instagram/creator (spec §4.11): a
// manual add that enables a creator for the next scrape cycle rather
// than scraping synchronously.
func (d *Deps) AddCreator(c *gin.Context) {
	if d.Creators == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "creator registration not configured on this binary"})
		return
	}

	var req AddCreatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	err := d.Creators.CreateCreator(c.Request.Context(), req.IGUserID, req.Username, req.Niche)
	if errors.Is(err, store.ErrCreatorExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "creator already tracked"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("api: add creator failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add creator"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "username": req.Username})
}

// CleanupLogsRequest is POST /api/cron/cleanup-logs's body/query.
type CleanupLogsRequest struct {
	RetentionDays int `form:"retention_days" json:"retention_days"`
}

// CleanupLogs implements POST /api/cron/cleanup-logs, guarded by a
// bearer token (spec §4.11), grounded on original_source's
// api/cron.py Authorization: Bearer {CRON_SECRET} check.
func (d *Deps) CleanupLogs(c *gin.Context) {
	if d.CronSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cron authentication not configured on server"})
		return
	}
	if !validBearer(c.GetHeader("Authorization"), d.CronSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing bearer token"})
		return
	}
	if d.Cleaner == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "log cleanup not configured on this binary"})
		return
	}

	var req CleanupLogsRequest
	_ = c.ShouldBind(&req)
	if req.RetentionDays <= 0 {
		req.RetentionDays = 30
	}

	result, err := d.Cleaner.Run(c.Request.Context(), d.LogDir, req.RetentionDays)
	if err != nil {
		log.Error().Err(err).Msg("api: log cleanup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "log cleanup failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "log cleanup completed",
		"results": result,
	})
}

func validBearer(header, expected string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return strings.TrimPrefix(header, prefix) == expected
}

// StartCategorizationRequest is POST /api/categorization/start's body.
type StartCategorizationRequest struct {
	BatchSize int      `json:"batchSize"`
	Limit     int      `json:"limit"`
	IDs       []string `json:"ids"`
	Force     bool     `json:"force"`
}

// StartCategorization implements POST /api/categorization/start (spec
// §4.9/§4.11): returns a job id immediately, the batch runs in the
// background.
func (d *Deps) StartCategorization(c *gin.Context) {
	if d.Categorizer == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "categorization not configured on this binary"})
		return
	}

	var req StartCategorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 50
	}

	jobID, err := d.Categorizer.StartBatch(c.Request.Context(), categorizer.BatchOptions{
		BatchSize: req.BatchSize,
		Limit:     req.Limit,
		IDs:       req.IDs,
		Force:     req.Force,
	})
	if err != nil {
		log.Error().Err(err).Msg("api: start categorization failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start categorization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_id": jobID})
}

// CategorizationStatus implements the supplemented
// GET /api/categorization/status/:job_id.
func (d *Deps) CategorizationStatus(c *gin.Context) {
	if d.Jobs == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "categorization job tracking not configured on this binary"})
		return
	}

	jobID := c.Param("job_id")
	status, err := d.Jobs.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("api: job status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read job status"})
		return
	}
	if status == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// ControlStart implements the supplemented
// POST /api/control/:scraper/start, flipping system_control.enabled.
func (d *Deps) ControlStart(c *gin.Context) {
	d.setScraperEnabled(c, true)
}

// ControlStop implements the supplemented
// POST /api/control/:scraper/stop.
func (d *Deps) ControlStop(c *gin.Context) {
	d.setScraperEnabled(c, false)
}

func (d *Deps) setScraperEnabled(c *gin.Context, enabled bool) {
	if d.Control == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "scraper control not configured on this binary"})
		return
	}

	name := c.Param("scraper")
	var err error
	if enabled {
		err = d.Control.EnableScraper(c.Request.Context(), name)
	} else {
		err = d.Control.DisableScraper(c.Request.Context(), name)
	}
	if err != nil {
		log.Error().Err(err).Str("scraper", name).Msg("api: control toggle failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update scraper control state"})
		return
	}

	status := "stopped"
	if enabled {
		status = "started"
	}
	c.JSON(http.StatusOK, gin.H{"scraper": name, "status": status})
}
