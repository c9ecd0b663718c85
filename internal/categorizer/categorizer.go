// Package categorizer implements the Categorizer (C9): it assigns
// tags from the fixed registry to approved subreddits via an external
// classifier, exposed to the core only as the pure function contract
// spec §4.9 describes.
package categorizer

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/metrics"
	"github.com/b9dashboard/social-ingest/internal/models"
)

// SubredditMetadata is everything the external classifier needs to
// assign tags; the categorizer core never inspects classifier
// internals, only its return contract.
type SubredditMetadata struct {
	Name              string
	DisplayName       string
	Subscribers       int64
	AvgUpvotesPerPost float64
	TopPostTitles     []string
}

// Classification is the external classifier's return contract (spec
// §4.9): 1-2 tags, a derived primary category, and a confidence score
// the core logs but does not gate on.
type Classification struct {
	Tags            []string
	PrimaryCategory string
	Confidence      float64
}

// Classifier is injected: the core treats it as an opaque function.
// OpenAIClassifier.Classify in this package is the LLM-backed
// implementation.
type Classifier func(ctx context.Context, meta SubredditMetadata) (Classification, error)

// Store is the narrow persistence dependency: reading candidate
// subreddits and writing validated tag assignments.
type Store interface {
	UntaggedSubreddits(ctx context.Context, limit int, ids []string) ([]models.Subreddit, error)
	SetTags(ctx context.Context, name string, tags []string, primaryCategory string) error
}

// JobTracker records batch progress, grounded on original_source's
// Celery task-tracking pattern (a DB row plus a fast progress cache)
// generalized away from a message broker.
type JobTracker interface {
	CreateJob(ctx context.Context, jobID string, total int) error
	AdvanceJob(ctx context.Context, jobID string, processed, tagged, skipped int) error
	CompleteJob(ctx context.Context, jobID string) error
}

// Categorizer runs categorization batches over the approved-but-untagged
// working set.
type Categorizer struct {
	classify Classifier
	store    Store
	jobs     JobTracker
}

func New(classify Classifier, store Store, jobs JobTracker) *Categorizer {
	return &Categorizer{classify: classify, store: store, jobs: jobs}
}

// BatchOptions configures one categorization run (spec §4.11 POST
// /api/categorization/start body).
type BatchOptions struct {
	BatchSize int
	Limit     int
	IDs       []string
	Force     bool
}

// StartBatch launches a categorization job and returns its ID
// immediately; the work itself runs in runBatch on a background
// goroutine, and callers follow it through the job's progress row.
func (c *Categorizer) StartBatch(ctx context.Context, opts BatchOptions) (string, error) {
	jobID := uuid.NewString()

	candidates, err := c.store.UntaggedSubreddits(ctx, opts.Limit, opts.IDs)
	if err != nil {
		return "", err
	}
	if err := c.jobs.CreateJob(ctx, jobID, len(candidates)); err != nil {
		return "", err
	}

	go c.runBatch(context.Background(), jobID, candidates, opts)

	return jobID, nil
}

func (c *Categorizer) runBatch(ctx context.Context, jobID string, candidates []models.Subreddit, opts BatchOptions) {
	processed, tagged, skipped := 0, 0, 0

	for _, sub := range candidates {
		if !opts.Force && len(sub.Tags) > 0 {
			skipped++
			processed++
			continue
		}

		result, err := c.classify(ctx, SubredditMetadata{
			Name:              sub.Name,
			DisplayName:       sub.DisplayName,
			Subscribers:       sub.Subscribers,
			AvgUpvotesPerPost: sub.AvgUpvotesPerPost,
		})
		if err != nil {
			log.Warn().Err(err).Str("subreddit", sub.Name).Str("job_id", jobID).Msg("categorizer: classification failed, skipping")
			skipped++
			processed++
			continue
		}

		valid := ValidateTags(result.Tags)
		if len(valid) == 0 {
			log.Warn().Str("subreddit", sub.Name).Str("job_id", jobID).Msg("categorizer: classifier returned no valid tags")
			skipped++
			processed++
			continue
		}

		if err := c.store.SetTags(ctx, sub.Name, valid, result.PrimaryCategory); err != nil {
			log.Error().Err(err).Str("subreddit", sub.Name).Str("job_id", jobID).Msg("categorizer: failed to write tags")
			skipped++
			processed++
			continue
		}

		tagged++
		processed++
		if err := c.jobs.AdvanceJob(ctx, jobID, processed, tagged, skipped); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Msg("categorizer: progress update failed")
		}
	}

	if err := c.jobs.CompleteJob(ctx, jobID); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Msg("categorizer: job completion update failed")
		metrics.CategorizationJobsTotal.WithLabelValues("error").Inc()
		return
	}
	metrics.CategorizationJobsTotal.WithLabelValues("completed").Inc()
}

// ValidateTags filters raw classifier output down to registry members,
// keeping at most 2 (the registry contract allows 1-2, prefers 1) and
// preserving the classifier's preference order.
func ValidateTags(tags []string) []string {
	var valid []string
	for _, t := range tags {
		if models.IsValidTag(t) {
			valid = append(valid, t)
		}
		if len(valid) == 2 {
			break
		}
	}
	return valid
}

// DerivePrimaryCategory implements spec §4.9's deterministic rule:
// primary_category is the category of the first valid tag.
func DerivePrimaryCategory(validTags []string) string {
	if len(validTags) == 0 {
		return "Unknown"
	}
	cat := models.CategoryOf(validTags[0])
	if cat == "" {
		return "Unknown"
	}
	return cat
}
