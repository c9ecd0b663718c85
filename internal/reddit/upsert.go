package reddit

import (
	"time"

	"github.com/b9dashboard/social-ingest/internal/models"
)

// ComputedSubreddit is everything a scrape cycle produces for one
// subreddit, before protection is applied.
type ComputedSubreddit struct {
	Name               string
	DisplayName        string
	URL                string
	Subscribers        int64
	AccountsActive     int64
	Over18             bool
	AvgUpvotesPerPost  float64
	AvgCommentsPerPost float64
	Engagement         float64
	SubredditScore     float64
	BestPostingDay     *int
	BestPostingHour    *int
	MinPostKarma       *int64
	MinCommentKarma    *int64
	MinAccountAgeDays  *int64
	ScrapedAt          time.Time
}

// ProtectedMerge builds the row to write given the existing stored
// subreddit (nil if this is a first insert) and this cycle's computed
// values, implementing spec §4.6's protected UPSERT invariant: review,
// primary_category, tags, over18, subscribers, and accounts_active are
// never overwritten once a human or the categorizer has set them, while
// computed metrics and last_scraped_at always advance.
//
// Grounded on original_source's test_protected_upsert.py, which
// enumerates exactly this field-by-field preservation policy.
func ProtectedMerge(existing *models.Subreddit, computed ComputedSubreddit) models.Subreddit {
	scrapedAt := computed.ScrapedAt
	out := models.Subreddit{
		Name:               computed.Name,
		DisplayName:        computed.DisplayName,
		URL:                computed.URL,
		AvgUpvotesPerPost:  computed.AvgUpvotesPerPost,
		AvgCommentsPerPost: computed.AvgCommentsPerPost,
		Engagement:         computed.Engagement,
		SubredditScore:     computed.SubredditScore,
		BestPostingDay:     computed.BestPostingDay,
		BestPostingHour:    computed.BestPostingHour,
		LastScrapedAt:      &scrapedAt,
	}

	subscribers := computed.Subscribers
	accountsActive := computed.AccountsActive
	over18 := computed.Over18
	minPostKarma := computed.MinPostKarma
	minCommentKarma := computed.MinCommentKarma
	minAccountAgeDays := computed.MinAccountAgeDays

	out.Review = models.ReviewUnset
	out.PrimaryCategory = ""
	out.Tags = nil

	if existing != nil {
		if existing.Review != models.ReviewUnset {
			out.Review = existing.Review
		}
		if existing.PrimaryCategory != "" && existing.PrimaryCategory != "Unknown" {
			out.PrimaryCategory = existing.PrimaryCategory
		}
		if len(existing.Tags) > 0 {
			out.Tags = existing.Tags
		}
		if existing.Over18 != nil {
			over18 = *existing.Over18
		}
		if existing.Subscribers > 0 {
			subscribers = existing.Subscribers
		}
		if existing.AccountsActive > 0 {
			accountsActive = existing.AccountsActive
		}
		// Quartile thresholds are only ever recomputed with ≥10
		// authors (spec §4.6); otherwise carry the prior values
		// forward rather than clearing them to nil.
		if minPostKarma == nil {
			minPostKarma = existing.MinPostKarma
		}
		if minCommentKarma == nil {
			minCommentKarma = existing.MinCommentKarma
		}
		if minAccountAgeDays == nil {
			minAccountAgeDays = existing.MinAccountAgeDays
		}
	}

	out.Subscribers = subscribers
	out.AccountsActive = accountsActive
	out.Over18 = &over18
	out.MinPostKarma = minPostKarma
	out.MinCommentKarma = minCommentKarma
	out.MinAccountAgeDays = minAccountAgeDays

	if existing != nil {
		out.CreatedAt = existing.CreatedAt
	}

	return out
}
