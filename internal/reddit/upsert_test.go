package reddit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/b9dashboard/social-ingest/internal/models"
)

func TestProtectedMerge_PreservesCuratedFields(t *testing.T) {
	existing := &models.Subreddit{
		Name:            "x",
		Review:          models.ReviewOk,
		PrimaryCategory: "Style",
		Tags:            []string{"lingerie", "bikini"},
		Subscribers:     50000,
		AccountsActive:  1000,
	}

	computed := ComputedSubreddit{
		Name:              "x",
		Subscribers:       61000,
		AvgUpvotesPerPost: 120,
		ScrapedAt:         time.Now(),
	}

	out := ProtectedMerge(existing, computed)

	assert.Equal(t, models.ReviewOk, out.Review)
	assert.Equal(t, "Style", out.PrimaryCategory)
	assert.Equal(t, []string{"lingerie", "bikini"}, out.Tags)
	assert.Equal(t, int64(50000), out.Subscribers)
	assert.Equal(t, int64(1000), out.AccountsActive)
	assert.Equal(t, 120.0, out.AvgUpvotesPerPost)
	assert.NotNil(t, out.LastScrapedAt)
}

func TestProtectedMerge_FirstInsertWritesComputedFields(t *testing.T) {
	computed := ComputedSubreddit{
		Name:              "brand_new",
		Subscribers:       1200,
		AccountsActive:    40,
		Over18:            true,
		AvgUpvotesPerPost: 15,
		ScrapedAt:         time.Now(),
	}

	out := ProtectedMerge(nil, computed)

	assert.Equal(t, models.ReviewUnset, out.Review)
	assert.Equal(t, "", out.PrimaryCategory)
	assert.Nil(t, out.Tags)
	assert.Equal(t, int64(1200), out.Subscribers)
	assert.Equal(t, int64(40), out.AccountsActive)
	assert.True(t, *out.Over18)
}

func TestProtectedMerge_CarriesQuartileThresholdsForward(t *testing.T) {
	existingKarma := int64(250)
	existing := &models.Subreddit{
		Name:         "y",
		MinPostKarma: &existingKarma,
	}

	out := ProtectedMerge(existing, ComputedSubreddit{Name: "y", ScrapedAt: time.Now()})

	if assert.NotNil(t, out.MinPostKarma) {
		assert.Equal(t, existingKarma, *out.MinPostKarma)
	}
}
