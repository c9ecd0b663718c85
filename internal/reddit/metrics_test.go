package reddit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSubredditMetrics_ZeroEngagementSuppressesBestPostingTime(t *testing.T) {
	posts := []RawPost{{Score: 0, NumComments: 0, CreatedUTC: 1700000000}}

	m := computeSubredditMetrics(posts, posts, 1_000_000)

	assert.Equal(t, 0.0, m.Engagement)
	assert.Nil(t, m.BestPostingDay)
	assert.Nil(t, m.BestPostingHour)
}

func TestComputeSubredditMetrics_EngagementAboveThresholdSetsBestPostingTime(t *testing.T) {
	hot := []RawPost{{Score: 500, NumComments: 20, CreatedUTC: 1700000000}}
	top := []RawPost{
		{Score: 500, CreatedUTC: 1700006400},
		{Score: 400, CreatedUTC: 1700006400},
		{Score: 100, CreatedUTC: 1700100000},
	}

	m := computeSubredditMetrics(hot, top, 1000)

	assert.Greater(t, m.Engagement, 0.01)
	assert.NotNil(t, m.BestPostingDay)
	assert.NotNil(t, m.BestPostingHour)
}

func TestComputeSubredditMetrics_ZeroSubscribersYieldsZeroEngagement(t *testing.T) {
	posts := []RawPost{{Score: 100, CreatedUTC: 1700000000}}

	m := computeSubredditMetrics(posts, posts, 0)

	assert.Equal(t, 0.0, m.Engagement)
}

func TestComputeQuartileThresholds_RequiresTenAuthors(t *testing.T) {
	authors := make([]AuthorStat, 9)
	for i := range authors {
		authors[i] = AuthorStat{Username: "u", AccountAgeDays: 100, PostKarma: int64(i * 10), CommentKarma: int64(i * 5)}
	}

	thresholds := computeQuartileThresholds(authors)

	assert.False(t, thresholds.Sufficient)
}

func TestComputeQuartileThresholds_TenAuthorsComputesLowerQuartile(t *testing.T) {
	authors := make([]AuthorStat, 10)
	for i := range authors {
		authors[i] = AuthorStat{
			Username:       "u",
			AccountAgeDays: int64((i + 1) * 30),
			PostKarma:      int64((i + 1) * 100),
			CommentKarma:   int64((i + 1) * 50),
		}
	}

	thresholds := computeQuartileThresholds(authors)

	assert.True(t, thresholds.Sufficient)
	assert.Equal(t, int64(300), thresholds.MinPostKarma)
	assert.Equal(t, int64(150), thresholds.MinCommentKarma)
	assert.Equal(t, int64(90), thresholds.MinAccountAgeDays)
}

func TestComputeUserQualityScores_MatchesReferenceFormulas(t *testing.T) {
	scores := computeUserQualityScores("short_name123", 45, 200, 400)

	assert.Equal(t, 85.0, scores.UsernameScore)
	assert.Equal(t, 40.0, scores.AgeScore)
	assert.Equal(t, 60.0, scores.KarmaScore)
	assert.Equal(t, 59.0, scores.OverallScore)
}

func TestUsernameScore_PenalizesDigitsAndUnderscores(t *testing.T) {
	assert.Equal(t, 100.0, usernameScore("abcdefgh"))
	assert.Equal(t, 100.0, usernameScore("abcdef_gh"))
	assert.Equal(t, 95.0, usernameScore("abcdefg123"))
}

func TestAgeScore_Buckets(t *testing.T) {
	assert.Equal(t, 20.0, ageScore(10))
	assert.Equal(t, 40.0, ageScore(60))
	assert.Equal(t, 60.0, ageScore(120))
	assert.Equal(t, 80.0, ageScore(300))
	assert.Equal(t, 100.0, ageScore(1000))
}

func TestKarmaScore_Buckets(t *testing.T) {
	assert.Equal(t, 20.0, karmaScore(10, 10))
	assert.Equal(t, 40.0, karmaScore(200, 100))
	assert.Equal(t, 60.0, karmaScore(500, 400))
	assert.Equal(t, 80.0, karmaScore(2000, 2000))
	assert.Equal(t, 100.0, karmaScore(10000, 10000))
}
