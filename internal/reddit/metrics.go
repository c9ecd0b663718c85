package reddit

import (
	"math"
	"sort"
	"time"
)

// SubredditMetrics is the pure output of computeSubredditMetrics (spec
// §4.6), grounded on original_source's calculator.py structure (a
// pure, dependency-free scorer fed exactly the fields it needs).
type SubredditMetrics struct {
	AvgUpvotesPerPost  float64
	AvgCommentsPerPost float64
	Engagement         float64
	SubredditScore     float64
	BestPostingDay     *int
	BestPostingHour    *int
}

// normBounds bound the raw metrics fed into subreddit_score's min-max
// normalization. These are the widest practical ranges observed across
// a subreddit corpus; values outside them clamp to [0,100].
const (
	normUpvotesMax    = 5000.0
	normEngagementMax = 0.2
	normPostFreqMax   = 30.0 // posts per day, post_frequency proxy
)

// computeSubredditMetrics implements spec §4.6's metric formulas over
// the hot-post set (for averages/engagement) and the top-post set (for
// posting-time buckets).
func computeSubredditMetrics(hotPosts, topPosts []RawPost, subscribers int64) SubredditMetrics {
	var m SubredditMetrics

	if len(hotPosts) > 0 {
		var sumScore, sumComments float64
		for _, p := range hotPosts {
			sumScore += float64(p.Score)
			sumComments += float64(p.NumComments)
		}
		m.AvgUpvotesPerPost = sumScore / float64(len(hotPosts))
		m.AvgCommentsPerPost = sumComments / float64(len(hotPosts))
	}

	if subscribers > 0 {
		m.Engagement = m.AvgUpvotesPerPost / float64(subscribers)
	}

	postFrequency := postsPerDay(hotPosts)
	m.SubredditScore = 0.5*normalize(m.AvgUpvotesPerPost, normUpvotesMax) +
		0.3*normalize(m.Engagement, normEngagementMax) +
		0.2*normalize(postFrequency, normPostFreqMax)

	if m.Engagement > 0.01 {
		day, hour := bestPostingTime(topPosts)
		if day != nil {
			m.BestPostingDay = day
			m.BestPostingHour = hour
		}
	}

	return m
}

func normalize(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	n := (v / max) * 100
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// postsPerDay estimates post_frequency as the post count divided by
// the span (in days) covered by their created_utc timestamps.
func postsPerDay(posts []RawPost) float64 {
	if len(posts) == 0 {
		return 0
	}
	minT, maxT := posts[0].CreatedUTC, posts[0].CreatedUTC
	for _, p := range posts[1:] {
		if p.CreatedUTC < minT {
			minT = p.CreatedUTC
		}
		if p.CreatedUTC > maxT {
			maxT = p.CreatedUTC
		}
	}
	spanDays := (maxT - minT) / 86400
	if spanDays < 1 {
		spanDays = 1
	}
	return float64(len(posts)) / spanDays
}

// bestPostingTime buckets top posts by (weekday, hour) in UTC and
// returns the argmax bucket's day/hour, or nil if there are no posts.
func bestPostingTime(posts []RawPost) (*int, *int) {
	if len(posts) == 0 {
		return nil, nil
	}

	type bucket struct{ day, hour int }
	counts := map[bucket]int{}
	for _, p := range posts {
		t := time.Unix(int64(p.CreatedUTC), 0).UTC()
		counts[bucket{day: int(t.Weekday()), hour: t.Hour()}]++
	}

	var best bucket
	bestCount := -1
	for b, c := range counts {
		if c > bestCount {
			best = b
			bestCount = c
		}
	}
	day, hour := best.day, best.hour
	return &day, &hour
}

// AuthorStat is one discovered author's karma/age, fed to
// computeQuartileThresholds.
type AuthorStat struct {
	Username       string
	AccountAgeDays int64
	PostKarma      int64
	CommentKarma   int64
}

// QuartileThresholds holds the subreddit's recomputed minimum-quality
// gates (spec §4.6), only meaningful when based on ≥10 authors.
type QuartileThresholds struct {
	MinPostKarma      int64
	MinCommentKarma   int64
	MinAccountAgeDays int64
	Sufficient        bool
}

// computeQuartileThresholds derives min_post_karma/min_comment_karma/
// min_account_age_days from the lower quartile of observed authors,
// recomputing only when at least 10 distinct authors were observed.
func computeQuartileThresholds(authors []AuthorStat) QuartileThresholds {
	if len(authors) < 10 {
		return QuartileThresholds{}
	}

	postKarma := make([]int64, len(authors))
	commentKarma := make([]int64, len(authors))
	age := make([]int64, len(authors))
	for i, a := range authors {
		postKarma[i] = a.PostKarma
		commentKarma[i] = a.CommentKarma
		age[i] = a.AccountAgeDays
	}
	sort.Slice(postKarma, func(i, j int) bool { return postKarma[i] < postKarma[j] })
	sort.Slice(commentKarma, func(i, j int) bool { return commentKarma[i] < commentKarma[j] })
	sort.Slice(age, func(i, j int) bool { return age[i] < age[j] })

	return QuartileThresholds{
		MinPostKarma:      lowerQuartile(postKarma),
		MinCommentKarma:   lowerQuartile(commentKarma),
		MinAccountAgeDays: lowerQuartile(age),
		Sufficient:        true,
	}
}

// lowerQuartile returns the Q1 value of a pre-sorted ascending slice
// using the nearest-rank method.
func lowerQuartile(sorted []int64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(0.25*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// UserQualityScores is the output of computeUserQualityScores (spec
// §4.7), grounded verbatim on calculator.py's weights and buckets.
type UserQualityScores struct {
	UsernameScore float64
	AgeScore      float64
	KarmaScore    float64
	OverallScore  float64
}

func computeUserQualityScores(username string, accountAgeDays, postKarma, commentKarma int64) UserQualityScores {
	u := usernameScore(username)
	a := ageScore(accountAgeDays)
	k := karmaScore(postKarma, commentKarma)
	overall := round2(u*0.2 + a*0.3 + k*0.5)
	return UserQualityScores{
		UsernameScore: round2(u),
		AgeScore:      round2(a),
		KarmaScore:    round2(k),
		OverallScore:  overall,
	}
}

func usernameScore(username string) float64 {
	score := 100.0

	numCount := 0
	underscoreCount := 0
	for _, r := range username {
		if r >= '0' && r <= '9' {
			numCount++
		}
		if r == '_' {
			underscoreCount++
		}
	}

	score -= math.Min(float64(numCount)*5, 30)
	score -= math.Min(float64(underscoreCount)*10, 20)

	if len(username) < 4 {
		score -= 20
	}
	if len(username) >= 6 && len(username) <= 15 {
		score += 10
	}

	return math.Max(0, math.Min(score, 100))
}

func ageScore(accountAgeDays int64) float64 {
	switch {
	case accountAgeDays < 30:
		return 20
	case accountAgeDays < 90:
		return 40
	case accountAgeDays < 180:
		return 60
	case accountAgeDays < 365:
		return 80
	default:
		return 100
	}
}

func karmaScore(postKarma, commentKarma int64) float64 {
	total := postKarma + commentKarma
	switch {
	case total < 100:
		return 20
	case total < 500:
		return 40
	case total < 1000:
		return 60
	case total < 5000:
		return 80
	default:
		return 100
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
