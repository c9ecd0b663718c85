package instagram

// ContentStat is the minimal shape analytics needs from a reel or post.
type ContentStat struct {
	LikeCount    int64
	CommentCount int64
	ViewCount    int64
}

// Analytics is the computed output of computeAnalytics (spec §4.8 step 5).
type Analytics struct {
	EngagementRate       float64
	AvgViewsPerReel      float64
	AvgEngagementPerPost float64
}

// computeAnalytics implements spec §4.8's engagement formulas as a
// pure function over recent content, the same shape as the Reddit
// metric calculator in internal/reddit/metrics.go.
func computeAnalytics(reels, posts []ContentStat, followers int64) Analytics {
	var a Analytics

	recent := append(append([]ContentStat{}, reels...), posts...)
	if len(recent) > 0 && followers > 0 {
		var sumRate float64
		for _, c := range recent {
			sumRate += float64(c.LikeCount+c.CommentCount) / float64(followers)
		}
		a.EngagementRate = sumRate / float64(len(recent))
	}

	if len(reels) > 0 {
		var sumViews int64
		for _, r := range reels {
			sumViews += r.ViewCount
		}
		a.AvgViewsPerReel = float64(sumViews) / float64(len(reels))
	}

	if len(posts) > 0 {
		var sumEngagement int64
		for _, p := range posts {
			sumEngagement += p.LikeCount + p.CommentCount
		}
		a.AvgEngagementPerPost = float64(sumEngagement) / float64(len(posts))
	}

	return a
}

// isViral implements spec §4.8's viral flag: view_count ≥
// max(50_000, 5·avg_views).
func isViral(viewCount int64, avgViews float64) bool {
	threshold := 5 * avgViews
	if threshold < 50_000 {
		threshold = 50_000
	}
	return float64(viewCount) >= threshold
}
