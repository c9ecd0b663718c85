package models

import "time"

// InstagramCreator is a tracked Instagram account, unique by IGUserID.
type InstagramCreator struct {
	IGUserID      string
	Username      string
	FollowersCount int64
	FollowingCount int64
	MediaCount     int64
	Niche          string
	ReviewStatus   string
	ProfilePicURL  string
	Enabled        bool

	AvgViewsPerReel      float64
	AvgEngagementPerPost float64
	EngagementRate       float64

	LastScrapedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MediaCounts bundles the engagement counters shared by reels and posts.
type MediaCounts struct {
	LikeCount    int64
	CommentCount int64
	ViewCount    int64
	PlayCount    int64
}

// Reel is a single Instagram reel, unique by MediaPK.
type Reel struct {
	MediaPK   string
	CreatorID string
	TakenAt   time.Time
	Counts    MediaCounts
	MediaURLs []string
	IsViral   bool
}

// IGPost is a single Instagram feed post, unique by MediaPK.
type IGPost struct {
	MediaPK   string
	CreatorID string
	TakenAt   time.Time
	Counts    MediaCounts
	MediaURLs []string
}

// FollowerSnapshot is one point in a creator's follower time series,
// used to compute daily/weekly growth rate (supplemented feature).
type FollowerSnapshot struct {
	CreatorID      string
	ObservedAt     time.Time
	FollowersCount int64
}
