package models

import "time"

// ReviewState is a curator-assigned classification controlling
// scraper behavior for a subreddit.
type ReviewState string

const (
	ReviewUnset      ReviewState = ""
	ReviewOk         ReviewState = "Ok"
	ReviewNoSeller   ReviewState = "No Seller"
	ReviewNonRelated ReviewState = "Non Related"
	ReviewUserFeed   ReviewState = "User Feed"
	ReviewBanned     ReviewState = "Banned"
	ReviewPrivate    ReviewState = "Private"
	ReviewNotFound   ReviewState = "NotFound"
)

// Subreddit is the primary unit of scraping. Name is always lower-case.
type Subreddit struct {
	Name             string
	DisplayName      string
	URL              string
	Subscribers      int64
	AccountsActive   int64
	Over18           *bool
	Review           ReviewState
	PrimaryCategory  string // "Unknown" when unset
	Tags             []string
	LastScrapedAt    *time.Time
	CreatedAt        time.Time

	// Computed metrics (C6).
	AvgUpvotesPerPost   float64
	AvgCommentsPerPost  float64
	Engagement          float64
	SubredditScore      float64
	BestPostingDay      *int // time.Weekday: 0=Sunday .. 6=Saturday
	BestPostingHour     *int // 0-23
	MinPostKarma        *int64
	MinCommentKarma     *int64
	MinAccountAgeDays   *int64
}

// HasProtectedReview reports whether review+tags are in a state the
// categorizer/curator owns and routine scraping must not overwrite.
func (s *Subreddit) HasProtectedReview() bool {
	return s.Review == ReviewOk || s.Review == ReviewNoSeller
}

// RedditUser is a discovered or processed Reddit account.
type RedditUser struct {
	Username        string
	AccountAgeDays  int64
	PostKarma       int64
	CommentKarma    int64
	IsSuspended     bool

	UsernameScore float64
	AgeScore      float64
	KarmaScore    float64
	OverallScore  float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostFlags bundles the boolean attributes Reddit exposes per post.
type PostFlags struct {
	Over18   bool
	Spoiler  bool
	Stickied bool
	Locked   bool
	IsSelf   bool
	IsVideo  bool
	IsGallery bool
}

// Post is a single fetched Reddit submission, unique by RedditID.
type Post struct {
	RedditID      string
	Title         string
	Author        string
	SubredditName string
	CreatedUTC    time.Time
	Score         int64
	UpvoteRatio   float64
	NumComments   int64
	Flags         PostFlags
	Permalink     string
	URL           string
	Domain        string
	Selftext      string // truncated to 2000 chars
	PostType      string

	// Mirror fields copied from the parent subreddit at insert time.
	SubPrimaryCategory string
	SubTags            []string
	SubOver18          *bool
}

// TruncateSelftext enforces the 2000-character cap on stored body text.
func TruncateSelftext(s string) string {
	const maxLen = 2000
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
