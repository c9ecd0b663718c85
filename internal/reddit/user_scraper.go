package reddit

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/b9dashboard/social-ingest/internal/apperr"
	"github.com/b9dashboard/social-ingest/internal/models"
)

// UserStore is the narrow persistence dependency of the user scraper:
// reading the work queue, writing computed scores, marking suspended
// accounts, and discovering new subreddits from a user's submissions.
type UserStore interface {
	UserWorkQueue(ctx context.Context, limit int) ([]string, error)
	UpsertUser(ctx context.Context, user models.RedditUser) error
	MarkSuspended(ctx context.Context, username string) error
	DiscoverSubreddits(ctx context.Context, names []string) error
}

// UserScraperOptions carries C7's per-cycle tunables.
type UserScraperOptions struct {
	UserSubmissionsLimit int
	BatchSize            int
}

// UserScraper runs one C7 cycle against the user work queue.
type UserScraper struct {
	client  *Client
	store   UserStore
	proxies ProxyPicker
}

func NewUserScraper(client *Client, store UserStore, proxies ProxyPicker) *UserScraper {
	return &UserScraper{client: client, store: store, proxies: proxies}
}

// RunCycle processes the user work queue in order, polling enabled
// between usernames so a control row disable is observed within the
// current fetch plus one more username, not the whole queue. enabled
// may be nil, which skips the check (the run-once commands pass a
// function that always returns true).
func (s *UserScraper) RunCycle(ctx context.Context, opts UserScraperOptions, enabled func() bool) error {
	usernames, err := s.store.UserWorkQueue(ctx, opts.BatchSize)
	if err != nil {
		return err
	}

	for _, username := range usernames {
		if enabled != nil && !enabled() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.processOne(ctx, username, opts)
	}
	return nil
}

func (s *UserScraper) processOne(ctx context.Context, username string, opts UserScraperOptions) {
	var p *models.Proxy
	if s.proxies != nil {
		picked, err := s.proxies.Next()
		if err == nil {
			p = picked
		}
	}

	about, kind := s.client.FetchUserAbout(ctx, username, p)
	if kind == apperr.KindForbidden {
		if err := s.store.MarkSuspended(ctx, username); err != nil {
			log.Error().Err(err).Str("user", username).Msg("user scraper: failed to mark suspended")
		}
		return
	}
	if kind != "" {
		log.Warn().Str("user", username).Str("kind", string(kind)).Msg("user scraper: about fetch failed, skipping")
		return
	}

	submitted, kind := s.client.FetchUserSubmitted(ctx, username, opts.UserSubmissionsLimit, p)
	if kind != "" {
		log.Warn().Str("user", username).Str("kind", string(kind)).Msg("user scraper: submissions fetch failed, continuing with scores only")
		submitted = nil
	}

	accountAgeDays := int64(time.Since(time.Unix(int64(about.CreatedUTC), 0)).Hours() / 24)
	scores := computeUserQualityScores(username, accountAgeDays, about.LinkKarma, about.CommentKarma)

	user := models.RedditUser{
		Username:       username,
		AccountAgeDays: accountAgeDays,
		PostKarma:      about.LinkKarma,
		CommentKarma:   about.CommentKarma,
		IsSuspended:    about.IsSuspended,
		UsernameScore:  scores.UsernameScore,
		AgeScore:       scores.AgeScore,
		KarmaScore:     scores.KarmaScore,
		OverallScore:   scores.OverallScore,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.store.UpsertUser(ctx, user); err != nil {
		log.Error().Err(err).Str("user", username).Msg("user scraper: upsert failed")
		return
	}

	discovered := uniqueSubreddits(submitted)
	if len(discovered) > 0 {
		if err := s.store.DiscoverSubreddits(ctx, discovered); err != nil {
			log.Error().Err(err).Str("user", username).Msg("user scraper: subreddit discovery failed")
		}
	}
}

// uniqueSubreddits normalizes each name to lowercase before dedup so
// "SomeSub" and "somesub" collapse to one discovery candidate, matching
// the case-insensitive key DiscoverSubreddits upserts against.
func uniqueSubreddits(posts []RawPost) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range posts {
		name := strings.ToLower(p.Subreddit)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
