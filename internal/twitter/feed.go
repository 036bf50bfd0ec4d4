package twitter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tweet-sentiment-trader-go/internal/backtest"
	"tweet-sentiment-trader-go/internal/cache"
	"tweet-sentiment-trader-go/internal/market"
	"tweet-sentiment-trader-go/internal/models"

	"go.uber.org/zap"
)

// Source is the subset of the API the feed needs.
type Source interface {
	UserID(ctx context.Context, handle string) (string, error)
	Tweets(ctx context.Context, userID string, from, to time.Time) ([]Tweet, error)
}

type dayKey struct {
	Handle string
	Date   string
}

// Feed serves the posts of a handle per day, backed by the API, a file cache and
// an in-memory read-through cache.
type Feed struct {
	source  Source
	files   *FileCache // nil disables the file cache
	session *market.Session
	logger  *zap.Logger
	userIDs *cache.Store[string, string]
	days    *cache.Store[dayKey, []models.Post]
}

var _ backtest.Feed = (*Feed)(nil)

// NewFeed creates a Feed. files may be nil.
func NewFeed(source Source, files *FileCache, session *market.Session, logger *zap.Logger) *Feed {
	return &Feed{
		source:  source,
		files:   files,
		session: session,
		logger:  logger,
		userIDs: cache.NewStore[string, string](),
		days:    cache.NewStore[dayKey, []models.Post](),
	}
}

// Posts returns the posts of handle on day in chronological order without duplicates.
// In live mode only posts inside the monitored open and close windows are returned.
func (f *Feed) Posts(ctx context.Context, handle string, day time.Time, mode models.FeedMode) ([]models.Post, error) {
	day = f.session.Day(day)
	key := dayKey{Handle: handle, Date: day.Format(market.DateLayout)}

	posts, err := f.days.GetOrLoad(ctx, key, func(ctx context.Context) ([]models.Post, error) {
		return f.load(ctx, handle, day)
	})
	if err != nil {
		return nil, err
	}

	if mode != models.FeedLive {
		return append([]models.Post(nil), posts...), nil
	}
	var filtered []models.Post
	for _, p := range posts {
		if f.session.InMonitoredWindow(p.CreatedAt) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Refresh bypasses the in-memory cache and fetches the day from the API again.
// The live trader polls today's posts with it.
func (f *Feed) Refresh(ctx context.Context, handle string, day time.Time, mode models.FeedMode) ([]models.Post, error) {
	day = f.session.Day(day)
	posts, err := f.fetch(ctx, handle, day)
	if err != nil {
		return nil, err
	}
	if mode != models.FeedLive {
		return posts, nil
	}
	var filtered []models.Post
	for _, p := range posts {
		if f.session.InMonitoredWindow(p.CreatedAt) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (f *Feed) load(ctx context.Context, handle string, day time.Time) ([]models.Post, error) {
	l := f.logger.With(zap.String("handle", handle), zap.String("date", day.Format(market.DateLayout)))

	if f.files != nil {
		records, ok, err := f.files.Load(handle, day)
		if err != nil {
			l.Warn("Ignoring unreadable post cache", zap.Error(err))
		} else if ok {
			posts, err := fromRecords(handle, records)
			if err == nil {
				l.Debug("Loaded posts from cache", zap.Int("count", len(posts)))
				return normalize(posts), nil
			}
			l.Warn("Ignoring corrupt post cache", zap.Error(err))
		}
	}

	return f.fetch(ctx, handle, day)
}

func (f *Feed) fetch(ctx context.Context, handle string, day time.Time) ([]models.Post, error) {
	userID, err := f.userIDs.GetOrLoad(ctx, handle, func(ctx context.Context) (string, error) {
		return f.source.UserID(ctx, handle)
	})
	if err != nil {
		return nil, err
	}

	tweets, err := f.source.Tweets(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(tweets))
	for _, t := range tweets {
		posts = append(posts, models.Post{ID: t.ID, Text: t.Text, Author: handle, CreatedAt: t.CreatedAt})
	}
	posts = normalize(posts)

	if f.files != nil {
		if err := f.files.Save(handle, day, toRecords(posts, f.session.Location())); err != nil {
			f.logger.Warn("Failed to cache posts", zap.String("handle", handle), zap.Error(err))
		}
	}
	return posts, nil
}

// normalize sorts posts by creation time and drops repeated ids, keeping the first.
func normalize(posts []models.Post) []models.Post {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	seen := make(map[string]struct{}, len(posts))
	out := posts[:0]
	for _, p := range posts {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

func toRecords(posts []models.Post, loc *time.Location) []Record {
	records := make([]Record, len(posts))
	for i, p := range posts {
		records[i] = Record{ID: p.ID, Text: p.Text, CreatedAt: p.CreatedAt.In(loc).Format(time.RFC3339)}
	}
	return records
}

func fromRecords(handle string, records []Record) ([]models.Post, error) {
	posts := make([]models.Post, 0, len(records))
	for _, r := range records {
		created, err := time.Parse(time.RFC3339, r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", r.ID, err)
		}
		posts = append(posts, models.Post{ID: r.ID, Text: r.Text, Author: handle, CreatedAt: created})
	}
	return posts, nil
}
