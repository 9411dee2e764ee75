// ABOUTME: Status service: paginates hashtag timelines from Mastodon, persists statuses, and reads the timeline views.
// ABOUTME: Sits between the API client, the on-disk status files, and the SQLite index.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/2389-research/tagfeed/logging"
	"github.com/2389-research/tagfeed/mastodon"
	"github.com/2389-research/tagfeed/store"
	"golang.org/x/sync/errgroup"
)

// maxPages bounds one PaginateTimeline call so a misbehaving instance cannot
// keep it looping.
const maxPages = 50

// API is the subset of the Mastodon client the service uses.
type API interface {
	TagTimeline(ctx context.Context, hashtag, minID string) ([]mastodon.Status, error)
	Status(ctx context.Context, id string) (*mastodon.Status, error)
}

// Index is the subset of the SQLite index the service uses.
type Index interface {
	RecentStatusID(tag string) (string, error)
	SetRecentStatusID(tag, statusID string) error
	InsertStatuses(statuses []mastodon.Status) error
	SearchStatuses(tags []string, limit int) ([]string, error)
	PopularStatuses(tags []string, since time.Time, limit int) ([]string, error)
	ListStaleStatuses(since, freshSince time.Time, limit int) ([]string, error)
	PopularTags(days, limit int) ([]store.TagCount, error)
}

// StatusFiles is the subset of the status file cache the service uses.
type StatusFiles interface {
	Write(s *mastodon.Status) error
	ReadMany(ids []string) ([]mastodon.Status, error)
}

// Service implements the status operations.
type Service struct {
	api      API
	index    Index
	files    StatusFiles
	tagCache *Cache[string, []store.TagCount]

	// PersistConcurrency bounds concurrent file writes in PersistStatuses.
	PersistConcurrency int
}

// NewService wires a Service. Popular tag counts are cached for tagTTL.
func NewService(api API, index Index, files StatusFiles, tagTTL time.Duration) *Service {
	return &Service{
		api:                api,
		index:              index,
		files:              files,
		tagCache:           NewCache[string, []store.TagCount](tagTTL),
		PersistConcurrency: 8,
	}
}

// PaginateTimeline returns the statuses for hashtag that are newer than the
// stored cursor, newest first, and stores the new cursor. Without a cursor
// only the latest page is fetched and its oldest status becomes the cursor;
// with one, pages are walked forward with min_id until an empty page.
func (s *Service) PaginateTimeline(ctx context.Context, hashtag string) ([]mastodon.Status, error) {
	statuses, cursor, err := s.fetchNew(ctx, hashtag)
	if err != nil {
		return nil, err
	}
	if err := s.advanceCursor(hashtag, cursor); err != nil {
		return nil, err
	}
	return statuses, nil
}

// fetchNew walks hashtag's timeline from the stored cursor and returns the
// statuses newest first along with the cursor to store once they are
// persisted. The stored cursor is not touched.
func (s *Service) fetchNew(ctx context.Context, hashtag string) ([]mastodon.Status, string, error) {
	cursor, err := s.index.RecentStatusID(hashtag)
	if err != nil {
		return nil, "", err
	}

	if cursor == "" {
		statuses, err := s.api.TagTimeline(ctx, hashtag, "")
		if err != nil {
			return nil, "", err
		}
		if len(statuses) > 0 {
			cursor = statuses[len(statuses)-1].ID
		}
		mastodon.SortNewestFirst(statuses)
		return statuses, cursor, nil
	}

	var statuses []mastodon.Status
	for page := 0; page < maxPages; page++ {
		batch, err := s.api.TagTimeline(ctx, hashtag, cursor)
		if err != nil {
			return nil, "", err
		}
		if len(batch) == 0 {
			break
		}
		highest := mastodon.MaxID(batch)
		if mastodon.CompareIDs(highest, cursor) <= 0 {
			// The instance ignored min_id; stop rather than loop on the same page.
			break
		}
		cursor = highest
		logging.Debugf("timeline: page tag=%s statuses=%d cursor=%s", hashtag, len(batch), cursor)
		statuses = append(statuses, batch...)
	}

	mastodon.SortNewestFirst(statuses)
	return statuses, cursor, nil
}

func (s *Service) advanceCursor(hashtag, cursor string) error {
	if cursor == "" {
		return nil
	}
	if err := s.index.SetRecentStatusID(hashtag, cursor); err != nil {
		return fmt.Errorf("update cursor for %s: %w", hashtag, err)
	}
	return nil
}

// FetchStatuses refetches statuses by ID. Statuses that no longer exist are
// skipped; any other error aborts.
func (s *Service) FetchStatuses(ctx context.Context, ids []string) ([]mastodon.Status, error) {
	statuses := make([]mastodon.Status, 0, len(ids))
	for _, id := range ids {
		status, err := s.api.Status(ctx, id)
		var nf *mastodon.NotFoundError
		switch {
		case errors.As(err, &nf):
			logging.Warnf("timeline: status not found, probably deleted id=%s", id)
		case err != nil:
			return nil, err
		default:
			statuses = append(statuses, *status)
		}
	}
	return statuses, nil
}

// PersistStatuses writes every status to disk, then indexes them in one
// transaction.
func (s *Service) PersistStatuses(ctx context.Context, statuses []mastodon.Status) error {
	if len(statuses) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.PersistConcurrency))
	for i := range statuses {
		status := &statuses[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return s.files.Write(status)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("persist statuses: %w", err)
	}

	if err := s.index.InsertStatuses(statuses); err != nil {
		return fmt.Errorf("index statuses: %w", err)
	}
	s.tagCache.Clear()
	logging.Debugf("timeline: persisted statuses=%d", len(statuses))
	return nil
}

// RetrieveStatuses returns the newest stored statuses carrying any of tags.
func (s *Service) RetrieveStatuses(tags []string, limit int) ([]mastodon.Status, error) {
	ids, err := s.index.SearchStatuses(tags, limit)
	if err != nil {
		return nil, err
	}
	return s.files.ReadMany(ids)
}

// PopularStatuses returns stored statuses created since since, carrying any
// of tags, by engagement.
func (s *Service) PopularStatuses(tags []string, since time.Time, limit int) ([]mastodon.Status, error) {
	ids, err := s.index.PopularStatuses(tags, since, limit)
	if err != nil {
		return nil, err
	}
	return s.files.ReadMany(ids)
}

// ListStaleStatuses lists statuses created after since whose last refresh
// predates freshSince.
func (s *Service) ListStaleStatuses(since, freshSince time.Time, limit int) ([]string, error) {
	return s.index.ListStaleStatuses(since, freshSince, limit)
}

// PeriodTags is the popular tag list for one period.
type PeriodTags struct {
	Days int
	Tags []store.TagCount
}

// PopularTags returns the top tags for each period in days, in the order
// given.
func (s *Service) PopularTags(ctx context.Context, periods []int, limit int) ([]PeriodTags, error) {
	out := make([]PeriodTags, 0, len(periods))
	for _, days := range periods {
		key := strconv.Itoa(days) + "/" + strconv.Itoa(limit)
		tags, err := s.tagCache.Get(ctx, key, func(context.Context) ([]store.TagCount, error) {
			return s.index.PopularTags(days, limit)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, PeriodTags{Days: days, Tags: tags})
	}
	return out, nil
}

// UpdateHashtags paginates every hashtag concurrently, merges the results,
// and persists them. Returns the number of new statuses. A hashtag that fails
// to paginate is logged and skipped; the others are still persisted. Cursors
// only advance once their statuses are persisted, so a failed cycle is
// fetched again on the next one.
func (s *Service) UpdateHashtags(ctx context.Context, hashtags []string) (int, error) {
	type result struct {
		statuses []mastodon.Status
		cursor   string
		ok       bool
	}
	results := make([]result, len(hashtags))

	var g errgroup.Group
	for i, tag := range hashtags {
		g.Go(func() error {
			statuses, cursor, err := s.fetchNew(ctx, tag)
			if err != nil {
				logging.Errorf("timeline: paginate failed tag=%s err=%v", tag, err)
				return nil
			}
			logging.Debugf("timeline: retrieved tag=%s statuses=%d", tag, len(statuses))
			results[i] = result{statuses: statuses, cursor: cursor, ok: true}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	batches := make([][]mastodon.Status, 0, len(results))
	failed := 0
	for _, r := range results {
		if !r.ok {
			failed++
			continue
		}
		batches = append(batches, r.statuses)
	}
	merged := MergeTimeline(batches...)
	log.Printf("timeline: update complete hashtags=%d failed=%d statuses=%d", len(hashtags), failed, len(merged))

	if err := s.PersistStatuses(ctx, merged); err != nil {
		return 0, err
	}
	for i, r := range results {
		if !r.ok {
			continue
		}
		if err := s.advanceCursor(hashtags[i], r.cursor); err != nil {
			return len(merged), err
		}
	}
	return len(merged), nil
}

// MergeTimeline concatenates batches and returns them newest ID first with
// duplicate IDs removed.
func MergeTimeline(batches ...[]mastodon.Status) []mastodon.Status {
	var merged []mastodon.Status
	for _, b := range batches {
		merged = append(merged, b...)
	}
	return mastodon.Dedupe(merged)
}
