// ABOUTME: Tests for the status service, hashtag subscriptions, and the TTL cache.
// ABOUTME: Uses a scripted fake Mastodon API over a real SQLite index and status files in t.TempDir().
package timeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2389-research/tagfeed/mastodon"
	"github.com/2389-research/tagfeed/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a fixed set of statuses per tag, honoring min_id the way
// Mastodon does: the page just above min_id, oldest first, pageSize at most.
type fakeAPI struct {
	mu       sync.Mutex
	tags     map[string][]mastodon.Status
	byID     map[string]mastodon.Status
	pageSize int
	calls    []string
	fail     error
	failTags map[string]error

	// failAfter makes every call past the first failAfter return fail.
	failAfter int
}

func newFakeAPI(pageSize int) *fakeAPI {
	return &fakeAPI{tags: map[string][]mastodon.Status{}, byID: map[string]mastodon.Status{}, pageSize: pageSize}
}

func (f *fakeAPI) add(tag string, ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range ids {
		s := mastodon.Status{
			ID:        fmt.Sprint(n),
			CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
			Account:   mastodon.Account{ID: "1", Acct: "alice"},
			Tags:      []mastodon.Tag{{Name: tag}},
		}
		f.tags[tag] = append(f.tags[tag], s)
		f.byID[s.ID] = s
	}
}

func (f *fakeAPI) TagTimeline(_ context.Context, tag, minID string) ([]mastodon.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tag+"@"+minID)
	if f.fail != nil && len(f.calls) > f.failAfter {
		return nil, f.fail
	}
	if err := f.failTags[tag]; err != nil {
		return nil, err
	}

	all := append([]mastodon.Status(nil), f.tags[tag]...)
	mastodon.SortNewestFirst(all)
	if minID == "" {
		if len(all) > f.pageSize {
			all = all[:f.pageSize]
		}
		return all, nil
	}

	var newer []mastodon.Status
	for i := len(all) - 1; i >= 0; i-- {
		if mastodon.CompareIDs(all[i].ID, minID) > 0 {
			newer = append(newer, all[i])
		}
	}
	if len(newer) > f.pageSize {
		newer = newer[:f.pageSize]
	}
	return newer, nil
}

func (f *fakeAPI) Status(_ context.Context, id string) (*mastodon.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, &mastodon.NotFoundError{APIError: mastodon.APIError{StatusCode: 404}}
	}
	return &s, nil
}

type fixture struct {
	api     *fakeAPI
	index   *store.Index
	files   *store.Files
	service *Service
}

func newFixture(t *testing.T, pageSize int) *fixture {
	t.Helper()
	dir := t.TempDir()
	idx, err := store.OpenIndex(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	api := newFakeAPI(pageSize)
	files := store.NewFiles(dir)
	return &fixture{api: api, index: idx, files: files, service: NewService(api, idx, files, time.Minute)}
}

func ids(statuses []mastodon.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.ID
	}
	return out
}

func TestPaginateFirstRunSetsCursorToOldest(t *testing.T) {
	f := newFixture(t, 3)
	f.api.add("minis", 1, 2, 3, 4, 5)

	got, err := f.service.PaginateTimeline(context.Background(), "minis")
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "4", "3"}, ids(got))

	cursor, err := f.index.RecentStatusID("minis")
	require.NoError(t, err)
	assert.Equal(t, "3", cursor)
}

func TestPaginateWalksForwardFromCursor(t *testing.T) {
	f := newFixture(t, 2)
	f.api.add("minis", 8, 9, 10)
	require.NoError(t, f.index.SetRecentStatusID("minis", "3"))
	f.api.add("minis", 1, 2, 3, 4, 5, 6, 7)

	got, err := f.service.PaginateTimeline(context.Background(), "minis")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "9", "8", "7", "6", "5", "4"}, ids(got))

	cursor, _ := f.index.RecentStatusID("minis")
	assert.Equal(t, "10", cursor)

	// Nothing new on the next run.
	got, err = f.service.PaginateTimeline(context.Background(), "minis")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPaginateEmptyTimeline(t *testing.T) {
	f := newFixture(t, 5)

	got, err := f.service.PaginateTimeline(context.Background(), "quiet")
	require.NoError(t, err)
	assert.Empty(t, got)

	cursor, _ := f.index.RecentStatusID("quiet")
	assert.Equal(t, "", cursor)
}

func TestPaginateError(t *testing.T) {
	f := newFixture(t, 5)
	f.api.fail = errors.New("boom")

	_, err := f.service.PaginateTimeline(context.Background(), "minis")
	assert.EqualError(t, err, "boom")
}

func TestFetchStatusesSkipsDeleted(t *testing.T) {
	f := newFixture(t, 5)
	f.api.add("minis", 1, 2)

	got, err := f.service.FetchStatuses(context.Background(), []string{"1", "404", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, ids(got))
}

func TestPersistAndRetrieve(t *testing.T) {
	f := newFixture(t, 10)
	f.api.add("minis", 1, 2, 3)
	f.api.add("paint", 4)

	n, err := f.service.UpdateHashtags(context.Background(), []string{"minis", "paint"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := f.service.RetrieveStatuses([]string{"minis"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2", "1"}, ids(got))

	got, err = f.service.RetrieveStatuses([]string{"minis", "paint"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3"}, ids(got))

	_, err = f.files.Read("4")
	assert.NoError(t, err, "status file written")
}

func TestUpdateHashtagsDedupesAcrossTags(t *testing.T) {
	f := newFixture(t, 10)
	f.api.add("minis", 1, 2)
	f.api.mu.Lock()
	f.api.tags["paint"] = append(f.api.tags["paint"], f.api.tags["minis"]...)
	f.api.mu.Unlock()

	n, err := f.service.UpdateHashtags(context.Background(), []string{"minis", "paint"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdateHashtagsPersistsPastFailingTag(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.index.SetRecentStatusID("minis", "1"))
	f.api.add("minis", 1, 2, 3, 4, 5)
	f.api.add("broken", 6)
	f.api.failTags = map[string]error{"broken": errors.New("instance 502")}

	n, err := f.service.UpdateHashtags(context.Background(), []string{"minis", "broken"})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	got, err := f.service.RetrieveStatuses([]string{"minis"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "4", "3", "2"}, ids(got))

	cursor, _ := f.index.RecentStatusID("minis")
	assert.Equal(t, "5", cursor)
	cursor, _ = f.index.RecentStatusID("broken")
	assert.Equal(t, "", cursor, "failed tag keeps its cursor")

	// Once the instance recovers the skipped tag is picked up.
	f.api.mu.Lock()
	f.api.failTags = nil
	f.api.mu.Unlock()
	n, err = f.service.UpdateHashtags(context.Background(), []string{"minis", "broken"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = f.service.RetrieveStatuses([]string{"broken"}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, ids(got))
}

// failingFiles refuses every write.
type failingFiles struct {
	StatusFiles
	err error
}

func (f failingFiles) Write(*mastodon.Status) error { return f.err }

func TestUpdateHashtagsPersistFailureKeepsCursors(t *testing.T) {
	f := newFixture(t, 10)
	require.NoError(t, f.index.SetRecentStatusID("minis", "1"))
	f.api.add("minis", 1, 2, 3)

	broken := NewService(f.api, f.index, failingFiles{StatusFiles: f.files, err: errors.New("disk full")}, time.Minute)
	_, err := broken.UpdateHashtags(context.Background(), []string{"minis"})
	require.Error(t, err)

	cursor, _ := f.index.RecentStatusID("minis")
	assert.Equal(t, "1", cursor, "cursor stays put when nothing was persisted")
	got, err := f.service.RetrieveStatuses([]string{"minis"}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// The next healthy cycle fetches the same statuses again.
	n, err := f.service.UpdateHashtags(context.Background(), []string{"minis"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	cursor, _ = f.index.RecentStatusID("minis")
	assert.Equal(t, "3", cursor)
}

func TestPaginateErrorMidWalkKeepsCursor(t *testing.T) {
	f := newFixture(t, 1)
	require.NoError(t, f.index.SetRecentStatusID("minis", "1"))
	f.api.add("minis", 1, 2, 3)
	f.api.fail = errors.New("boom")
	f.api.failAfter = 1

	_, err := f.service.PaginateTimeline(context.Background(), "minis")
	require.Error(t, err)
	cursor, _ := f.index.RecentStatusID("minis")
	assert.Equal(t, "1", cursor)
}

func TestPopularStatuses(t *testing.T) {
	f := newFixture(t, 10)
	now := time.Now()
	statuses := []mastodon.Status{
		{ID: "1", CreatedAt: now.Add(-time.Hour), FavouritesCount: 1, Tags: []mastodon.Tag{{Name: "minis"}}},
		{ID: "2", CreatedAt: now.Add(-time.Hour), ReblogsCount: 9, Tags: []mastodon.Tag{{Name: "minis"}}},
	}
	require.NoError(t, f.service.PersistStatuses(context.Background(), statuses))

	got, err := f.service.PopularStatuses([]string{"minis"}, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, ids(got))
}

func TestPopularTagsCached(t *testing.T) {
	f := newFixture(t, 10)
	var fills atomic.Int32
	idx := &countingIndex{Index: f.index, fills: &fills}
	svc := NewService(f.api, idx, f.files, time.Hour)

	for i := 0; i < 3; i++ {
		got, err := svc.PopularTags(context.Background(), []int{7, 30}, 5)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 7, got[0].Days)
		assert.Equal(t, 30, got[1].Days)
	}
	assert.Equal(t, int32(2), fills.Load())

	require.NoError(t, svc.PersistStatuses(context.Background(), []mastodon.Status{{ID: "9", CreatedAt: time.Now()}}))
	_, err := svc.PopularTags(context.Background(), []int{7}, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fills.Load(), "persisting invalidates the cache")
}

type countingIndex struct {
	*store.Index
	fills *atomic.Int32
}

func (c *countingIndex) PopularTags(days, limit int) ([]store.TagCount, error) {
	c.fills.Add(1)
	return c.Index.PopularTags(days, limit)
}

func TestHashtags(t *testing.T) {
	f := newFixture(t, 10)
	h := NewHashtags(f.index)

	require.NoError(t, h.Suggest("  #Minis "))
	require.NoError(t, h.Suggest("Minis"))
	require.NoError(t, h.Suggest(""))

	err := h.Suggest("not a tag")
	assert.True(t, errors.Is(err, ErrInvalidHashtag))

	list, err := h.List()
	require.NoError(t, err)
	assert.Empty(t, list)

	suggestions, err := h.Suggestions()
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Minis", suggestions[0].Name)
	assert.Equal(t, 2, suggestions[0].Votes)

	require.NoError(t, h.Approve("#Minis"))
	list, err = h.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Minis"}, list)
}

func TestValidHashtag(t *testing.T) {
	for _, ok := range []string{"minis", "Hobby_Streak", "café", "2024art"} {
		assert.True(t, ValidHashtag(ok), ok)
	}
	for _, bad := range []string{"", "1234", "two words", "semi;colon", "dash-ed"} {
		assert.False(t, ValidHashtag(bad), bad)
	}
}

func TestCache(t *testing.T) {
	c := NewCache[string, int](time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	calls := 0
	fill := func(context.Context) (int, error) { calls++; return calls, nil }

	v, err := c.Get(context.Background(), "k", fill)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, _ = c.Get(context.Background(), "k", fill)
	assert.Equal(t, 1, v)

	now = now.Add(2 * time.Minute)
	v, _ = c.Get(context.Background(), "k", fill)
	assert.Equal(t, 2, v, "expired entry recomputed")

	_, err = c.Get(context.Background(), "err", func(context.Context) (int, error) { return 0, errors.New("nope") })
	assert.Error(t, err)
	assert.Equal(t, 1, c.Len(), "errors are not cached")

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestMergeTimeline(t *testing.T) {
	a := []mastodon.Status{{ID: "9"}, {ID: "100"}}
	b := []mastodon.Status{{ID: "100"}, {ID: "10"}}

	assert.Equal(t, []string{"100", "10", "9"}, ids(MergeTimeline(a, b)))
	assert.Empty(t, MergeTimeline())
}
