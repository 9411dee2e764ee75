// ABOUTME: SQLite-backed index of statuses, their tags, refresh times, hashtag subscriptions, and pagination cursors.
// ABOUTME: The index is rebuildable from the status files on disk and serves every timeline and tag query.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/tagfeed/mastodon"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// timeLayout is fixed-width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Hashtag is a row of subscribed_hashtags.
type Hashtag struct {
	Name      string `db:"name"`
	Approved  bool   `db:"approved"`
	Votes     int    `db:"votes"`
	CreatedAt string `db:"created_at"`
}

// TagCount is a tag name with the number of indexed statuses carrying it.
type TagCount struct {
	Name  string `db:"name"`
	Count int    `db:"count"`
}

// Index is the SQLite index.
type Index struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenIndex opens or creates the index database at path and ensures the schema.
func OpenIndex(path string) (*Index, error) {
	db, err := sqlx.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; the status persister fans out across goroutines.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS subscribed_hashtags (
			name TEXT NOT NULL PRIMARY KEY,
			approved INTEGER NOT NULL DEFAULT 0,
			votes INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS recent_statuses (
			tag TEXT NOT NULL PRIMARY KEY,
			status_id TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS statuses (
			id TEXT NOT NULL PRIMARY KEY,
			created_at TEXT NOT NULL,
			account_id TEXT NOT NULL,
			account_acct TEXT NOT NULL,
			replies_count INTEGER NOT NULL DEFAULT 0,
			reblogs_count INTEGER NOT NULL DEFAULT 0,
			favourites_count INTEGER NOT NULL DEFAULT 0,
			engagements_count INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS status_tags (
			status_id TEXT NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (status_id, name)
		);
		CREATE INDEX IF NOT EXISTS status_tags_name_idx ON status_tags (name);

		CREATE TABLE IF NOT EXISTS status_refreshes (
			id TEXT NOT NULL PRIMARY KEY,
			refreshed_at TEXT NOT NULL
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Index{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// IncrementVote records a suggestion for name: a new unapproved row with one
// vote, or one more vote on an existing row. Returns the resulting row.
func (idx *Index) IncrementVote(name string) (Hashtag, error) {
	tx, err := idx.db.Beginx()
	if err != nil {
		return Hashtag{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO subscribed_hashtags (name, votes, created_at) VALUES (?, 1, ?)
		 ON CONFLICT(name) DO UPDATE SET votes = votes + 1`,
		name, formatTime(idx.now()),
	)
	if err != nil {
		return Hashtag{}, fmt.Errorf("increment vote: %w", err)
	}

	var h Hashtag
	if err := tx.Get(&h, "SELECT name, approved, votes, created_at FROM subscribed_hashtags WHERE name = ?", name); err != nil {
		return Hashtag{}, fmt.Errorf("read hashtag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Hashtag{}, fmt.Errorf("commit: %w", err)
	}
	return h, nil
}

// ErrUnknownHashtag is returned when approving a hashtag nobody suggested.
var ErrUnknownHashtag = errors.New("unknown hashtag")

// SetApproved approves or revokes a suggested hashtag.
func (idx *Index) SetApproved(name string, approved bool) error {
	res, err := idx.db.Exec("UPDATE subscribed_hashtags SET approved = ? WHERE name = ?", approved, name)
	if err != nil {
		return fmt.Errorf("approve hashtag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownHashtag, name)
	}
	return nil
}

// ListHashtags returns approved hashtag names sorted by name.
func (idx *Index) ListHashtags() ([]string, error) {
	var names []string
	if err := idx.db.Select(&names, "SELECT name FROM subscribed_hashtags WHERE approved = 1 ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list hashtags: %w", err)
	}
	return names, nil
}

// ListSuggestions returns every hashtag row, most voted first.
func (idx *Index) ListSuggestions() ([]Hashtag, error) {
	var rows []Hashtag
	if err := idx.db.Select(&rows, "SELECT name, approved, votes, created_at FROM subscribed_hashtags ORDER BY votes DESC, name"); err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return rows, nil
}

// RecentStatusID returns the pagination cursor for tag, or "" if none.
func (idx *Index) RecentStatusID(tag string) (string, error) {
	var id string
	err := idx.db.Get(&id, "SELECT status_id FROM recent_statuses WHERE tag = ?", tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("recent status id: %w", err)
	}
	return id, nil
}

// SetRecentStatusID stores the pagination cursor for tag.
func (idx *Index) SetRecentStatusID(tag, statusID string) error {
	_, err := idx.db.Exec(
		`INSERT INTO recent_statuses (tag, status_id) VALUES (?, ?)
		 ON CONFLICT(tag) DO UPDATE SET status_id = excluded.status_id`,
		tag, statusID,
	)
	if err != nil {
		return fmt.Errorf("set recent status id: %w", err)
	}
	return nil
}

// InsertStatuses upserts statuses, their tags, and their refresh time in a
// single transaction.
func (idx *Index) InsertStatuses(statuses []mastodon.Status) error {
	if len(statuses) == 0 {
		return nil
	}

	tx, err := idx.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statusStmt, err := tx.Preparex(
		`INSERT INTO statuses (id, created_at, account_id, account_acct, replies_count, reblogs_count, favourites_count, engagements_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			replies_count = excluded.replies_count,
			reblogs_count = excluded.reblogs_count,
			favourites_count = excluded.favourites_count,
			engagements_count = excluded.engagements_count`)
	if err != nil {
		return fmt.Errorf("prepare status insert: %w", err)
	}
	defer func() { _ = statusStmt.Close() }()

	tagStmt, err := tx.Preparex("INSERT OR IGNORE INTO status_tags (status_id, name) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare tag insert: %w", err)
	}
	defer func() { _ = tagStmt.Close() }()

	refreshStmt, err := tx.Preparex("INSERT OR REPLACE INTO status_refreshes (id, refreshed_at) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("prepare refresh insert: %w", err)
	}
	defer func() { _ = refreshStmt.Close() }()

	now := formatTime(idx.now())
	for i := range statuses {
		s := &statuses[i]
		if _, err := statusStmt.Exec(
			s.ID, formatTime(s.CreatedAt), s.Account.ID, s.Account.Acct,
			s.RepliesCount, s.ReblogsCount, s.FavouritesCount, s.Engagements(),
		); err != nil {
			return fmt.Errorf("insert status %s: %w", s.ID, err)
		}
		for _, tag := range s.Tags {
			if _, err := tagStmt.Exec(s.ID, strings.ToLower(tag.Name)); err != nil {
				return fmt.Errorf("insert tag %s for %s: %w", tag.Name, s.ID, err)
			}
		}
		if _, err := refreshStmt.Exec(s.ID, now); err != nil {
			return fmt.Errorf("insert refresh for %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SearchStatuses returns status IDs carrying any of tags (all statuses when
// tags is empty), newest first.
func (idx *Index) SearchStatuses(tags []string, limit int) ([]string, error) {
	return idx.selectIDs(tags, time.Time{}, "s.created_at DESC", limit)
}

// PopularStatuses returns status IDs created at or after since, carrying any
// of tags, ordered by engagements descending.
func (idx *Index) PopularStatuses(tags []string, since time.Time, limit int) ([]string, error) {
	return idx.selectIDs(tags, since, "s.engagements_count DESC, s.created_at DESC", limit)
}

func (idx *Index) selectIDs(tags []string, since time.Time, order string, limit int) ([]string, error) {
	var where []string
	var args []any
	if len(tags) > 0 {
		lowered := make([]string, len(tags))
		for i, t := range tags {
			lowered[i] = strings.ToLower(t)
		}
		where = append(where, "s.id IN (SELECT status_id FROM status_tags WHERE name IN (?))")
		args = append(args, lowered)
	}
	if !since.IsZero() {
		where = append(where, "s.created_at >= ?")
		args = append(args, formatTime(since))
	}

	query := "SELECT s.id FROM statuses s"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + order + " LIMIT ?"
	args = append(args, limit)

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}

	var ids []string
	if err := idx.db.Select(&ids, idx.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select statuses: %w", err)
	}
	return ids, nil
}

// ListStaleStatuses returns IDs of statuses created in [since, freshSince)
// whose last refresh is missing or older than freshSince, newest first.
func (idx *Index) ListStaleStatuses(since, freshSince time.Time, limit int) ([]string, error) {
	var ids []string
	err := idx.db.Select(&ids,
		`SELECT s.id
		 FROM statuses s
		 LEFT JOIN status_refreshes sr ON s.id = sr.id
		 WHERE s.created_at >= ? AND s.created_at < ? AND (sr.id IS NULL OR sr.refreshed_at < ?)
		 ORDER BY s.created_at DESC
		 LIMIT ?`,
		formatTime(since), formatTime(freshSince), formatTime(freshSince), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale statuses: %w", err)
	}
	return ids, nil
}

// PopularTags returns the most used tags on statuses created within the last
// days days.
func (idx *Index) PopularTags(days, limit int) ([]TagCount, error) {
	since := idx.now().Add(-time.Duration(days) * 24 * time.Hour)
	var counts []TagCount
	err := idx.db.Select(&counts,
		`SELECT st.name AS name, COUNT(*) AS count
		 FROM status_tags st
		 JOIN statuses s ON st.status_id = s.id
		 WHERE s.created_at >= ?
		 GROUP BY st.name
		 ORDER BY count DESC, st.name
		 LIMIT ?`,
		formatTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("popular tags: %w", err)
	}
	return counts, nil
}

// CountStatuses returns the number of indexed statuses.
func (idx *Index) CountStatuses() (int, error) {
	var n int
	if err := idx.db.Get(&n, "SELECT COUNT(*) FROM statuses"); err != nil {
		return 0, fmt.Errorf("count statuses: %w", err)
	}
	return n, nil
}
