// ABOUTME: Tests for the sharded status file cache and index rebuilding from it.
// ABOUTME: Verifies shard paths, round trips, missing files, and RebuildIndex counts.
package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/tagfeed/mastodon"
)

func TestShardDirs(t *testing.T) {
	cases := []struct {
		id     string
		d1, d2 string
	}{
		{"12345", "0", "0"},
		{"113456789012345678", "0", "1134"},
		{"1134567890123456789", "1", "11345"},
		{"113456789012345", "0", "1"},
	}
	for _, tc := range cases {
		d1, d2 := ShardDirs(tc.id)
		if d1 != tc.d1 || d2 != tc.d2 {
			t.Errorf("ShardDirs(%s) = %s/%s, want %s/%s", tc.id, d1, d2, tc.d1, tc.d2)
		}
	}
}

func TestFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(dir)

	s := makeStatus("1134567890123456789", time.Hour, 3, "minis")
	s.Content = "<p>painted</p>"
	if err := files.Write(&s); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := filepath.Join(dir, "statuses", "1", "11345", "1134567890123456789.json")
	if got := files.Path(s.ID); got != want {
		t.Errorf("Path = %s, want %s", got, want)
	}

	got, err := files.Read(s.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Content != s.Content || !got.CreatedAt.Equal(s.CreatedAt) {
		t.Errorf("Read = %+v, want %+v", got, s)
	}
}

func TestFilesRejectsBadID(t *testing.T) {
	files := NewFiles(t.TempDir())
	for _, id := range []string{"", "../etc", "a/b"} {
		s := mastodon.Status{ID: id}
		if err := files.Write(&s); err == nil {
			t.Errorf("Write(%q) succeeded, want error", id)
		}
	}
}

func TestReadManySkipsMissing(t *testing.T) {
	files := NewFiles(t.TempDir())
	a := makeStatus("10", time.Hour, 0)
	b := makeStatus("20", time.Hour, 0)
	for _, s := range []*mastodon.Status{&a, &b} {
		if err := files.Write(s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got, err := files.ReadMany([]string{"20", "missing", "10"})
	if err != nil {
		t.Fatalf("ReadMany: %v", err)
	}
	if len(got) != 2 || got[0].ID != "20" || got[1].ID != "10" {
		t.Errorf("ReadMany = %v, want [20 10]", got)
	}
}

func TestWalkEmptyRoot(t *testing.T) {
	files := NewFiles(t.TempDir())
	calls := 0
	if err := files.Walk(func(*mastodon.Status) error { calls++; return nil }); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if calls != 0 {
		t.Errorf("Walk visited %d statuses in empty root", calls)
	}
}

func TestRebuildIndex(t *testing.T) {
	dir := t.TempDir()
	files := NewFiles(dir)
	for _, id := range []string{"1", "22", "333"} {
		s := makeStatus(id, time.Hour, 0, "minis")
		if err := files.Write(&s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	idx := openTestIndex(t)
	n, err := RebuildIndex(files, idx)
	if err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if n != 3 {
		t.Errorf("RebuildIndex = %d, want 3", n)
	}
	count, _ := idx.CountStatuses()
	if count != 3 {
		t.Errorf("CountStatuses = %d, want 3", count)
	}
}
