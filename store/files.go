// ABOUTME: On-disk cache of full status JSON documents sharded by ID prefix.
// ABOUTME: Files live at statuses/<d1>/<d2>/<id>.json so each directory stays small.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389-research/tagfeed/mastodon"
)

// Files stores status documents below root.
type Files struct {
	root string
}

// NewFiles returns a Files rooted at dir/statuses.
func NewFiles(dir string) *Files {
	return &Files{root: filepath.Join(dir, "statuses")}
}

// ShardDirs returns the two shard directory names for a status ID: the ID
// without its last 18 and 14 characters, or "0" when the ID is too short.
func ShardDirs(id string) (string, string) {
	prefix := func(cut int) string {
		if len(id) <= cut {
			return "0"
		}
		return id[:len(id)-cut]
	}
	return prefix(18), prefix(14)
}

// Path returns the file path for a status ID.
func (f *Files) Path(id string) string {
	d1, d2 := ShardDirs(id)
	return filepath.Join(f.root, d1, d2, id+".json")
}

// Write stores a status, replacing any previous copy.
func (f *Files) Write(s *mastodon.Status) error {
	if s.ID == "" || strings.ContainsAny(s.ID, `/\.`) {
		return fmt.Errorf("invalid status id %q", s.ID)
	}
	path := f.Path(s.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", s.ID, err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode status %s: %w", s.ID, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write status %s: %w", s.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename status %s: %w", s.ID, err)
	}
	return nil
}

// Read loads a status by ID.
func (f *Files) Read(id string) (*mastodon.Status, error) {
	data, err := os.ReadFile(f.Path(id))
	if err != nil {
		return nil, fmt.Errorf("read status %s: %w", id, err)
	}
	var s mastodon.Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode status %s: %w", id, err)
	}
	return &s, nil
}

// ReadMany loads statuses in the order of ids. IDs whose file is missing are
// skipped; any other failure aborts.
func (f *Files) ReadMany(ids []string) ([]mastodon.Status, error) {
	out := make([]mastodon.Status, 0, len(ids))
	for _, id := range ids {
		s, err := f.Read(id)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// Walk calls fn for every stored status. A missing root is treated as empty.
func (f *Files) Walk(fn func(*mastodon.Status) error) error {
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		s, err := f.Read(id)
		if err != nil {
			return err
		}
		return fn(s)
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
