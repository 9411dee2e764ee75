// ABOUTME: Rebuilds the SQLite index from the status files on disk.
// ABOUTME: Used at startup when the index is empty so a deleted database never loses cached statuses.
package store

import (
	"log"

	"github.com/2389-research/tagfeed/mastodon"
)

const rebuildBatch = 500

// RebuildIndex re-inserts every status file into idx in batches and returns
// the number of statuses indexed.
func RebuildIndex(files *Files, idx *Index) (int, error) {
	batch := make([]mastodon.Status, 0, rebuildBatch)
	total := 0

	flush := func() error {
		if err := idx.InsertStatuses(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	err := files.Walk(func(s *mastodon.Status) error {
		batch = append(batch, *s)
		if len(batch) == rebuildBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}

	log.Printf("store: index rebuilt statuses=%d", total)
	return total, nil
}
