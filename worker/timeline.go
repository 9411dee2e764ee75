// ABOUTME: TimelineUpdater periodically pulls new statuses for every approved hashtag.
// ABOUTME: Each cycle lists hashtags, paginates them through the status service, and persists the merge.
package worker

import (
	"context"
	"log"
	"time"

	"github.com/2389-research/tagfeed/logging"
)

// HashtagLister lists the approved hashtags.
type HashtagLister interface {
	List() ([]string, error)
}

// HashtagUpdater fetches and persists new statuses for hashtags.
type HashtagUpdater interface {
	UpdateHashtags(ctx context.Context, hashtags []string) (int, error)
}

// TimelineUpdater runs an update cycle at a fixed frequency.
type TimelineUpdater struct {
	hashtags  HashtagLister
	updater   HashtagUpdater
	frequency time.Duration
}

// NewTimelineUpdater returns a TimelineUpdater that runs every frequency.
func NewTimelineUpdater(hashtags HashtagLister, updater HashtagUpdater, frequency time.Duration) *TimelineUpdater {
	return &TimelineUpdater{hashtags: hashtags, updater: updater, frequency: frequency}
}

// Name implements Worker.
func (u *TimelineUpdater) Name() string { return "timeline-updater" }

// Run updates immediately, then every frequency until ctx is done.
func (u *TimelineUpdater) Run(ctx context.Context) {
	log.Printf("worker: starting timeline updater frequency=%s", u.frequency)
	every(ctx, u.frequency, func(ctx context.Context) {
		if _, err := u.Update(ctx); err != nil && ctx.Err() == nil {
			logging.Errorf("worker: timeline update failed err=%v", err)
		}
	})
}

// Update runs one cycle and returns the number of statuses persisted.
func (u *TimelineUpdater) Update(ctx context.Context) (int, error) {
	cycle := newCycleID()
	start := time.Now()

	hashtags, err := u.hashtags.List()
	if err != nil {
		return 0, err
	}
	if len(hashtags) == 0 {
		logging.Debugf("worker: no approved hashtags cycle=%s", cycle)
		return 0, nil
	}

	n, err := u.updater.UpdateHashtags(ctx, hashtags)
	if err != nil {
		return 0, err
	}
	log.Printf("worker: timeline updated cycle=%s hashtags=%d statuses=%d duration=%s",
		cycle, len(hashtags), n, time.Since(start).Round(time.Millisecond))
	return n, nil
}
