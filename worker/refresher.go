// ABOUTME: StatusRefresher refetches recently created statuses so engagement counts stay current.
// ABOUTME: Younger statuses are refreshed more often according to the configured refresh rules.
package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/2389-research/tagfeed/config"
	"github.com/2389-research/tagfeed/logging"
	"github.com/2389-research/tagfeed/mastodon"
	"github.com/oklog/ulid/v2"
)

const (
	refreshChunkSize = 10
	staleBatchLimit  = 1000
)

// StatusSource is the subset of the status service the refresher uses.
type StatusSource interface {
	ListStaleStatuses(since, freshSince time.Time, limit int) ([]string, error)
	FetchStatuses(ctx context.Context, ids []string) ([]mastodon.Status, error)
	PersistStatuses(ctx context.Context, statuses []mastodon.Status) error
}

// StatusRefresher applies refresh rules in order of increasing max age.
type StatusRefresher struct {
	statuses StatusSource
	rules    []config.RefreshRule
	now      func() time.Time

	// Pause is the delay between chunks of refetched statuses.
	Pause time.Duration
}

// NewStatusRefresher returns a refresher for rules. The rules are sorted by
// max age.
func NewStatusRefresher(statuses StatusSource, settings config.Settings) *StatusRefresher {
	return &StatusRefresher{
		statuses: statuses,
		rules:    settings.SortedRefreshRules(),
		now:      time.Now,
		Pause:    5 * time.Second,
	}
}

// Name implements Worker.
func (r *StatusRefresher) Name() string { return "status-refresher" }

// Interval is the smallest rule frequency, or zero when there are no rules.
func (r *StatusRefresher) Interval() time.Duration {
	var interval time.Duration
	for i, rule := range r.rules {
		if f := rule.Frequency.Std(); i == 0 || f < interval {
			interval = f
		}
	}
	return interval
}

// Run refreshes immediately, then every Interval until ctx is done. Without
// rules it returns at once.
func (r *StatusRefresher) Run(ctx context.Context) {
	interval := r.Interval()
	if interval <= 0 {
		logging.Warnf("worker: no status refresh rules, status refresher not started")
		return
	}

	log.Printf("worker: starting status refresher interval=%s rules=%d", interval, len(r.rules))
	every(ctx, interval, func(ctx context.Context) {
		if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			logging.Errorf("worker: status refresh failed err=%v", err)
		}
	})
}

// Refresh runs one cycle over every rule and returns the number of statuses
// refreshed.
func (r *StatusRefresher) Refresh(ctx context.Context) (int, error) {
	cycle := newCycleID()
	total := 0
	for _, rule := range r.rules {
		now := r.now()
		since := now.Add(-rule.MaxAge.Std())
		freshSince := now.Add(-rule.Frequency.Std())

		ids, err := r.statuses.ListStaleStatuses(since, freshSince, staleBatchLimit)
		if err != nil {
			return total, err
		}
		log.Printf("worker: refreshing cycle=%s max_age=%s frequency=%s stale=%d",
			cycle, rule.MaxAge, rule.Frequency, len(ids))

		n, err := r.refreshIDs(ctx, cycle, ids)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *StatusRefresher) refreshIDs(ctx context.Context, cycle ulid.ULID, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	chunks := (len(ids) + refreshChunkSize - 1) / refreshChunkSize
	var refreshed []mastodon.Status
	for i := 0; i < chunks; i++ {
		if i > 0 && !sleep(ctx, r.Pause) {
			return 0, ctx.Err()
		}
		chunk := ids[i*refreshChunkSize : min((i+1)*refreshChunkSize, len(ids))]
		logging.Debugf("worker: refreshing chunk cycle=%s chunk=%d/%d", cycle, i+1, chunks)

		statuses, err := r.statuses.FetchStatuses(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("refetch statuses: %w", err)
		}
		refreshed = append(refreshed, statuses...)
	}

	if err := r.statuses.PersistStatuses(ctx, refreshed); err != nil {
		return 0, err
	}
	log.Printf("worker: refreshed cycle=%s statuses=%d", cycle, len(refreshed))
	return len(refreshed), nil
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
