// ABOUTME: Tracker runs registered background workers under one cancellable context.
// ABOUTME: Start launches every worker, Stop cancels them, Wait blocks until all have returned.
package worker

import (
	"context"
	"crypto/rand"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Worker is a long-running background task. Run returns once ctx is done.
type Worker interface {
	Name() string
	Run(ctx context.Context)
}

// Tracker owns a set of workers and their shared cancellation.
type Tracker struct {
	mu      sync.Mutex
	workers []Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Register adds a worker. Workers registered after Start are not run.
func (t *Tracker) Register(w Worker) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers = append(t.workers, w)
}

// Start launches every registered worker in its own goroutine. Calling Start
// twice is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	ctx, t.cancel = context.WithCancel(ctx)
	log.Printf("worker: starting workers=%d", len(t.workers))
	for _, w := range t.workers {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			w.Run(ctx)
			log.Printf("worker: stopped name=%s", w.Name())
		}()
	}
}

// Stop cancels every running worker.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until every worker has returned or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newCycleID tags one worker cycle in log lines.
func newCycleID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}

// every calls fn immediately and then every interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	fn(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
