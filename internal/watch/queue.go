// Package watch implements the change-queue contract an external file
// watcher feeds: debounced, disjoint change/delete sets flushed into the
// indexer with partial-update semantics, plus a default fsnotify-backed
// adapter.
//
// An fsnotify.Watcher feeds a single project-wide debounce timer (rather
// than one timer per path) with flush-latch/drain discipline so a flush in
// progress never races a concurrent drain.
package watch

import (
	"context"
	"sync"
	"time"
)

// DefaultDebounce and MinDebounce bound the quiescence window before a
// batch of pending changes is flushed.
const (
	DefaultDebounce = 500 * time.Millisecond
	MinDebounce     = 50 * time.Millisecond
	maxDrainSettle  = 200 * time.Millisecond
)

// FlushFunc applies one batch of changed and deleted paths, the indexer's
// partial-update entry point.
type FlushFunc func(ctx context.Context, changed, deleted []string) error

// ChangeQueue coalesces rapid file-system events into debounced,
// disjoint change/delete batches and serializes their delivery to a
// FlushFunc.
type ChangeQueue struct {
	debounce time.Duration
	flushFn  FlushFunc

	mu       sync.Mutex
	changes  map[string]bool
	deletes  map[string]bool
	timer    *time.Timer
	flushing bool
	flushDone chan struct{}
}

// New builds a ChangeQueue with the given debounce (clamped to at least
// MinDebounce; DefaultDebounce if zero) and flush callback.
func New(debounce time.Duration, flushFn FlushFunc) *ChangeQueue {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if debounce < MinDebounce {
		debounce = MinDebounce
	}
	return &ChangeQueue{
		debounce: debounce,
		flushFn:  flushFn,
		changes:  make(map[string]bool),
		deletes:  make(map[string]bool),
	}
}

// OnChange records path as changed, superseding any pending delete for
// the same path, and (re)arms the debounce timer.
func (q *ChangeQueue) OnChange(path string) {
	q.mu.Lock()
	delete(q.deletes, path)
	q.changes[path] = true
	q.armLocked()
	q.mu.Unlock()
}

// OnDelete records path as deleted, superseding any pending change for
// the same path, and (re)arms the debounce timer.
func (q *ChangeQueue) OnDelete(path string) {
	q.mu.Lock()
	delete(q.changes, path)
	q.deletes[path] = true
	q.armLocked()
	q.mu.Unlock()
}

// armLocked (re)starts the single quiescence timer. Callers must hold mu.
func (q *ChangeQueue) armLocked() {
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, func() {
		_ = q.Flush(context.Background())
	})
}

// pendingLocked reports whether any change or delete is queued. Callers
// must hold mu.
func (q *ChangeQueue) pendingLocked() bool {
	return len(q.changes) > 0 || len(q.deletes) > 0
}

// Flush delivers any pending batch to FlushFunc. Concurrent callers while
// a flush is already running await that flush's completion rather than
// running a second one; if new events arrived after the running flush
// started, the debounce timer it left armed will trigger its own flush.
func (q *ChangeQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.flushing {
		done := q.flushDone
		q.mu.Unlock()
		<-done
		return nil
	}
	if !q.pendingLocked() {
		q.mu.Unlock()
		return nil
	}

	changed := make([]string, 0, len(q.changes))
	for p := range q.changes {
		changed = append(changed, p)
	}
	deleted := make([]string, 0, len(q.deletes))
	for p := range q.deletes {
		deleted = append(deleted, p)
	}
	q.changes = make(map[string]bool)
	q.deletes = make(map[string]bool)

	q.flushing = true
	done := make(chan struct{})
	q.flushDone = done
	q.mu.Unlock()

	err := q.flushFn(ctx, changed, deleted)

	q.mu.Lock()
	q.flushing = false
	q.flushDone = nil
	close(done)
	q.mu.Unlock()

	return err
}

// Drain forces any pending work through to completion: it flushes
// immediately (or waits for an in-flight flush), waits up to
// min(debounce, 200ms) for events that arrive during that flush to
// settle, then flushes again if anything new showed up. Call this at
// shutdown before the process exits.
func (q *ChangeQueue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.mu.Unlock()

	if err := q.Flush(ctx); err != nil {
		return err
	}

	settle := q.debounce
	if settle > maxDrainSettle {
		settle = maxDrainSettle
	}
	time.Sleep(settle)

	q.mu.Lock()
	stillPending := q.pendingLocked()
	q.mu.Unlock()
	if !stillPending {
		return nil
	}
	return q.Flush(ctx)
}

// Pending reports the current number of queued changes and deletes, for
// diagnostics and tests.
func (q *ChangeQueue) Pending() (changes, deletes int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.changes), len(q.deletes)
}
