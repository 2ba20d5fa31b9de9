package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink delivers a single event to wherever progress is persisted.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Reporter sends progress events best-effort. Report never blocks: each
// event is handed to its own goroutine, which waits for a delivery slot and
// sends once. Deliveries run on a context detached from the caller, so a
// view closing does not cancel them. Failures are logged and counted, never
// retried.
type Reporter struct {
	sink  Sink
	log   *slog.Logger
	sem   chan struct{}
	stats *Stats

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewReporter creates a reporter allowing at most concurrency deliveries in
// flight at once.
func NewReporter(sink Sink, log *slog.Logger, concurrency int) *Reporter {
	if concurrency <= 0 {
		concurrency = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		sink:  sink,
		log:   log,
		sem:   make(chan struct{}, concurrency),
		stats: NewStats(time.Hour),
	}
}

// Report dispatches ev and returns immediately. It returns false when the
// reporter is closed and the event was dropped.
func (r *Reporter) Report(ev Event) bool {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReportedAt.IsZero() {
		ev.ReportedAt = time.Now().UTC()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.stats.RecordDropped()
		r.log.Warn("progress reporter closed, dropping event",
			"event_id", ev.ID, "user_id", ev.UserID, "lesson_id", ev.LessonID)
		return false
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.deliver(ev)
	return true
}

func (r *Reporter) deliver(ev Event) {
	defer r.wg.Done()

	r.sem <- struct{}{}
	defer func() { <-r.sem }()

	log := r.log.With("event_id", ev.ID, "user_id", ev.UserID, "lesson_id", ev.LessonID)
	start := time.Now()
	err := r.sink.Deliver(context.Background(), ev)
	r.stats.Record(time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		log.Warn("progress delivery failed", "furthest_page_index", ev.FurthestPageIndex, "error", err)
		return
	}
	log.Debug("progress delivered", "furthest_page_index", ev.FurthestPageIndex)
}

// Close stops accepting events and waits for in-flight deliveries until
// ctx is done.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns delivery statistics.
func (r *Reporter) Stats() *Stats { return r.stats }
