package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mediglot/internal/audit/metrics"
	"mediglot/internal/redact"
)

// ErrStopped is returned by Flush once Stop has completed.
var ErrStopped = errors.New("audit log stopped")

// Sink durably persists ordered batches of audit events. Delivery must be
// atomic from the log's point of view: a non-nil error means the batch was
// not persisted and will be offered again.
type Sink interface {
	Deliver(ctx context.Context, batch []Event) error
}

// Tuning defaults. The threshold and interval follow the compliance policy
// for this service; override via options only in tests.
const (
	DefaultFlushThreshold = 100
	DefaultFlushInterval  = 5 * time.Minute
	DefaultMaxRetryCycles = 5
	DefaultDeliverTimeout = 30 * time.Second
)

// Log owns the in-process audit queue. It is the only long-lived shared
// mutable structure in the request path, so all queue mutation happens under
// one mutex and sink I/O never runs on a caller's goroutine.
//
// Lifecycle: construct with New, call Start once, Record from any goroutine,
// and Stop on shutdown. Stop flushes everything still queued or retained.
type Log struct {
	sink    Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	threshold      int
	interval       time.Duration
	maxRetryCycles int
	deliverTimeout time.Duration
	now            func() time.Time

	mu    sync.Mutex
	queue []Event

	flushCh chan flushRequest
	done    chan struct{}
	tickWG  sync.WaitGroup
	workWG  sync.WaitGroup

	// sendMu orders sends on flushCh against its close in Stop: senders
	// hold the read side and check closed first, Stop closes under the
	// write side. A Record racing Stop requeues instead of panicking.
	sendMu sync.RWMutex
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	// Owned by the delivery goroutine; retained is a failed batch waiting to
	// be merged ahead of the next one. retainedLen mirrors len(retained) for
	// the ticker, which must not touch delivery state directly.
	retained     []Event
	failedCycles int
	retainedLen  atomic.Int64
}

// Option configures the Log.
type Option func(*Log)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Log) { l.metrics = m }
}

// WithFlushThreshold overrides the queue length that triggers a flush.
func WithFlushThreshold(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.threshold = n
		}
	}
}

// WithFlushInterval overrides the periodic flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(l *Log) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithMaxRetryCycles overrides how many consecutive delivery failures are
// tolerated before a batch is discarded with a critical diagnostic.
func WithMaxRetryCycles(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.maxRetryCycles = n
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs an audit log bound to a durable sink. The log is inert
// until Start is called.
func New(sink Sink, opts ...Option) *Log {
	l := &Log{
		sink:           sink,
		logger:         slog.Default(),
		threshold:      DefaultFlushThreshold,
		interval:       DefaultFlushInterval,
		maxRetryCycles: DefaultMaxRetryCycles,
		deliverTimeout: DefaultDeliverTimeout,
		now:            time.Now,
		flushCh:        make(chan flushRequest, 16),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type flushRequest struct {
	batch []Event
	done  chan struct{} // non-nil for synchronous Flush callers
}

// Start launches the periodic flush ticker and the delivery goroutine.
func (l *Log) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		l.started.Store(true)
		l.workWG.Add(1)
		go l.deliverLoop()

		l.tickWG.Add(1)
		go l.tickLoop(ctx)
	})
}

// Stop cancels the ticker, flushes remaining events, and waits for the
// delivery goroutine to drain. Safe to call more than once; a Stop before
// Start is a no-op and does not prevent a later Start/Stop pair.
func (l *Log) Stop(ctx context.Context) {
	if !l.started.Load() {
		return
	}
	l.stopOnce.Do(func() {
		close(l.done)
		l.tickWG.Wait()

		if err := l.Flush(ctx); err != nil {
			l.logger.Warn("final audit flush incomplete", "error", err)
		}

		l.sendMu.Lock()
		l.closed = true
		close(l.flushCh)
		l.sendMu.Unlock()
		l.workWG.Wait()
	})
}

// Record assigns the event timestamp, scrubs Details, and appends the event
// to the queue. When the append reaches the flush threshold, the queue is
// snapshotted and cleared before Record returns; the actual sink delivery
// happens on the delivery goroutine, so Record never blocks on network I/O.
//
// Record never fails visibly: an audit problem must not break the
// user-facing request, so internal trouble is logged locally instead.
func (l *Log) Record(ctx context.Context, e Event) {
	e.Timestamp = l.now()
	e.Details = redact.Scrub(e.Details)

	var batch []Event
	l.mu.Lock()
	l.queue = append(l.queue, e)
	depth := len(l.queue)
	if depth >= l.threshold {
		batch = l.queue
		l.queue = make([]Event, 0, l.threshold)
		depth = 0
	}
	l.mu.Unlock()

	l.metrics.IncEventsRecorded()
	l.metrics.SetQueueDepth(depth)

	if batch != nil {
		l.submit(ctx, flushRequest{batch: batch})
	}
}

// Len reports the current queue depth.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush snapshots the queue and delivers it synchronously, merged with any
// batch retained from an earlier failure. Used on shutdown and in tests;
// the request path never calls it. Returns ErrStopped after Stop has
// completed.
func (l *Log) Flush(ctx context.Context) error {
	req := flushRequest{batch: l.takeSnapshot(), done: make(chan struct{})}

	l.sendMu.RLock()
	if l.closed {
		l.sendMu.RUnlock()
		l.putBack(req.batch)
		return ErrStopped
	}
	select {
	case l.flushCh <- req:
		l.sendMu.RUnlock()
	case <-ctx.Done():
		l.sendMu.RUnlock()
		l.putBack(req.batch)
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Log) takeSnapshot() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	batch := l.queue
	l.queue = make([]Event, 0, l.threshold)
	return batch
}

// submit hands a batch to the delivery goroutine without blocking the
// request path. If delivery is backed up, or the log has already stopped,
// the events go back to the head of the queue so the next trigger retries
// them; nothing is dropped here and Record never fails visibly.
func (l *Log) submit(ctx context.Context, req flushRequest) {
	l.sendMu.RLock()
	if l.closed {
		l.sendMu.RUnlock()
		l.putBack(req.batch)
		l.logger.WarnContext(ctx, "audit log stopped, batch requeued",
			"events", len(req.batch),
		)
		return
	}
	select {
	case l.flushCh <- req:
		l.sendMu.RUnlock()
	default:
		l.sendMu.RUnlock()
		l.putBack(req.batch)
		l.logger.WarnContext(ctx, "audit delivery backed up, batch requeued",
			"events", len(req.batch),
		)
	}
}

// putBack returns an undelivered snapshot to the head of the queue,
// preserving order relative to events recorded since.
func (l *Log) putBack(batch []Event) {
	if len(batch) == 0 {
		return
	}
	l.mu.Lock()
	l.queue = append(batch, l.queue...)
	depth := len(l.queue)
	l.mu.Unlock()
	l.metrics.SetQueueDepth(depth)
}

func (l *Log) tickLoop(ctx context.Context) {
	defer l.tickWG.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := l.takeSnapshot()
			if batch == nil && l.retainedLen.Load() == 0 {
				continue
			}
			l.submit(ctx, flushRequest{batch: batch})
		}
	}
}

func (l *Log) deliverLoop() {
	defer l.workWG.Done()
	for req := range l.flushCh {
		l.deliver(req.batch)
		if req.done != nil {
			close(req.done)
		}
	}
	// Channel closed during Stop; make a last attempt for anything retained.
	if len(l.retained) > 0 {
		l.deliver(nil)
	}
	if n := len(l.retained); n > 0 {
		l.metrics.AddEventsDropped(n)
		l.logger.Error("audit events lost at shutdown, sink unavailable",
			"events", n,
			"log_type", "audit",
		)
	}
}

// deliver merges any retained batch ahead of the new one and attempts a
// single sink delivery. Failed batches are retained for the next cycle; the
// union is delivered exactly once on success, so no event is lost or
// duplicated. After maxRetryCycles consecutive failures the batch is
// discarded loudly to bound memory.
func (l *Log) deliver(batch []Event) {
	if len(l.retained) > 0 {
		batch = append(l.retained, batch...)
		l.retained = nil
		l.retainedLen.Store(0)
	}
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.deliverTimeout)
	defer cancel()

	start := time.Now()
	err := l.sink.Deliver(ctx, batch)
	l.metrics.ObserveFlushDuration(time.Since(start).Seconds())

	if err == nil {
		l.failedCycles = 0
		l.metrics.IncFlushSuccesses()
		l.metrics.AddEventsDelivered(len(batch))
		return
	}

	l.failedCycles++
	l.metrics.IncFlushFailures()

	if l.failedCycles >= l.maxRetryCycles {
		// Process-level alert: the sink has been down for the whole retry
		// budget. Discard so the queue cannot grow without bound.
		l.metrics.AddEventsDropped(len(batch))
		l.logger.Error("audit sink unreachable, discarding batch after retry budget",
			"events", len(batch),
			"failed_cycles", l.failedCycles,
			"error", err,
			"log_type", "audit",
		)
		l.failedCycles = 0
		return
	}

	l.retained = batch
	l.retainedLen.Store(int64(len(batch)))
	l.logger.Warn("audit delivery failed, batch retained for retry",
		"events", len(batch),
		"failed_cycles", l.failedCycles,
		"error", err,
	)
}
