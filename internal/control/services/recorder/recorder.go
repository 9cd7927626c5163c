// Package recorder appends browsing-activity records after access checks.
// Recording is fire-and-forget relative to navigation: callers enqueue and
// move on, a single worker goroutine writes to the store, and failures are
// surfaced on the error log rather than back to the user.
package recorder

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rnProCoder/ControlledBrowsing/internal/control/common/log"
	"github.com/rnProCoder/ControlledBrowsing/internal/control/domain"
)

const defaultQueueSize = 256

// ActivityStore is the store surface the recorder needs.
type ActivityStore interface {
	GetAppSettings(ctx context.Context) (domain.AppSettings, error)
	RecordActivity(ctx context.Context, userID int64, host string, status domain.ActivityStatus) (domain.BrowsingActivity, error)
}

// Stats are cumulative counters for recorded, skipped (logging disabled),
// dropped (queue full) and failed (store error) entries.
type Stats struct {
	Recorded uint64
	Skipped  uint64
	Dropped  uint64
	Failed   uint64
}

type entry struct {
	userID int64
	host   string
	status domain.ActivityStatus
}

// Recorder owns the activity queue and worker. Create with New, then Start
// before recording and Stop to drain on shutdown.
type Recorder struct {
	store  ActivityStore
	logger log.Logger
	queue  chan entry

	recorded uint64
	skipped  uint64
	dropped  uint64
	failed   uint64

	mu        sync.RWMutex // guards stopped and the send against close
	stopped   bool
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// Options configures a Recorder. QueueSize <= 0 uses the default.
type Options struct {
	Store     ActivityStore
	Logger    log.Logger
	QueueSize int
}

// New constructs a Recorder.
func New(opts Options) *Recorder {
	l := opts.Logger
	if l == nil {
		l = log.NewNoopLogger()
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Recorder{
		store:  opts.Store,
		logger: l,
		queue:  make(chan entry, size),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine. ctx bounds the store writes.
func (r *Recorder) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.run(ctx)
	})
}

// Record enqueues one decision for logging. It never blocks: when the queue
// is full, or the recorder has already been stopped, the entry is dropped
// and counted. A dropped record is acceptable degradation, never a reason to
// stall navigation.
func (r *Recorder) Record(userID int64, host string, status domain.ActivityStatus) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		atomic.AddUint64(&r.dropped, 1)
		r.logger.Warn(map[string]any{
			"user_id": userID,
			"domain":  host,
		}, "recorder stopped, record dropped")
		return
	}
	select {
	case r.queue <- entry{userID: userID, host: host, status: status}:
	default:
		atomic.AddUint64(&r.dropped, 1)
		r.logger.Warn(map[string]any{
			"user_id": userID,
			"domain":  host,
		}, "activity queue full, record dropped")
	}
}

// Stop closes the queue and waits for the worker to drain it. The write lock
// waits out in-flight Record calls before the close, so a racing Record can
// never hit a closed channel.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
}

// Stats returns a snapshot of the counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: atomic.LoadUint64(&r.recorded),
		Skipped:  atomic.LoadUint64(&r.skipped),
		Dropped:  atomic.LoadUint64(&r.dropped),
		Failed:   atomic.LoadUint64(&r.failed),
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)
	for e := range r.queue {
		r.process(ctx, e)
	}
}

// process gates on the logging setting per entry, so flipping it off takes
// effect for everything still queued.
func (r *Recorder) process(ctx context.Context, e entry) {
	settings, err := r.store.GetAppSettings(ctx)
	if err != nil {
		atomic.AddUint64(&r.failed, 1)
		r.logger.Error(map[string]any{"error": err}, "failed to read settings for activity record")
		return
	}
	if !settings.LoggingEnabled {
		atomic.AddUint64(&r.skipped, 1)
		return
	}

	if _, err := r.store.RecordActivity(ctx, e.userID, e.host, e.status); err != nil {
		atomic.AddUint64(&r.failed, 1)
		r.logger.Error(map[string]any{
			"error":   err,
			"user_id": e.userID,
			"domain":  e.host,
			"status":  e.status,
		}, "failed to record browsing activity")
		return
	}
	atomic.AddUint64(&r.recorded, 1)
}
