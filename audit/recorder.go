package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Recorder is the single write-side of the trail. Every entry, synchronous or
// not, goes through one consumer goroutine so entries from the same actor are
// stored in submission order.
type Recorder struct {
	store  *Store
	logger *zap.Logger

	jobs chan job
	done chan struct{}
	wg   sync.WaitGroup

	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once

	// now is swappable in tests.
	now func() time.Time
}

type job struct {
	entry Entry
	ack   chan error // nil for async submissions
}

var errRecorderClosed = errors.New("audit: recorder closed")

func NewRecorder(store *Store, logger *zap.Logger, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		store:  store,
		logger: logger,
		jobs:   make(chan job, bufferSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	r.wg.Add(1)
	go r.run()

	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case j := <-r.jobs:
			r.write(j)
		case <-r.done:
			for {
				select {
				case j := <-r.jobs:
					r.write(j)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(j job) {
	err := r.store.Append(context.Background(), j.entry)
	if err != nil {
		r.logger.Error("audit append failed",
			zap.String("action", string(j.entry.Action)),
			zap.String("actorId", j.entry.ActorID),
			zap.Error(err))
	}
	if j.ack != nil {
		j.ack <- err
	}
}

// Record submits a security-critical entry and waits until it has been
// written behind the single consumer. Callers must not send a response
// before Record returns.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	if r == nil || r.closed.Load() {
		return errRecorderClosed
	}
	if err := e.Validate(); err != nil {
		return err
	}
	e.stamp(r.now())

	j := job{entry: e, ack: make(chan error, 1)}
	select {
	case r.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return errRecorderClosed
	}

	select {
	case err := <-j.ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		// The drain may already have written the entry; prefer its ack
		// when it is in.
		select {
		case err := <-j.ack:
			return err
		default:
			return errRecorderClosed
		}
	}
}

// RecordAsync submits a content-mutation entry without blocking. When the
// buffer is full the entry is dropped and counted rather than stalling the
// caller.
func (r *Recorder) RecordAsync(e Entry) {
	if r == nil || r.closed.Load() {
		return
	}
	if err := e.Validate(); err != nil {
		r.logger.Warn("audit entry rejected", zap.Error(err))
		return
	}
	e.stamp(r.now())

	select {
	case r.jobs <- job{entry: e}:
	case <-r.done:
	default:
		r.dropped.Add(1)
	}
}

// Dropped reports how many async entries were discarded under backpressure.
func (r *Recorder) Dropped() uint64 {
	if r == nil {
		return 0
	}
	return r.dropped.Load()
}

// Close drains buffered entries and stops the consumer. Safe to call more
// than once.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}
