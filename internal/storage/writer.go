package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/questgraph/internal/metrics"
)

// ErrWriterClosed is returned by Save once the writer has stopped.
var ErrWriterClosed = errors.New("snapshot writer closed")

// SaveJob is one encoded snapshot waiting to be written.
type SaveJob struct {
	World string
	Data  []byte
	// Done, if set, is called with the save result on the writer goroutine.
	Done func(error)
}

// Writer saves snapshots on a single background goroutine with a bounded
// queue. One goroutine keeps saves for a world in submission order.
type Writer struct {
	store   Store
	timeout time.Duration
	queue   chan SaveJob
	wg      sync.WaitGroup
	stopped chan struct{} // closed when the worker exits

	mu     sync.RWMutex
	closed bool
}

// NewWriter starts the writer. Each save gets its own timeout derived from ctx.
func NewWriter(ctx context.Context, store Store, depth int, timeout time.Duration) *Writer {
	if depth <= 0 {
		depth = 1
	}
	w := &Writer{
		store:   store,
		timeout: timeout,
		queue:   make(chan SaveJob, depth),
		stopped: make(chan struct{}),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(w.stopped)
		w.run(ctx)
	}()
	return w
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case j, ok := <-w.queue:
			if !ok {
				return
			}
			w.save(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Writer) save(ctx context.Context, j SaveJob) {
	// Detach from cancellation so a queued save still completes during Drain.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	start := time.Now()
	err := w.store.Save(sctx, j.World, j.Data)
	metrics.SnapshotSaveDuration.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		slog.Warn("snapshot save failed", "world", j.World, "err", err)
	} else {
		metrics.SnapshotSaves.WithLabelValues("ok").Inc()
	}
	if j.Done != nil {
		j.Done(err)
	}
}

// Submit enqueues a save without blocking. It returns false if the queue is
// full or the writer has been drained.
func (w *Writer) Submit(j SaveJob) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- j:
		return true
	default:
		metrics.SnapshotSavesDropped.Inc()
		return false
	}
}

// Save enqueues j, waiting for queue room, and returns once the store has
// written it. Jobs already queued are written first.
func (w *Writer) Save(ctx context.Context, j SaveJob) error {
	result := make(chan error, 1)
	done := j.Done
	j.Done = func(err error) {
		if done != nil {
			done(err)
		}
		result <- err
	}

	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrWriterClosed
	}
	select {
	case w.queue <- j:
	case <-w.stopped:
		w.mu.RUnlock()
		return ErrWriterClosed
	case <-ctx.Done():
		w.mu.RUnlock()
		return ctx.Err()
	}
	w.mu.RUnlock()

	select {
	case err := <-result:
		return err
	case <-w.stopped:
		select {
		case err := <-result:
			return err
		default:
			return ErrWriterClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops accepting jobs, writes everything queued, and waits.
func (w *Writer) Drain() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

// QueueLen returns how many saves are waiting.
func (w *Writer) QueueLen() int {
	return len(w.queue)
}

// QueueCap returns the queue capacity.
func (w *Writer) QueueCap() int {
	return cap(w.queue)
}
