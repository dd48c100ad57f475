package watch

import (
	"context"
	"sync"
	"time"
)

// Debouncer coalesces the raw event stream into batches, flushing when the
// batch reaches the configured size or the debounce interval elapses,
// whichever comes first. Batching keeps lock contention on the index low
// under event storms.
type Debouncer struct {
	delay     time.Duration
	maxDelay  time.Duration
	batchSize int
	batchChan chan []Event
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	pending []Event
	timer   *time.Timer
	oldest  time.Time
	closed  bool
	sending sync.WaitGroup
}

// NewDebouncer creates a new debouncer
func NewDebouncer(cfg Config) *Debouncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Debouncer{
		delay:     cfg.DebounceDelay,
		maxDelay:  cfg.MaxDebounceDelay,
		batchSize: cfg.BatchSize,
		batchChan: make(chan []Event, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Add adds an event to the pending batch. Events arriving after Close are
// dropped.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	if len(d.pending) == 0 {
		d.oldest = time.Now()
	}
	d.pending = append(d.pending, event)

	if len(d.pending) >= d.batchSize || time.Since(d.oldest) >= d.maxDelay {
		batch := d.takeLocked()
		d.sending.Add(1)
		d.mu.Unlock()
		d.send(batch)
		d.sending.Done()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
	d.mu.Unlock()
}

// Batches returns the debounced batch channel.
func (d *Debouncer) Batches() <-chan []Event {
	return d.batchChan
}

// Flush hands off whatever is pending without waiting for the timer.
func (d *Debouncer) Flush() {
	d.flush()
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	batch := d.takeLocked()
	d.sending.Add(1)
	d.mu.Unlock()
	d.send(batch)
	d.sending.Done()
}

// takeLocked detaches the pending batch; caller holds d.mu.
func (d *Debouncer) takeLocked() []Event {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	batch := d.pending
	d.pending = nil
	return batch
}

func (d *Debouncer) send(batch []Event) {
	if len(batch) == 0 {
		return
	}
	select {
	case d.batchChan <- batch:
	case <-d.ctx.Done():
	}
}

// Close flushes any pending events and stops the debouncer. The batch
// channel is closed only after every in-flight send has finished, so a
// timer-fired flush racing Close can never send on a closed channel. Close
// is idempotent.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	batch := d.takeLocked()
	d.mu.Unlock()

	d.send(batch)
	d.cancel()
	d.sending.Wait()
	close(d.batchChan)
}
