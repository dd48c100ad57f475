package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		DebounceDelay:    20 * time.Millisecond,
		MaxDebounceDelay: 200 * time.Millisecond,
		BatchSize:        3,
		QueueCapacity:    64,
	}
}

func receiveBatch(t *testing.T, d *Debouncer) []Event {
	t.Helper()
	select {
	case batch := <-d.Batches():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return nil
	}
}

func TestDebouncerFlushesOnBatchSize(t *testing.T) {
	d := NewDebouncer(testConfig())
	defer d.Close()

	d.Add(Event{Type: EventCreate, Path: "/a"})
	d.Add(Event{Type: EventCreate, Path: "/b"})
	d.Add(Event{Type: EventCreate, Path: "/c"})

	batch := receiveBatch(t, d)
	require.Len(t, batch, 3)
	assert.Equal(t, "/a", batch[0].Path)
}

func TestDebouncerFlushesOnTimer(t *testing.T) {
	d := NewDebouncer(testConfig())
	defer d.Close()

	d.Add(Event{Type: EventCreate, Path: "/solo"})

	batch := receiveBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "/solo", batch[0].Path)
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	d := NewDebouncer(cfg)
	defer d.Close()

	d.Add(Event{Type: EventCreate, Path: "/a"})
	d.Add(Event{Type: EventRemove, Path: "/b"})

	batch := receiveBatch(t, d)
	assert.Len(t, batch, 2)
}

func TestDebouncerManualFlush(t *testing.T) {
	cfg := testConfig()
	cfg.DebounceDelay = time.Hour
	cfg.BatchSize = 100
	d := NewDebouncer(cfg)
	defer d.Close()

	d.Add(Event{Type: EventCreate, Path: "/a"})
	d.Flush()

	batch := receiveBatch(t, d)
	assert.Len(t, batch, 1)
}

func TestDebouncerCloseFlushesPending(t *testing.T) {
	cfg := testConfig()
	cfg.DebounceDelay = time.Hour
	cfg.BatchSize = 100
	d := NewDebouncer(cfg)

	d.Add(Event{Type: EventCreate, Path: "/pending"})

	done := make(chan struct{})
	var got []Event
	go func() {
		defer close(done)
		for batch := range d.Batches() {
			got = append(got, batch...)
		}
	}()
	d.Close()
	<-done

	require.Len(t, got, 1)
	assert.Equal(t, "/pending", got[0].Path)
}

func TestDebouncerCloseConcurrentWithFlush(t *testing.T) {
	cfg := testConfig()
	cfg.DebounceDelay = time.Millisecond
	cfg.BatchSize = 2
	d := NewDebouncer(cfg)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range d.Batches() {
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				d.Add(Event{Type: EventCreate, Path: "/x"})
				d.Flush()
			}
		}()
	}

	time.Sleep(2 * time.Millisecond)
	d.Close()
	wg.Wait()
	<-drained
}

func TestDebouncerCloseIsIdempotent(t *testing.T) {
	d := NewDebouncer(testConfig())
	d.Add(Event{Type: EventCreate, Path: "/a"})
	d.Close()
	d.Close()

	// Events arriving after shutdown are dropped, not panicking.
	d.Add(Event{Type: EventCreate, Path: "/late"})
	d.Flush()
}
