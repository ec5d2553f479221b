package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/metercore/metercore/adapters/metrics"
	"github.com/metercore/metercore/domain/usage"
	"github.com/metercore/metercore/ports"
)

// BufferedWriter batches usage events and writes them to the store in the
// background. Write never blocks on I/O and never reports failure to the
// caller - a batch that cannot be written within the timeout is dropped
// and counted, not retried inline.
type BufferedWriter struct {
	store         ports.UsageStore
	logger        zerolog.Logger
	metrics       *metrics.Collector
	buffer        []usage.Event
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	writeTimeout  time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// WriterConfig configures the buffered writer.
type WriterConfig struct {
	BatchSize     int           // Flush when the buffer reaches this size (default: 100)
	FlushInterval time.Duration // Flush at least this often (default: 10s)
	WriteTimeout  time.Duration // Bound on each store write (default: 30s)
}

// NewBufferedWriter creates a buffered usage writer.
func NewBufferedWriter(store ports.UsageStore, logger zerolog.Logger, m *metrics.Collector, cfg WriterConfig) *BufferedWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}

	w := &BufferedWriter{
		store:         store,
		logger:        logger,
		metrics:       m,
		buffer:        make([]usage.Event, 0, cfg.BatchSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		writeTimeout:  cfg.WriteTimeout,
		stopCh:        make(chan struct{}),
	}

	w.wg.Add(1)
	go w.flushLoop()

	return w
}

// Write queues one event.
func (w *BufferedWriter) Write(e usage.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, e)

	if len(w.buffer) >= w.batchSize {
		w.flushLocked()
	}
}

// Flush forces queued events to be written, synchronously.
func (w *BufferedWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	events := w.takeLocked()
	w.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	return w.writeBatch(ctx, events)
}

// flushLocked hands the current buffer to a background write.
// Caller must hold w.mu.
func (w *BufferedWriter) flushLocked() {
	events := w.takeLocked()
	if len(events) == 0 {
		return
	}

	// In the WaitGroup so Close cannot return while a batch is mid-write.
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
		defer cancel()
		if err := w.writeBatch(ctx, events); err != nil {
			w.metrics.ObserveDropped(len(events))
			w.logger.Error().Err(err).Int("events", len(events)).Msg("usage batch write failed, events dropped")
		}
	}()
}

// takeLocked swaps out the buffer. Caller must hold w.mu.
func (w *BufferedWriter) takeLocked() []usage.Event {
	if len(w.buffer) == 0 {
		return nil
	}
	events := make([]usage.Event, len(w.buffer))
	copy(events, w.buffer)
	w.buffer = w.buffer[:0]
	return events
}

func (w *BufferedWriter) writeBatch(ctx context.Context, events []usage.Event) error {
	start := time.Now()
	err := w.store.Append(ctx, events)
	w.metrics.ObserveFlush(time.Since(start).Seconds(), len(events))
	return err
}

func (w *BufferedWriter) flushLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
		case <-w.stopCh:
			return
		}
	}
}

// Close stops the writer, waits for in-flight background writes, and
// flushes remaining events.
func (w *BufferedWriter) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
		defer cancel()
		err = w.Flush(ctx)
	})
	return err
}

// Ensure interface compliance.
var _ ports.UsageWriter = (*BufferedWriter)(nil)
