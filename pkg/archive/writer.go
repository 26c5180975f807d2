package archive

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	saveAttempts     = 3
	saveBackoff      = 250 * time.Millisecond
	saveTimeout      = 5 * time.Second
)

// Writer saves records asynchronously so a slow or unreachable store never
// blocks session processing. Each record gets a bounded number of attempts;
// after that it is logged and dropped, the in-memory session remaining the
// authority for the live exchange.
type Writer struct {
	store Store
	queue chan Record

	clk    clock.Clock
	logger *zap.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWriter creates a writer for the given store. Run must be started for
// records to drain; Close waits for it.
func NewWriter(store Store, clk clock.Clock, logger *zap.Logger) *Writer {
	w := &Writer{
		store:  store,
		queue:  make(chan Record, defaultQueueSize),
		clk:    clk,
		logger: logger,
	}
	w.wg.Add(1)
	return w
}

// Run drains the queue until Close. Intended to run as a goroutine.
func (w *Writer) Run() {
	defer w.wg.Done()

	for rec := range w.queue {
		w.save(rec)
	}
}

// Enqueue hands a record to the writer. Never blocks: when the buffer is
// full the record is dropped with a log line.
func (w *Writer) Enqueue(rec Record) {
	select {
	case w.queue <- rec:
	default:
		w.logger.Warn("archive queue full, dropping record",
			zap.String("session_id", rec.SessionID))
	}
}

// Close stops accepting records and waits for the queue to drain.
func (w *Writer) Close() {
	w.closeOnce.Do(func() {
		close(w.queue)
	})
	w.wg.Wait()
}

func (w *Writer) save(rec Record) {
	for attempt := 1; attempt <= saveAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := w.store.Save(ctx, rec)
		cancel()

		if err == nil {
			return
		}

		w.logger.Warn("failed to archive game",
			zap.String("session_id", rec.SessionID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < saveAttempts {
			w.clk.Sleep(saveBackoff * time.Duration(attempt))
		}
	}

	w.logger.Error("giving up archiving game", zap.String("session_id", rec.SessionID))
}
