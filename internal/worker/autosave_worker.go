package worker

import (
	"context"
	"sync"
	"time"

	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/rs/zerolog"
)

const (
	AutosaveFlushInterval = 500 * time.Millisecond
	AutosaveBatchSize     = 256
	AutosaveMaxPending    = 1024
)

// SnapshotWriter is the durable side of the autosave buffer.
type SnapshotWriter interface {
	SetMany(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, key string) error
}

// AutosaveWorker buffers session snapshots in memory, keeps only the newest
// per key and writes them out in batches. It implements examsession.Autosaver.
type AutosaveWorker struct {
	store      SnapshotWriter
	log        zerolog.Logger
	interval   time.Duration
	batchSize  int
	maxPending int

	// flushMu serializes flushes with Discard.
	flushMu sync.Mutex

	mu      sync.Mutex
	pending map[string]examsession.Snapshot
	kick    chan struct{}
}

// NewAutosaveWorker creates a new AutosaveWorker. Zero values pick the defaults.
func NewAutosaveWorker(store SnapshotWriter, interval time.Duration, maxPending int, log zerolog.Logger) *AutosaveWorker {
	if interval <= 0 {
		interval = AutosaveFlushInterval
	}
	if maxPending <= 0 {
		maxPending = AutosaveMaxPending
	}
	return &AutosaveWorker{
		store:      store,
		log:        log.With().Str("component", "autosave_worker").Logger(),
		interval:   interval,
		batchSize:  min(AutosaveBatchSize, maxPending),
		maxPending: maxPending,
		pending:    make(map[string]examsession.Snapshot),
		kick:       make(chan struct{}, 1),
	}
}

// Save queues snap for key, replacing anything still pending for it. When
// the buffer is full a new key is dropped and logged.
func (w *AutosaveWorker) Save(key string, snap examsession.Snapshot) {
	w.mu.Lock()
	_, queued := w.pending[key]
	if !queued && len(w.pending) >= w.maxPending {
		w.mu.Unlock()
		w.log.Warn().Str("key", key).Msg("Autosave buffer full, dropping snapshot")
		return
	}
	w.pending[key] = snap
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Discard forgets any pending snapshot for key and deletes the stored one.
// A flush in progress finishes first, so nothing older can land afterwards.
func (w *AutosaveWorker) Discard(ctx context.Context, key string) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	delete(w.pending, key)
	w.mu.Unlock()

	return w.store.Delete(ctx, key)
}

// Pending reports how many keys wait for the next flush.
func (w *AutosaveWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Start runs the flush loop until ctx is cancelled, then drains. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain()
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			w.Flush(ctx)
		case <-w.kick:
			w.Flush(ctx)
		}
	}
}

// Flush writes every pending snapshot in one batch. Snapshots that fail to
// write stay pending unless a newer one has arrived meanwhile.
func (w *AutosaveWorker) Flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]examsession.Snapshot, len(batch))
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	values := make(map[string][]byte, len(batch))
	for key, snap := range batch {
		data, err := snap.Encode()
		if err != nil {
			w.log.Error().Err(err).Str("key", key).Msg("Encode snapshot failed, dropping")
			continue
		}
		values[key] = data
	}

	if err := w.store.SetMany(ctx, values); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Autosave flush failed, will retry")
		w.mu.Lock()
		for key, snap := range batch {
			if _, newer := w.pending[key]; !newer {
				w.pending[key] = snap
			}
		}
		w.mu.Unlock()
		return err
	}

	w.log.Debug().Int("count", len(values)).Msg("Autosave flushed")
	return nil
}

func (w *AutosaveWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n := w.Pending()
	if n == 0 {
		return
	}
	if err := w.Flush(ctx); err != nil {
		w.log.Error().Err(err).Int("count", n).Msg("Drain failed, snapshots lost")
		return
	}
	w.log.Info().Int("count", n).Msg("Drained remaining snapshots")
}
