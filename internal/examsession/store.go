package examsession

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Store is the durable key-value storage a session is mirrored into so it
// survives reloads and restarts.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Autosaver receives every accepted mutation of a session.
//
// Save must not block the caller and never reports failure: autosave is
// best-effort. Discard drops anything still pending for key and removes the
// durable copy; once it returns, no earlier Save for key may land.
type Autosaver interface {
	Save(key string, snap Snapshot)
	Discard(ctx context.Context, key string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// StoreAutosaver writes each snapshot straight through to a Store and only
// logs failures.
type StoreAutosaver struct {
	store   Store
	log     zerolog.Logger
	timeout time.Duration
}

func NewStoreAutosaver(store Store, log zerolog.Logger) *StoreAutosaver {
	return &StoreAutosaver{
		store:   store,
		log:     log.With().Str("component", "store_autosaver").Logger(),
		timeout: 2 * time.Second,
	}
}

func (a *StoreAutosaver) Save(key string, snap Snapshot) {
	data, err := snap.Encode()
	if err != nil {
		a.log.Error().Err(err).Str("key", key).Msg("Encode snapshot failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.store.Set(ctx, key, data); err != nil {
		a.log.Warn().Err(err).Str("key", key).Msg("Autosave failed")
	}
}

func (a *StoreAutosaver) Discard(ctx context.Context, key string) error {
	return a.store.Delete(ctx, key)
}
