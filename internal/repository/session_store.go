package repository

import (
	"context"
	"errors"
	"time"

	"github.com/quizforge/quizforge-backend/internal/examsession"
	"github.com/redis/go-redis/v9"
)

// SessionTTL bounds how long an abandoned saved session lingers.
const SessionTTL = 7 * 24 * time.Hour

// SessionStore keeps saved exam sessions in Redis.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(rdb *redis.Client) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: SessionTTL}
}

func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, examsession.ErrNotFound
	}
	return data, err
}

func (s *SessionStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, s.ttl).Err()
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// SetMany writes several sessions in one round trip.
func (s *SessionStore) SetMany(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range values {
			pipe.Set(ctx, key, value, s.ttl)
		}
		return nil
	})
	return err
}
