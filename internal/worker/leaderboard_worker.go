package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	LeaderboardBatchSize    = 100
	LeaderboardBatchTimeout = time.Second
	LeaderboardPollTimeout  = time.Second
)

// LeaderboardUpdate is one finished attempt waiting to be ranked.
type LeaderboardUpdate struct {
	QuizID string `json:"quiz_id"`
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// BoardRebuilder repopulates a quiz's board from stored attempts.
type BoardRebuilder interface {
	Rebuild(ctx context.Context, quizID uuid.UUID) error
}

// LeaderboardWorker consumes leaderboard_updates_queue and raises best
// scores in each quiz's sorted set. A board missing from Redis is rebuilt
// from PostgreSQL, which already holds the attempt behind every update.
type LeaderboardWorker struct {
	rdb    *redis.Client
	boards BoardRebuilder
	log    zerolog.Logger
}

// NewLeaderboardWorker creates a worker. With a nil boards, updates for
// missing boards are skipped and left to the next read to rebuild.
func NewLeaderboardWorker(rdb *redis.Client, boards BoardRebuilder, log zerolog.Logger) *LeaderboardWorker {
	return &LeaderboardWorker{
		rdb:    rdb,
		boards: boards,
		log:    log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

// Start runs the batching loop until ctx is cancelled. Call in a goroutine.
func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Msg("LeaderboardWorker started")

	batch := make([]LeaderboardUpdate, 0, LeaderboardBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= LeaderboardBatchSize || time.Since(lastFlush) >= LeaderboardBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return
		default:
			item, err := w.rdb.BLPop(ctx, LeaderboardPollTimeout, config.WorkerKey.LeaderboardUpdatesQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var u LeaderboardUpdate
			if err := json.Unmarshal([]byte(item[1]), &u); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, u)
		}
	}
}

func (w *LeaderboardWorker) flushSafe(ctx context.Context, batch []LeaderboardUpdate) {
	if len(batch) == 0 {
		return
	}
	if err := w.Apply(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Leaderboard flush failed, requeueing")
		for _, u := range batch {
			raw, _ := json.Marshal(u)
			w.rdb.RPush(context.Background(), config.WorkerKey.LeaderboardUpdatesQueue, raw)
		}
	}
}

// Apply raises the scores of a batch of updates. Missing boards are rebuilt
// first and then receive the batch's scores as well.
func (w *LeaderboardWorker) Apply(ctx context.Context, batch []LeaderboardUpdate) error {
	keys := make([]string, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, u := range batch {
		key := config.CacheKey.QuizLeaderboardKey(u.QuizID)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	pipe := w.rdb.Pipeline()
	exists := make(map[string]*redis.IntCmd, len(keys))
	for _, key := range keys {
		exists[key] = pipe.Exists(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	rebuilt := make(map[string]bool)
	for _, u := range batch {
		key := config.CacheKey.QuizLeaderboardKey(u.QuizID)
		if exists[key].Val() != 0 || rebuilt[key] || w.boards == nil {
			continue
		}
		quizID, err := uuid.Parse(u.QuizID)
		if err != nil {
			w.log.Warn().Str("quiz_id", u.QuizID).Msg("Skipping update with malformed quiz id")
			continue
		}
		if err := w.boards.Rebuild(ctx, quizID); err != nil {
			return fmt.Errorf("rebuild board %s: %w", u.QuizID, err)
		}
		rebuilt[key] = true
	}

	pipe = w.rdb.Pipeline()
	queued := 0
	for _, u := range batch {
		key := config.CacheKey.QuizLeaderboardKey(u.QuizID)
		if exists[key].Val() == 0 && !rebuilt[key] {
			continue
		}
		pipe.ZAddGT(ctx, key, redis.Z{Score: float64(u.Score), Member: u.UserID})
		queued++
	}
	if queued == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}
