package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/quizforge/quizforge-backend/internal/worker"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// BestScoreReader rebuilds boards from stored attempts.
type BestScoreReader interface {
	BestScores(ctx context.Context, quizID uuid.UUID) ([]repository.BestScore, error)
}

// UserNameReader resolves display names for ranked users.
type UserNameReader interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// LeaderboardService ranks each user's best score per quiz in a Redis sorted set.
type LeaderboardService struct {
	rdb      *redis.Client
	attempts BestScoreReader
	users    UserNameReader
	log      zerolog.Logger
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(rdb *redis.Client, attempts BestScoreReader, users UserNameReader, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		rdb:      rdb,
		attempts: attempts,
		users:    users,
		log:      log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// Enqueue hands a finished attempt to the leaderboard worker.
func (s *LeaderboardService) Enqueue(ctx context.Context, quizID, userID uuid.UUID, score int) error {
	raw, err := json.Marshal(worker.LeaderboardUpdate{
		QuizID: quizID.String(),
		UserID: userID.String(),
		Score:  score,
	})
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.LeaderboardUpdatesQueue, raw).Err()
}

// Top returns the best limit users of a quiz. A board missing from Redis is
// rebuilt from PostgreSQL first.
func (s *LeaderboardService) Top(ctx context.Context, quizID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	key := config.CacheKey.QuizLeaderboardKey(quizID.String())

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("check leaderboard: %w", err)
	}
	if n == 0 {
		if err := s.Rebuild(ctx, quizID); err != nil {
			return nil, err
		}
	}

	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			s.log.Warn().Str("member", member).Msg("Skipping malformed leaderboard member")
			continue
		}
		ids = append(ids, id)
	}

	names, err := s.users.DisplayNames(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve names: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		score := int(z.Score)
		rank := len(entries) + 1
		if prev := len(entries) - 1; prev >= 0 && entries[prev].BestScore == score {
			rank = entries[prev].Rank
		}
		entries = append(entries, model.LeaderboardEntry{
			Rank:        rank,
			UserID:      id,
			DisplayName: names[id],
			BestScore:   score,
		})
	}
	return entries, nil
}

// Rebuild repopulates a quiz's board from stored attempts.
func (s *LeaderboardService) Rebuild(ctx context.Context, quizID uuid.UUID) error {
	best, err := s.attempts.BestScores(ctx, quizID)
	if err != nil {
		return fmt.Errorf("load best scores: %w", err)
	}
	if len(best) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(best))
	for _, b := range best {
		members = append(members, redis.Z{Score: float64(b.Score), Member: b.UserID.String()})
	}
	if err := s.rdb.ZAddGT(ctx, config.CacheKey.QuizLeaderboardKey(quizID.String()), members...).Err(); err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}

	s.log.Info().Str("quiz_id", quizID.String()).Int("users", len(best)).Msg("Leaderboard rebuilt")
	return nil
}

// Drop removes a quiz's board.
func (s *LeaderboardService) Drop(ctx context.Context, quizID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.QuizLeaderboardKey(quizID.String())).Err()
}
