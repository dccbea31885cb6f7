package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamSessionKey returns the key holding a user's resumable session for a quiz.
func (r *CacheKeyStruct) ExamSessionKey(userID, quizID string) string {
	return fmt.Sprintf("user:%s:exam_session_%s", userID, quizID)
}

// QuizFullKey returns the cache key for a quiz including its answer key.
func (r *CacheKeyStruct) QuizFullKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:full", quizID)
}

// QuizLeaderboardKey returns the sorted set holding best scores for a quiz.
func (r *CacheKeyStruct) QuizLeaderboardKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:leaderboard", quizID)
}

var CacheKey = NewCacheKeyStruct()
