package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/quizforge/quizforge-backend/internal/config"
	"github.com/quizforge/quizforge-backend/internal/database"
	"github.com/quizforge/quizforge-backend/internal/logger"
	"github.com/quizforge/quizforge-backend/internal/model"
	"github.com/quizforge/quizforge-backend/internal/repository"
	"github.com/quizforge/quizforge-backend/internal/service"
)

// Fixed ids so repeated runs update the same demo users.
var (
	demoAdminID   = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	demoStudentID = uuid.MustParse("00000000-0000-4000-8000-000000000002")
)

func main() {
	var printTokens bool
	flag.BoolVar(&printTokens, "tokens", false, "Print 24h dev tokens signed with JWT_SECRET")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	userRepo := repository.NewUserRepository(pool)
	quizService := service.NewQuizService(repository.NewQuizRepository(pool), rdb, cfg.QuizCacheTTL, log)

	for _, u := range []*model.User{
		{ID: demoAdminID, DisplayName: "Demo Admin", Role: model.RoleAdmin},
		{ID: demoStudentID, DisplayName: "Demo Student", Role: model.RoleStudent},
	} {
		if err := userRepo.Upsert(ctx, u); err != nil {
			log.Fatal().Err(err).Str("user_id", u.ID.String()).Msg("Failed to upsert user")
		}
	}

	count := 5
	quiz, err := quizService.Create(ctx, demoAdminID, &model.CreateQuizRequest{
		Title:         "European Capitals",
		Description:   "Five of eight questions, ten minutes.",
		TimeLimit:     10,
		QuestionCount: &count,
		Questions:     demoQuestions(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create demo quiz")
	}
	if err := quizService.SetActive(ctx, quiz.ID, true); err != nil {
		log.Fatal().Err(err).Msg("Failed to activate demo quiz")
	}

	log.Info().
		Str("quiz_id", quiz.ID.String()).
		Str("admin_id", demoAdminID.String()).
		Str("student_id", demoStudentID.String()).
		Msg("Demo data seeded")

	if printTokens {
		for _, u := range []struct {
			id   uuid.UUID
			role model.Role
		}{{demoAdminID, model.RoleAdmin}, {demoStudentID, model.RoleStudent}} {
			token, err := devToken(cfg.JWTSecret, u.id, u.role)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to sign token")
			}
			fmt.Printf("%s: %s\n", u.role, token)
		}
	}
}

func devToken(secret string, userID uuid.UUID, role model.Role) (string, error) {
	claims := service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
		UserID: userID,
		Role:   role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func demoQuestions() []model.QuestionInput {
	capitals := []struct {
		country string
		options []string
		answer  int
	}{
		{"France", []string{"Lyon", "Paris", "Nice", "Lille"}, 1},
		{"Italy", []string{"Rome", "Milan", "Turin", "Naples"}, 0},
		{"Norway", []string{"Bergen", "Tromsø", "Oslo", "Stavanger"}, 2},
		{"Portugal", []string{"Porto", "Braga", "Faro", "Lisbon"}, 3},
		{"Poland", []string{"Warsaw", "Kraków", "Gdańsk", "Poznań"}, 0},
		{"Austria", []string{"Graz", "Vienna", "Linz", "Salzburg"}, 1},
		{"Greece", []string{"Patras", "Heraklion", "Athens", "Thessaloniki"}, 2},
		{"Finland", []string{"Tampere", "Turku", "Oulu", "Helsinki"}, 3},
	}

	out := make([]model.QuestionInput, 0, len(capitals))
	for _, c := range capitals {
		answer := c.answer
		out = append(out, model.QuestionInput{
			Text:          fmt.Sprintf("What is the capital of %s?", c.country),
			Options:       c.options,
			CorrectAnswer: &answer,
		})
	}
	return out
}
