package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/config"
	"github.com/quizlive/quizlive/internal/db/repository"
	"github.com/quizlive/quizlive/internal/identity"
	"github.com/quizlive/quizlive/internal/quiz"
)

// Seeds a demo host account and one quiz so a fresh environment can run a
// game end to end.
func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	pool, err := pgxpool.New(ctx, connString(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	hostRepo := repository.NewHostRepository(pool)
	quizRepo := repository.NewQuizRepository(pool)

	host, err := hostRepo.GetByEmail(ctx, "demo@quizlive.dev")
	if err != nil {
		logger.Fatal().Err(err).Msg("looking up demo host")
	}
	if host == nil {
		hash, err := identity.HashPassword("demo-password")
		if err != nil {
			logger.Fatal().Err(err).Msg("hashing demo password")
		}
		host = &identity.Host{
			ID:           uuid.New(),
			Email:        "demo@quizlive.dev",
			DisplayName:  "Demo Host",
			PasswordHash: hash,
			CreatedAt:    time.Now(),
		}
		if err := hostRepo.Create(ctx, host); err != nil {
			logger.Fatal().Err(err).Msg("creating demo host")
		}
		logger.Info().Str("email", host.Email).Msg("demo host created")
	}

	existing, err := quizRepo.ListByOwner(ctx, host.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("listing quizzes")
	}
	if len(existing) > 0 {
		logger.Info().Msg("demo quiz already present, nothing to do")
		return
	}

	if err := quizRepo.CreateQuiz(ctx, demoQuiz(host.ID)); err != nil {
		logger.Fatal().Err(err).Msg("creating demo quiz")
	}
	logger.Info().Msg("demo quiz created")
}

func connString(cfg *config.App) string {
	return "host=" + cfg.Postgres.Host +
		" user=" + cfg.Postgres.User +
		" password=" + cfg.Postgres.Password +
		" dbname=" + cfg.Postgres.Database +
		" sslmode=" + cfg.Postgres.SSLMode
}

func demoQuiz(ownerID uuid.UUID) *quiz.Quiz {
	q := &quiz.Quiz{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     "General Knowledge Warmup",
		CreatedAt: time.Now(),
	}

	add := func(text string, timeLimit, points int, options [4]string, correct int) {
		question := quiz.Question{
			ID:         uuid.New(),
			QuizID:     q.ID,
			Text:       text,
			TimeLimit:  timeLimit,
			Points:     points,
			OrderIndex: len(q.Questions),
		}
		colors := []string{quiz.ColorRed, quiz.ColorBlue, quiz.ColorYellow, quiz.ColorGreen}
		for i, opt := range options {
			question.Options = append(question.Options, quiz.Option{
				ID:         uuid.New(),
				QuestionID: question.ID,
				Text:       opt,
				IsCorrect:  i == correct,
				Color:      colors[i],
				OrderIndex: i,
			})
		}
		q.Questions = append(q.Questions, question)
	}

	add("What is the capital of France?", 20, 1000,
		[4]string{"Berlin", "Paris", "Madrid", "Rome"}, 1)
	add("Which planet is known as the Red Planet?", 20, 1000,
		[4]string{"Venus", "Jupiter", "Mars", "Saturn"}, 2)
	add("How many continents are there?", 15, 750,
		[4]string{"Five", "Six", "Seven", "Eight"}, 2)
	add("What gas do plants absorb from the atmosphere?", 20, 1000,
		[4]string{"Oxygen", "Nitrogen", "Hydrogen", "Carbon dioxide"}, 3)

	return q
}
