package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizlive/quizlive/internal/quiz"
)

// QuizRepository handles quiz content. Reads load the whole quiz with its
// questions and options; session code treats the result as immutable.
type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetQuiz loads a quiz with questions and options in play order.
func (r *QuizRepository) GetQuiz(ctx context.Context, id uuid.UUID) (*quiz.Quiz, error) {
	q := &quiz.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, created_at FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.OwnerID, &q.Title, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, quiz.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading quiz: %w", err)
	}

	if err := r.loadQuestions(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *QuizRepository) loadQuestions(ctx context.Context, q *quiz.Quiz) error {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, text, time_limit, points, order_index
		 FROM questions
		 WHERE quiz_id = $1
		 ORDER BY order_index`, q.ID)
	if err != nil {
		return fmt.Errorf("loading questions: %w", err)
	}
	defer rows.Close()

	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var question quiz.Question
		if err := rows.Scan(&question.ID, &question.QuizID, &question.Text,
			&question.TimeLimit, &question.Points, &question.OrderIndex); err != nil {
			return err
		}
		index[question.ID] = len(q.Questions)
		q.Questions = append(q.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	optRows, err := r.pool.Query(ctx,
		`SELECT o.id, o.question_id, o.text, o.is_correct, o.color, o.order_index
		 FROM question_options o
		 JOIN questions qq ON qq.id = o.question_id
		 WHERE qq.quiz_id = $1
		 ORDER BY o.order_index`, q.ID)
	if err != nil {
		return fmt.Errorf("loading options: %w", err)
	}
	defer optRows.Close()

	for optRows.Next() {
		var opt quiz.Option
		if err := optRows.Scan(&opt.ID, &opt.QuestionID, &opt.Text,
			&opt.IsCorrect, &opt.Color, &opt.OrderIndex); err != nil {
			return err
		}
		if i, ok := index[opt.QuestionID]; ok {
			q.Questions[i].Options = append(q.Questions[i].Options, opt)
		}
	}
	return optRows.Err()
}

// ListByOwner returns quiz headers for a host's dashboard, newest first.
// Questions are not loaded.
func (r *QuizRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]quiz.Quiz, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, title, created_at
		 FROM quizzes
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []quiz.Quiz
	for rows.Next() {
		var q quiz.Quiz
		if err := rows.Scan(&q.ID, &q.OwnerID, &q.Title, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// CreateQuiz inserts a quiz with all questions and options in one
// transaction.
func (r *QuizRepository) CreateQuiz(ctx context.Context, q *quiz.Quiz) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO quizzes (id, owner_id, title, created_at) VALUES ($1, $2, $3, $4)`,
		q.ID, q.OwnerID, q.Title, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting quiz: %w", err)
	}

	for _, question := range q.Questions {
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (id, quiz_id, text, time_limit, points, order_index)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			question.ID, q.ID, question.Text, question.TimeLimit, question.Points, question.OrderIndex)
		if err != nil {
			return fmt.Errorf("inserting question: %w", err)
		}
		for _, opt := range question.Options {
			_, err = tx.Exec(ctx,
				`INSERT INTO question_options (id, question_id, text, is_correct, color, order_index)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				opt.ID, question.ID, opt.Text, opt.IsCorrect, opt.Color, opt.OrderIndex)
			if err != nil {
				return fmt.Errorf("inserting option: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}
