package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizlive/quizlive/internal/session"
)

// SessionRepository handles game session persistence.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, quiz_id, host_id, pin, status, current_question_index,
	current_question_started_at, started_at, finished_at, created_at`

func scanSession(row pgx.Row) (*session.GameSession, error) {
	s := &session.GameSession{}
	err := row.Scan(&s.ID, &s.QuizID, &s.HostID, &s.PIN, &s.Status, &s.CurrentQuestionIndex,
		&s.CurrentQuestionStartedAt, &s.StartedAt, &s.FinishedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	return s, nil
}

// Create inserts a new waiting session. The partial unique index on pin
// rejects a PIN collision with another live session.
func (r *SessionRepository) Create(ctx context.Context, s *session.GameSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO game_sessions (id, quiz_id, host_id, pin, status, current_question_index, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.QuizID, s.HostID, s.PIN, s.Status, s.CurrentQuestionIndex, s.CreatedAt)
	return err
}

// Get retrieves a session by id.
func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*session.GameSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id))
}

// GetByPIN retrieves the live session currently holding a PIN. Finished
// sessions release their PIN for reuse.
func (r *SessionRepository) GetByPIN(ctx context.Context, pin string) (*session.GameSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM game_sessions
		 WHERE pin = $1 AND status <> 'finished'`, pin))
}

// PINActive reports whether a PIN is held by any non-finished session.
func (r *SessionRepository) PINActive(ctx context.Context, pin string) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM game_sessions WHERE pin = $1 AND status <> 'finished'
		)`, pin).Scan(&active)
	return active, err
}

// Start moves a waiting session to started, opening question zero. Reports
// whether the row was in the expected state.
func (r *SessionRepository) Start(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE game_sessions
		 SET status = 'started', started_at = $2,
		     current_question_index = 0, current_question_started_at = $2
		 WHERE id = $1 AND status = 'waiting'`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Advance moves the question index forward by one, but only from the index
// the caller observed. The index and the new start timestamp change in the
// same statement, so no reader sees a half-applied advance.
func (r *SessionRepository) Advance(ctx context.Context, id uuid.UUID, fromIndex int, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE game_sessions
		 SET current_question_index = current_question_index + 1,
		     current_question_started_at = $3
		 WHERE id = $1 AND status = 'started' AND current_question_index = $2`,
		id, fromIndex, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Finish moves a started session to finished.
func (r *SessionRepository) Finish(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE game_sessions
		 SET status = 'finished', finished_at = $2
		 WHERE id = $1 AND status = 'started'`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
