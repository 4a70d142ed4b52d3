package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizlive/quizlive/internal/session"
)

// Postgres error code for unique_violation.
const pgUniqueViolation = "23505"

// AnswerRepository handles answer persistence.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// InsertScored records an answer and adds its points to the participant's
// running total in one transaction. The unique constraint on
// (session_id, participant_id, question_id) makes a repeat submission fail
// the insert before the increment, surfacing as ErrAlreadyAnswered.
func (r *AnswerRepository) InsertScored(ctx context.Context, a *session.Answer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO game_answers
			(id, session_id, participant_id, question_id, selected_option_id,
			 time_taken, points_earned, is_correct, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.SessionID, a.ParticipantID, a.QuestionID, a.SelectedOptionID,
		a.TimeTakenMs, a.PointsEarned, a.IsCorrect, a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return session.ErrAlreadyAnswered
		}
		return fmt.Errorf("inserting answer: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE game_participants SET total_score = total_score + $2 WHERE id = $1`,
		a.ParticipantID, a.PointsEarned)
	if err != nil {
		return fmt.Errorf("incrementing total score: %w", err)
	}

	return tx.Commit(ctx)
}

// GetForParticipant returns a participant's answer to a question, or nil, nil
// when they have not answered it.
func (r *AnswerRepository) GetForParticipant(ctx context.Context, sessionID, participantID, questionID uuid.UUID) (*session.Answer, error) {
	a := &session.Answer{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, participant_id, question_id, selected_option_id,
		        time_taken, points_earned, is_correct, created_at
		 FROM game_answers
		 WHERE session_id = $1 AND participant_id = $2 AND question_id = $3`,
		sessionID, participantID, questionID,
	).Scan(&a.ID, &a.SessionID, &a.ParticipantID, &a.QuestionID, &a.SelectedOptionID,
		&a.TimeTakenMs, &a.PointsEarned, &a.IsCorrect, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CountForQuestion returns how many answers a question has collected.
func (r *AnswerRepository) CountForQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_answers WHERE session_id = $1 AND question_id = $2`,
		sessionID, questionID).Scan(&n)
	return n, err
}

// OptionCounts returns the answer distribution for a question. Options nobody
// picked are absent; callers zero-fill.
func (r *AnswerRepository) OptionCounts(ctx context.Context, sessionID, questionID uuid.UUID) ([]session.OptionTally, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT selected_option_id, COUNT(*)
		 FROM game_answers
		 WHERE session_id = $1 AND question_id = $2
		 GROUP BY selected_option_id`, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.OptionTally
	for rows.Next() {
		var t session.OptionTally
		if err := rows.Scan(&t.OptionID, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Outcomes returns who answered a question and what it earned them.
func (r *AnswerRepository) Outcomes(ctx context.Context, sessionID, questionID uuid.UUID) ([]session.ParticipantOutcome, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.participant_id, p.nickname, a.is_correct, a.points_earned
		 FROM game_answers a
		 JOIN game_participants p ON p.id = a.participant_id
		 WHERE a.session_id = $1 AND a.question_id = $2
		 ORDER BY a.created_at`, sessionID, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.ParticipantOutcome
	for rows.Next() {
		var o session.ParticipantOutcome
		if err := rows.Scan(&o.ParticipantID, &o.Nickname, &o.IsCorrect, &o.PointsEarned); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
