package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizlive/quizlive/internal/session"
)

// ParticipantRepository handles participant persistence.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

const participantColumns = `id, session_id, user_id, nickname, total_score, is_active, joined_at`

func scanParticipant(row pgx.Row) (*session.Participant, error) {
	p := &session.Participant{}
	err := row.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Nickname, &p.TotalScore, &p.IsActive, &p.JoinedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new participant.
func (r *ParticipantRepository) Create(ctx context.Context, p *session.Participant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO game_participants (id, session_id, user_id, nickname, total_score, is_active, joined_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.SessionID, p.UserID, p.Nickname, p.TotalScore, p.IsActive, p.JoinedAt)
	return err
}

// Get retrieves a participant by id.
func (r *ParticipantRepository) Get(ctx context.Context, id uuid.UUID) (*session.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM game_participants WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrParticipantNotFound
	}
	return p, err
}

// GetByUser retrieves the participant a registered user holds in a session.
// Returns nil, nil when the user never joined it.
func (r *ParticipantRepository) GetByUser(ctx context.Context, sessionID, userID uuid.UUID) (*session.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM game_participants
		 WHERE session_id = $1 AND user_id = $2`, sessionID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// ListBySession returns the roster in join order.
func (r *ParticipantRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]session.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+participantColumns+` FROM game_participants
		 WHERE session_id = $1
		 ORDER BY joined_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Participant
	for rows.Next() {
		var p session.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.Nickname, &p.TotalScore, &p.IsActive, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountActive returns the number of currently connected participants.
func (r *ParticipantRepository) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM game_participants WHERE session_id = $1 AND is_active`, sessionID).Scan(&n)
	return n, err
}

// SetActive flips a participant's presence flag.
func (r *ParticipantRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE game_participants SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrParticipantNotFound
	}
	return nil
}

// ReconcileTotals rewrites every total_score in the session as the sum of
// that participant's recorded answers, resetting participants with no
// answers to zero.
func (r *ParticipantRepository) ReconcileTotals(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE game_participants p
		 SET total_score = COALESCE((
			SELECT SUM(a.points_earned) FROM game_answers a
			WHERE a.session_id = p.session_id AND a.participant_id = p.id
		 ), 0)
		 WHERE p.session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("reconciling totals: %w", err)
	}
	return nil
}
