package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizlive/quizlive/internal/identity"
)

// HostRepository handles host account persistence.
type HostRepository struct {
	pool *pgxpool.Pool
}

func NewHostRepository(pool *pgxpool.Pool) *HostRepository {
	return &HostRepository{pool: pool}
}

// Create inserts a new host account.
func (r *HostRepository) Create(ctx context.Context, h *identity.Host) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO hosts (id, email, display_name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		h.ID, h.Email, h.DisplayName, h.PasswordHash, h.CreatedAt)
	return err
}

// Get retrieves a host by id.
func (r *HostRepository) Get(ctx context.Context, id uuid.UUID) (*identity.Host, error) {
	h := &identity.Host{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM hosts WHERE id = $1`, id,
	).Scan(&h.ID, &h.Email, &h.DisplayName, &h.PasswordHash, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, identity.ErrHostNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetByEmail retrieves a host by email, or nil, nil when unknown.
func (r *HostRepository) GetByEmail(ctx context.Context, email string) (*identity.Host, error) {
	h := &identity.Host{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, password_hash, created_at FROM hosts WHERE email = $1`, email,
	).Scan(&h.ID, &h.Email, &h.DisplayName, &h.PasswordHash, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}
