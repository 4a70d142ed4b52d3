package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HostStore persists host accounts. GetByEmail returns nil, nil when the
// email is unknown.
type HostStore interface {
	Create(ctx context.Context, h *Host) error
	Get(ctx context.Context, id uuid.UUID) (*Host, error)
	GetByEmail(ctx context.Context, email string) (*Host, error)
}

// Service handles host registration and login.
type Service struct {
	hosts  HostStore
	tokens *TokenManager
	logger zerolog.Logger
}

func NewService(hosts HostStore, tokens *TokenManager, logger zerolog.Logger) *Service {
	return &Service{
		hosts:  hosts,
		tokens: tokens,
		logger: logger.With().Str("component", "identity").Logger(),
	}
}

// Register creates a host account and returns a signed token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Host, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("invalid email %q", req.Email)
	}

	existing, err := s.hosts.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("looking up email: %w", err)
	}
	if existing != nil {
		return nil, "", ErrEmailTaken
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	h := &Host{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.hosts.Create(ctx, h); err != nil {
		return nil, "", fmt.Errorf("creating host: %w", err)
	}

	token, err := s.tokens.Generate(h)
	if err != nil {
		return nil, "", fmt.Errorf("signing token: %w", err)
	}

	s.logger.Info().Str("host_id", h.ID.String()).Msg("host registered")
	return h, token, nil
}

// Login verifies credentials and returns a signed token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Host, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	h, err := s.hosts.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("looking up email: %w", err)
	}
	if h == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := VerifyPassword(h.PasswordHash, req.Password); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(h)
	if err != nil {
		return nil, "", fmt.Errorf("signing token: %w", err)
	}
	return h, token, nil
}

// Authenticate resolves a bearer token to host claims.
func (s *Service) Authenticate(tokenString string) (*Claims, error) {
	return s.tokens.Validate(tokenString)
}

// Get returns a host by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Host, error) {
	return s.hosts.Get(ctx, id)
}
