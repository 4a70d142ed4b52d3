package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memHosts is an in-memory HostStore.
type memHosts struct {
	mu    sync.Mutex
	hosts map[uuid.UUID]*Host
}

func newMemHosts() *memHosts {
	return &memHosts{hosts: make(map[uuid.UUID]*Host)}
}

func (m *memHosts) Create(ctx context.Context, h *Host) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *h
	m.hosts[h.ID] = &cp
	return nil
}

func (m *memHosts) Get(ctx context.Context, id uuid.UUID) (*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[id]
	if !ok {
		return nil, ErrHostNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *memHosts) GetByEmail(ctx context.Context, email string) (*Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.Email == email {
			cp := *h
			return &cp, nil
		}
	}
	return nil, nil
}

func newTestService() *Service {
	tokens := NewTokenManager([]byte("test-secret"), time.Hour, "quizlive-test")
	return NewService(newMemHosts(), tokens, zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()

	h, token, err := svc.Register(context.Background(), RegisterRequest{
		Email:       "Host@Example.com",
		Password:    "long-enough-password",
		DisplayName: "Quiz Host",
	})
	require.NoError(t, err)
	assert.Equal(t, "host@example.com", h.Email, "email is normalized")
	assert.Equal(t, "Quiz Host", h.DisplayName)
	assert.NotEmpty(t, token)

	claims, err := svc.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, h.ID, claims.UserID)

	logged, token, err := svc.Login(context.Background(), LoginRequest{
		Email:    "host@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)
	assert.Equal(t, h.ID, logged.ID)
	assert.NotEmpty(t, token)
}

func TestRegisterDefaultsDisplayName(t *testing.T) {
	svc := newTestService()

	h, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "trivia.nerd@example.com",
		Password: "long-enough-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "trivia.nerd", h.DisplayName)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "host@example.com", Password: "long-enough-password",
	})
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), RegisterRequest{
		Email: "HOST@example.com", Password: "another-password",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterInvalidInput(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "not-an-email", Password: "long-enough-password",
	})
	assert.Error(t, err)

	_, _, err = svc.Register(context.Background(), RegisterRequest{
		Email: "host@example.com", Password: "short",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestLoginBadCredentials(t *testing.T) {
	svc := newTestService()

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email: "host@example.com", Password: "long-enough-password",
	})
	require.NoError(t, err)

	// Unknown email and wrong password fail identically.
	_, _, err = svc.Login(context.Background(), LoginRequest{
		Email: "nobody@example.com", Password: "long-enough-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), LoginRequest{
		Email: "host@example.com", Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
