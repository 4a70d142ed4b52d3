package session

import (
	"context"
	"fmt"
	"math/rand"
)

// PINGenerator issues the 6-digit join codes players type to enter a game.
// Codes are unique among sessions that have not finished, so a code frees up
// as soon as its game is over.
type PINGenerator struct {
	sessions    SessionStore
	maxAttempts int
}

func NewPINGenerator(sessions SessionStore, maxAttempts int) *PINGenerator {
	if maxAttempts <= 0 {
		maxAttempts = 25
	}
	return &PINGenerator{sessions: sessions, maxAttempts: maxAttempts}
}

// Generate returns a PIN not held by any waiting or started session.
// The returned PIN can still race with a concurrent create; the partial
// unique index on game_sessions is the real guarantee.
func (g *PINGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		pin := fmt.Sprintf("%06d", 100000+rand.Intn(900000))
		active, err := g.sessions.PINActive(ctx, pin)
		if err != nil {
			return "", fmt.Errorf("checking pin availability: %w", err)
		}
		if !active {
			return pin, nil
		}
	}
	return "", ErrPINExhausted
}
