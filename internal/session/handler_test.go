package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/pkg/http/ws"
)

// newHandlerFixture wires a handler with a real bridge over miniredis, so
// watch bookkeeping can be observed end to end.
func newHandlerFixture(t *testing.T, questions int) (*fixture, *Handler, *Bridge) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := newFixture(questions)
	hub := ws.NewHub(zerolog.Nop())
	sub := notify.NewSubscriber(rdb, zerolog.Nop())
	bridge := NewBridge(f.svc, sub, &fakeBroadcaster{}, zerolog.Nop())
	orch := NewOrchestrator(f.svc, &fakeBroadcaster{}, time.Second, false, zerolog.Nop())
	h := NewHandler(f.svc, orch, bridge, hub, 30*time.Second, zerolog.Nop())
	return f, h, bridge
}

// dispatch runs one message through the handler. No socket is registered for
// the client, so replies go nowhere; only the side effects on ledger, hub,
// and bridge matter here.
func dispatch(h *Handler, state *clientState, msg ws.Message) {
	_ = h.handleMessage(context.Background(), state, msg)
}

func joinMessage(t *testing.T, pin, nickname string) ws.Message {
	t.Helper()
	payload, err := json.Marshal(ws.JoinSessionPayload{PIN: pin, Nickname: nickname})
	require.NoError(t, err)
	return ws.Message{Type: ws.TypeJoinSession, Payload: payload}
}

func watchCount(b *Bridge) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watches)
}

func watchRefs(b *Bridge, sessionID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[sessionID]
	if !ok {
		return 0
	}
	return w.refs
}

func TestHandlerRepeatJoinHoldsSingleWatch(t *testing.T) {
	f, h, bridge := newHandlerFixture(t, 1)
	s := f.createSession(t)
	state := &clientState{clientID: uuid.New()}

	dispatch(h, state, joinMessage(t, s.PIN, "alice"))
	dispatch(h, state, joinMessage(t, s.PIN, "alice"))
	require.Equal(t, 1, watchRefs(bridge, s.ID))

	h.disconnect(context.Background(), state)
	assert.Equal(t, 0, watchCount(bridge))
}

func TestHandlerSwitchingSessionsMovesWatch(t *testing.T) {
	f, h, bridge := newHandlerFixture(t, 1)
	first := f.createSession(t)
	second := f.createSession(t)
	state := &clientState{clientID: uuid.New()}

	dispatch(h, state, joinMessage(t, first.PIN, "alice"))
	require.Equal(t, 1, watchRefs(bridge, first.ID))

	dispatch(h, state, joinMessage(t, second.PIN, "alice"))
	assert.Equal(t, 0, watchRefs(bridge, first.ID))
	assert.Equal(t, 1, watchRefs(bridge, second.ID))
	assert.Equal(t, 1, watchCount(bridge))

	h.disconnect(context.Background(), state)
	assert.Equal(t, 0, watchCount(bridge))
}

func TestHandlerLeaveReleasesWatch(t *testing.T) {
	f, h, bridge := newHandlerFixture(t, 1)
	s := f.createSession(t)
	state := &clientState{clientID: uuid.New()}

	dispatch(h, state, joinMessage(t, s.PIN, "alice"))
	require.Equal(t, 1, watchCount(bridge))

	dispatch(h, state, ws.Message{Type: ws.TypeLeaveSession, Payload: json.RawMessage(`{}`)})
	assert.Equal(t, 0, watchCount(bridge))

	dispatch(h, state, joinMessage(t, s.PIN, "alice"))
	require.Equal(t, 1, watchCount(bridge))

	h.disconnect(context.Background(), state)
	assert.Equal(t, 0, watchCount(bridge))
}

func TestHandlerRepeatJoinDeactivatesReplacedParticipant(t *testing.T) {
	f, h, _ := newHandlerFixture(t, 1)
	s := f.createSession(t)
	state := &clientState{clientID: uuid.New()}

	dispatch(h, state, joinMessage(t, s.PIN, "alice"))
	abandoned := state.participantID
	require.NotEqual(t, uuid.Nil, abandoned)

	dispatch(h, state, joinMessage(t, s.PIN, "bob"))
	require.NotEqual(t, abandoned, state.participantID)

	old, err := f.ledger.participants.Get(context.Background(), abandoned)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	current, err := f.ledger.participants.Get(context.Background(), state.participantID)
	require.NoError(t, err)
	assert.True(t, current.IsActive)

	active, err := f.store.CountActive(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}
