package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/pkg/http/ws"
)

// Bridge forwards row change events from the notification channel to the
// WebSocket clients attached to this instance. Mutations made on any
// instance reach every viewer this way; delivery is at least once and
// unordered, so everything forwarded is a full row image clients upsert
// by id.
type Bridge struct {
	svc    *Service
	sub    *notify.Subscriber
	hub    Broadcaster
	logger zerolog.Logger

	mu      sync.Mutex
	watches map[uuid.UUID]*watch
}

type watch struct {
	refs   int
	cancel func()
}

func NewBridge(svc *Service, sub *notify.Subscriber, hub Broadcaster, logger zerolog.Logger) *Bridge {
	return &Bridge{
		svc:     svc,
		sub:     sub,
		hub:     hub,
		logger:  logger.With().Str("component", "session.bridge").Logger(),
		watches: make(map[uuid.UUID]*watch),
	}
}

// Watch subscribes this instance to a session's change events. Reference
// counted; the first local client opens the subscription and the last one
// closes it.
func (b *Bridge) Watch(ctx context.Context, sessionID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.watches[sessionID]; ok {
		w.refs++
		return nil
	}

	events, cancel, err := b.sub.Subscribe(ctx, sessionID,
		notify.TableSessions, notify.TableParticipants, notify.TableAnswers)
	if err != nil {
		return err
	}
	b.watches[sessionID] = &watch{refs: 1, cancel: cancel}
	go b.forward(ctx, sessionID, events)
	return nil
}

// Unwatch drops one reference; the subscription closes when none remain.
func (b *Bridge) Unwatch(sessionID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.watches[sessionID]
	if !ok {
		return
	}
	w.refs--
	if w.refs > 0 {
		return
	}
	delete(b.watches, sessionID)
	w.cancel()
}

func (b *Bridge) forward(ctx context.Context, sessionID uuid.UUID, events <-chan notify.Event) {
	for evt := range events {
		if err := b.handle(ctx, evt); err != nil {
			b.logger.Warn().Err(err).
				Str("session_id", sessionID.String()).
				Str("table", evt.Table).
				Msg("dropping change event")
		}
	}
}

func (b *Bridge) handle(ctx context.Context, evt notify.Event) error {
	switch evt.Table {
	case notify.TableSessions:
		return b.handleSession(ctx, evt)
	case notify.TableParticipants:
		return b.handleParticipant(evt)
	case notify.TableAnswers:
		return b.handleAnswer(ctx, evt)
	}
	return nil
}

func (b *Bridge) handleSession(ctx context.Context, evt notify.Event) error {
	var row sessionRow
	if err := json.Unmarshal(evt.Row, &row); err != nil {
		return err
	}
	s := &GameSession{
		ID:                       evt.SessionID,
		PIN:                      row.PIN,
		Status:                   row.Status,
		CurrentQuestionIndex:     row.CurrentQuestionIndex,
		CurrentQuestionStartedAt: row.CurrentQuestionStartedAt,
		StartedAt:                row.StartedAt,
		FinishedAt:               row.FinishedAt,
	}
	if quizID, err := uuid.Parse(row.QuizID); err == nil {
		s.QuizID = quizID
	}
	q, err := b.svc.Quiz(ctx, s.QuizID)
	if err != nil {
		// Broadcast without quiz metadata rather than dropping the event.
		q = nil
	}
	return b.hub.BroadcastToSession(evt.SessionID, envelope(ws.TypeSessionUpdated, ws.SessionUpdatedPayload{
		Session: sessionView(s, q),
	}))
}

func (b *Bridge) handleParticipant(evt notify.Event) error {
	var row participantRow
	if err := json.Unmarshal(evt.Row, &row); err != nil {
		return err
	}

	if evt.Op != notify.OpInsert && !row.IsActive {
		return b.hub.BroadcastToSession(evt.SessionID, envelope(ws.TypeParticipantLeft, ws.ParticipantLeftPayload{
			SessionID:     evt.SessionID.String(),
			ParticipantID: row.ID,
		}))
	}

	// Inserts and score/presence updates share one upsert message.
	return b.hub.BroadcastToSession(evt.SessionID, envelope(ws.TypeParticipantJoined, ws.ParticipantJoinedPayload{
		SessionID: evt.SessionID.String(),
		Participant: ws.ParticipantView{
			ID:         row.ID,
			Nickname:   row.Nickname,
			TotalScore: row.TotalScore,
			IsActive:   row.IsActive,
		},
	}))
}

func (b *Bridge) handleAnswer(ctx context.Context, evt notify.Event) error {
	var row answerRow
	if err := json.Unmarshal(evt.Row, &row); err != nil {
		return err
	}
	questionID, err := uuid.Parse(row.QuestionID)
	if err != nil {
		return err
	}

	answered, err := b.svc.Ledger.answers.CountForQuestion(ctx, evt.SessionID, questionID)
	if err != nil {
		answered = 0
	}
	return b.hub.BroadcastToSession(evt.SessionID, envelope(ws.TypeAnswerReceived, ws.AnswerReceivedPayload{
		SessionID:     evt.SessionID.String(),
		QuestionID:    row.QuestionID,
		ParticipantID: row.ParticipantID,
		AnsweredCount: answered,
	}))
}
