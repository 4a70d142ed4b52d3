package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	httperrors "github.com/quizlive/quizlive/pkg/http/errors"
	"github.com/quizlive/quizlive/pkg/http/ws"
)

// Handler routes game WebSocket messages. Each connection gets a fresh client
// id for hub addressing; a host authenticates with a JWT at upgrade time,
// players identify through join or resume.
type Handler struct {
	svc             *Service
	orch            *Orchestrator
	bridge          *Bridge
	hub             *ws.Hub
	presenceTimeout time.Duration
	logger          zerolog.Logger
}

func NewHandler(svc *Service, orch *Orchestrator, bridge *Bridge, hub *ws.Hub, presenceTimeout time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:             svc,
		orch:            orch,
		bridge:          bridge,
		hub:             hub,
		presenceTimeout: presenceTimeout,
		logger:          logger.With().Str("component", "session.handler").Logger(),
	}
}

// clientState is one connection's identity, mutated only from its read pump.
type clientState struct {
	clientID      uuid.UUID
	userID        *uuid.UUID // set when the connection authenticated
	sessionID     uuid.UUID
	participantID uuid.UUID
	isHost        bool
	attached      uuid.UUID // session whose bridge watch this connection holds
}

// HandleConnection runs a connection until the peer disconnects. userID is
// non-nil when the upgrade carried a valid token.
func (h *Handler) HandleConnection(conn *websocket.Conn, userID *uuid.UUID) {
	state := &clientState{clientID: uuid.New(), userID: userID}

	wsConn := ws.NewConnection(conn, h.presenceTimeout, h.logger)
	h.hub.RegisterConnection(state.clientID, wsConn)

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), state, msg)
	})

	h.disconnect(context.Background(), state)
	h.hub.UnregisterConnection(state.clientID)
}

func (h *Handler) handleMessage(ctx context.Context, state *clientState, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeJoinSession:
		return h.handleJoin(ctx, state, msg)
	case ws.TypeResumeSession:
		return h.handleResume(ctx, state, msg)
	case ws.TypeStartGame:
		return h.handleStart(ctx, state, msg)
	case ws.TypeNextQuestion:
		return h.handleNext(ctx, state, msg)
	case ws.TypeEndGame:
		return h.handleEnd(ctx, state, msg)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, state, msg)
	case ws.TypeLeaveSession:
		return h.handleLeave(ctx, state, msg)
	default:
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (h *Handler) handleJoin(ctx context.Context, state *clientState, msg ws.Message) error {
	var req ws.JoinSessionPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid join_session payload")
	}

	p, s, err := h.svc.Ledger.Join(ctx, req.PIN, req.Nickname, state.userID)
	if err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}

	// A repeated join on the same socket replaces the connection's identity;
	// the abandoned participant must not keep counting toward all-answered.
	if state.participantID != uuid.Nil && state.participantID != p.ID {
		if err := h.svc.Ledger.MarkInactive(ctx, state.participantID); err != nil {
			h.logger.Warn().Err(err).
				Str("participant_id", state.participantID.String()).
				Msg("failed to deactivate replaced participant")
		}
	}

	state.sessionID = s.ID
	state.participantID = p.ID
	state.isHost = false
	if err := h.attach(ctx, state); err != nil {
		return err
	}
	return h.sendSnapshot(ctx, state, msg.RequestID)
}

func (h *Handler) handleResume(ctx context.Context, state *clientState, msg ws.Message) error {
	var req ws.ResumeSessionPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid resume_session payload")
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidSessionID, "invalid session id")
	}

	s, err := h.svc.Get(ctx, sessionID)
	if err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}

	switch {
	case state.userID != nil && *state.userID == s.HostID:
		// Host control connection: (re)arm the session loop.
		state.isHost = true
		h.orch.Ensure(context.WithoutCancel(ctx), s.ID, s.HostID)

	case req.ParticipantID != "":
		participantID, err := uuid.Parse(req.ParticipantID)
		if err != nil {
			return h.sendError(state, msg.RequestID, httperrors.ErrCodeParticipantNotFound, "invalid participant id")
		}
		p, err := h.svc.Ledger.Resume(ctx, sessionID, participantID)
		if err != nil {
			return h.sendDomainError(state, msg.RequestID, err)
		}
		state.participantID = p.ID

	case state.userID != nil:
		// Authenticated player resuming without a stored participant id.
		p, err := h.svc.Ledger.participants.GetByUser(ctx, sessionID, *state.userID)
		if err != nil {
			return h.sendDomainError(state, msg.RequestID, err)
		}
		if p == nil {
			return h.sendError(state, msg.RequestID, httperrors.ErrCodeParticipantNotFound, "not a participant of this session")
		}
		if _, err := h.svc.Ledger.Resume(ctx, sessionID, p.ID); err != nil {
			return h.sendDomainError(state, msg.RequestID, err)
		}
		state.participantID = p.ID

	default:
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeParticipantNotFound, "nothing to resume")
	}

	state.sessionID = s.ID
	if err := h.attach(ctx, state); err != nil {
		return err
	}
	return h.sendSnapshot(ctx, state, msg.RequestID)
}

func (h *Handler) handleStart(ctx context.Context, state *clientState, msg ws.Message) error {
	var req ws.StartGamePayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid start_game payload")
	}
	sessionID, err := h.requireHost(ctx, state, req.SessionID)
	if err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}
	if err := h.orch.Start(ctx, sessionID); err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}
	return nil
}

func (h *Handler) handleNext(ctx context.Context, state *clientState, msg ws.Message) error {
	var req ws.NextQuestionPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid next_question payload")
	}
	sessionID, err := h.requireHost(ctx, state, req.SessionID)
	if err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}
	if err := h.orch.Next(ctx, sessionID, req.CurrentIndex); err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}
	return nil
}

func (h *Handler) handleEnd(ctx context.Context, state *clientState, msg ws.Message) error {
	var req ws.EndGamePayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid end_game payload")
	}
	sessionID, err := h.requireHost(ctx, state, req.SessionID)
	if err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}
	if err := h.orch.End(ctx, sessionID); err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}
	return nil
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, state *clientState, msg ws.Message) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid submit_answer payload")
	}
	if state.participantID == uuid.Nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeParticipantNotFound, "join a session first")
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid question id")
	}
	optionID, err := uuid.Parse(req.OptionID)
	if err != nil {
		return h.sendError(state, msg.RequestID, httperrors.ErrCodeInvalidPayload, "invalid option id")
	}

	a, err := h.svc.Ledger.SubmitAnswer(ctx, state.sessionID, state.participantID, questionID, optionID)
	if err != nil {
		return h.sendDomainError(state, msg.RequestID, err)
	}

	payload := envelope(ws.TypeAnswerAck, ws.AnswerAckPayload{
		SessionID:        state.sessionID.String(),
		QuestionID:       req.QuestionID,
		Accepted:         true,
		PointsEarned:     a.PointsEarned,
		IsCorrect:        a.IsCorrect,
		ServerReceivedAt: a.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	payload.RequestID = msg.RequestID
	return h.hub.SendToClient(state.clientID, payload)
}

func (h *Handler) handleLeave(ctx context.Context, state *clientState, msg ws.Message) error {
	h.disconnect(ctx, state)
	state.sessionID = uuid.Nil
	state.participantID = uuid.Nil
	state.isHost = false
	return nil
}

// attach binds the connection to its session's broadcast group and opens the
// cross-instance change feed. A connection holds at most one watch reference:
// re-attaching to the same session keeps it, switching sessions releases the
// previous one first.
func (h *Handler) attach(ctx context.Context, state *clientState) error {
	if state.attached == state.sessionID {
		return nil
	}
	if state.attached != uuid.Nil {
		h.hub.LeaveSession(state.attached, state.clientID)
		h.bridge.Unwatch(state.attached)
		state.attached = uuid.Nil
	}
	h.hub.JoinSession(state.sessionID, state.clientID)
	if err := h.bridge.Watch(context.WithoutCancel(ctx), state.sessionID); err != nil {
		// attached stays unset so the next join or resume retries the watch.
		h.logger.Error().Err(err).
			Str("session_id", state.sessionID.String()).
			Msg("change feed subscription failed")
		return nil
	}
	state.attached = state.sessionID
	return nil
}

func (h *Handler) disconnect(ctx context.Context, state *clientState) {
	if state.sessionID == uuid.Nil {
		return
	}
	if state.participantID != uuid.Nil {
		if err := h.svc.Ledger.MarkInactive(ctx, state.participantID); err != nil {
			h.logger.Warn().Err(err).
				Str("participant_id", state.participantID.String()).
				Msg("failed to mark participant inactive")
		}
	}
	if state.isHost {
		h.orch.Stop(state.sessionID)
	}
	h.hub.LeaveSession(state.sessionID, state.clientID)
	if state.attached != uuid.Nil {
		h.bridge.Unwatch(state.attached)
		state.attached = uuid.Nil
	}
}

func (h *Handler) requireHost(ctx context.Context, state *clientState, rawSessionID string) (uuid.UUID, error) {
	if state.userID == nil {
		return uuid.Nil, ErrNotHost
	}
	sessionID, err := uuid.Parse(rawSessionID)
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}
	s, err := h.svc.Get(ctx, sessionID)
	if err != nil {
		return uuid.Nil, err
	}
	if s.HostID != *state.userID {
		return uuid.Nil, ErrNotHost
	}
	// The loop may have died with a previous host connection.
	h.orch.Ensure(context.WithoutCancel(ctx), s.ID, s.HostID)
	return sessionID, nil
}

// sendSnapshot pushes the full session state to this client. Sent before any
// incremental event so a reconnecting client never applies deltas to a stale
// view.
func (h *Handler) sendSnapshot(ctx context.Context, state *clientState, requestID string) error {
	snap, err := h.svc.Snapshot(ctx, state.sessionID, state.participantID)
	if err != nil {
		return h.sendDomainError(state, requestID, err)
	}
	msg := envelope(ws.TypeSessionState, snapshotPayload(snap))
	msg.RequestID = requestID
	return h.hub.SendToClient(state.clientID, msg)
}

func (h *Handler) sendDomainError(state *clientState, requestID string, err error) error {
	code := httperrors.ErrCodeInternalError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		code = httperrors.ErrCodeSessionNotFound
	case errors.Is(err, ErrSessionNotJoinable):
		code = httperrors.ErrCodeSessionNotJoinable
	case errors.Is(err, ErrAlreadyAnswered):
		code = httperrors.ErrCodeAlreadyAnswered
	case errors.Is(err, ErrQuestionClosed):
		code = httperrors.ErrCodeQuestionClosed
	case errors.Is(err, ErrInvalidTransition):
		code = httperrors.ErrCodeInvalidTransition
	case errors.Is(err, ErrNotHost):
		code = httperrors.ErrCodeNotSessionHost
	case errors.Is(err, ErrInvalidOption):
		code = httperrors.ErrCodeInvalidOption
	case errors.Is(err, ErrNicknameInvalid):
		code = httperrors.ErrCodeInvalidNickname
	case errors.Is(err, ErrParticipantNotFound):
		code = httperrors.ErrCodeParticipantNotFound
	case errors.Is(err, ErrPINExhausted):
		code = httperrors.ErrCodeSessionCreationFailed
	}
	return h.sendError(state, requestID, code, err.Error())
}

func (h *Handler) sendError(state *clientState, requestID, code, message string) error {
	msg := envelope(ws.TypeError, ws.ErrorPayload{Code: code, Message: message})
	msg.RequestID = requestID
	return h.hub.SendToClient(state.clientID, msg)
}
