package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/quiz"
	"github.com/quizlive/quizlive/pkg/http/ws"
)

// Broadcaster fans a message out to every client attached to a session.
type Broadcaster interface {
	BroadcastToSession(sessionID uuid.UUID, msg ws.Message) error
}

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdNext
	cmdEnd
)

type command struct {
	kind      cmdKind
	fromIndex int
	reply     chan error
}

// run is the per-session loop state, touched only by its own goroutine once
// the loop starts.
type run struct {
	sessionID uuid.UUID
	hostID    uuid.UUID
	cmds      chan command
	cancel    context.CancelFunc

	closedIndex int // last question index already tallied, -1 when none
	done        bool
}

// Orchestrator runs one goroutine per live session. The loop serializes host
// commands with the one-second countdown tick, closes a question when its
// timer runs out or everyone answered, pushes results and the leaderboard,
// and either advances on its own or waits for the host, depending on
// configuration.
type Orchestrator struct {
	svc         *Service
	hub         Broadcaster
	tick        time.Duration
	autoAdvance bool
	now         func() time.Time
	logger      zerolog.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*run
}

func NewOrchestrator(svc *Service, hub Broadcaster, tick time.Duration, autoAdvance bool, logger zerolog.Logger) *Orchestrator {
	if tick <= 0 {
		tick = time.Second
	}
	return &Orchestrator{
		svc:         svc,
		hub:         hub,
		tick:        tick,
		autoAdvance: autoAdvance,
		now:         time.Now,
		logger:      logger.With().Str("component", "session.orchestrator").Logger(),
		runs:        make(map[uuid.UUID]*run),
	}
}

// Ensure starts the loop for a session if it is not already running. Called
// when the host connects; restarting after a host reconnect is a no-op if
// the loop survived.
func (o *Orchestrator) Ensure(ctx context.Context, sessionID, hostID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.runs[sessionID]; ok {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		sessionID:   sessionID,
		hostID:      hostID,
		cmds:        make(chan command),
		cancel:      cancel,
		closedIndex: -1,
	}
	o.runs[sessionID] = r
	go o.loop(runCtx, r)
}

// Stop tears the session loop down, e.g. when the host disconnects for good.
func (o *Orchestrator) Stop(sessionID uuid.UUID) {
	o.mu.Lock()
	r, ok := o.runs[sessionID]
	if ok {
		delete(o.runs, sessionID)
	}
	o.mu.Unlock()
	if ok {
		r.cancel()
	}
}

// Start asks the session loop to begin the game.
func (o *Orchestrator) Start(ctx context.Context, sessionID uuid.UUID) error {
	return o.dispatch(ctx, sessionID, command{kind: cmdStart, reply: make(chan error, 1)})
}

// Next asks the loop to advance past the question the host observed at
// fromIndex.
func (o *Orchestrator) Next(ctx context.Context, sessionID uuid.UUID, fromIndex int) error {
	return o.dispatch(ctx, sessionID, command{kind: cmdNext, fromIndex: fromIndex, reply: make(chan error, 1)})
}

// End asks the loop to finish the game early.
func (o *Orchestrator) End(ctx context.Context, sessionID uuid.UUID) error {
	return o.dispatch(ctx, sessionID, command{kind: cmdEnd, reply: make(chan error, 1)})
}

func (o *Orchestrator) dispatch(ctx context.Context, sessionID uuid.UUID, cmd command) error {
	o.mu.Lock()
	r, ok := o.runs[sessionID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("no orchestrator running for session %s: %w", sessionID, ErrSessionNotFound)
	}

	select {
	case r.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) loop(ctx context.Context, r *run) {
	defer o.remove(r.sessionID)

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-r.cmds:
			cmd.reply <- o.execute(ctx, r, cmd)
		case <-ticker.C:
			o.onTick(ctx, r)
		}
		if r.done {
			return
		}
	}
}

func (o *Orchestrator) remove(sessionID uuid.UUID) {
	o.mu.Lock()
	if r, ok := o.runs[sessionID]; ok {
		r.cancel()
		delete(o.runs, sessionID)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) execute(ctx context.Context, r *run, cmd command) error {
	switch cmd.kind {
	case cmdStart:
		s, err := o.svc.State.Start(ctx, r.sessionID, r.hostID)
		if err != nil {
			return err
		}
		if s.Status == StatusFinished {
			return o.gameOver(ctx, r, s)
		}
		r.closedIndex = -1
		return o.questionStarted(ctx, s)

	case cmdNext:
		s, err := o.svc.State.Advance(ctx, r.sessionID, r.hostID, cmd.fromIndex)
		if err != nil {
			return err
		}
		if s.Status == StatusFinished {
			return o.gameOver(ctx, r, s)
		}
		if s.CurrentQuestionIndex != cmd.fromIndex {
			return o.questionStarted(ctx, s)
		}
		return nil

	case cmdEnd:
		s, err := o.svc.State.Finish(ctx, r.sessionID, r.hostID)
		if err != nil {
			return err
		}
		return o.gameOver(ctx, r, s)
	}
	return nil
}

func (o *Orchestrator) onTick(ctx context.Context, r *run) {
	s, err := o.svc.Get(ctx, r.sessionID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", r.sessionID.String()).Msg("tick: session load failed")
		return
	}
	if s.Status != StatusStarted || s.CurrentQuestionStartedAt == nil {
		return
	}
	if s.CurrentQuestionIndex == r.closedIndex {
		return
	}

	q, err := o.svc.Quiz(ctx, s.QuizID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", r.sessionID.String()).Msg("tick: quiz load failed")
		return
	}
	current, ok := q.QuestionAt(s.CurrentQuestionIndex)
	if !ok {
		return
	}

	answered, err := o.svc.Ledger.answers.CountForQuestion(ctx, s.ID, current.ID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", r.sessionID.String()).Msg("tick: answer count failed")
		return
	}

	remaining := Remaining(*s.CurrentQuestionStartedAt, o.now(), current.TimeLimit)
	all, err := o.svc.Ledger.AllAnswered(ctx, s.ID, current.ID)
	if err != nil {
		o.logger.Warn().Err(err).Str("session_id", r.sessionID.String()).Msg("tick: all-answered check failed")
		all = false
	}

	if remaining > 0 && !all {
		o.broadcast(r.sessionID, envelope(ws.TypeCountdownTick, ws.CountdownTickPayload{
			SessionID:        s.ID.String(),
			QuestionIndex:    s.CurrentQuestionIndex,
			RemainingSeconds: remaining,
			AnsweredCount:    answered,
		}))
		return
	}

	o.closeQuestion(ctx, r, s, current)
}

// closeQuestion tallies the current question, pushes results and standings,
// and advances if the session runs hands-free.
func (o *Orchestrator) closeQuestion(ctx context.Context, r *run, s *GameSession, current *quiz.Question) {
	r.closedIndex = s.CurrentQuestionIndex
	questionsClosedTotal.Inc()

	tally, err := o.svc.Ledger.TallyQuestion(ctx, s.ID, current)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", s.ID.String()).Msg("tally failed")
	} else {
		o.broadcast(s.ID, envelope(ws.TypeQuestionResults, resultsPayload(s.ID.String(), s.CurrentQuestionIndex, current, tally)))
	}

	ranked, err := o.svc.Ledger.Leaderboard(ctx, s.ID)
	if err != nil {
		o.logger.Error().Err(err).Str("session_id", s.ID.String()).Msg("leaderboard failed")
	} else {
		o.broadcast(s.ID, envelope(ws.TypeLeaderboard, ws.LeaderboardPayload{
			SessionID: s.ID.String(),
			Entries:   leaderboardEntries(ranked),
		}))
	}

	if !o.autoAdvance {
		return
	}
	next, err := o.svc.State.Advance(ctx, s.ID, r.hostID, s.CurrentQuestionIndex)
	if err != nil {
		// Reopen the question so the next tick retries the advance instead
		// of stalling until the host intervenes.
		r.closedIndex = s.CurrentQuestionIndex - 1
		o.logger.Error().Err(err).Str("session_id", s.ID.String()).Msg("auto advance failed")
		return
	}
	if next.Status == StatusFinished {
		if err := o.gameOver(ctx, r, next); err != nil {
			o.logger.Error().Err(err).Str("session_id", s.ID.String()).Msg("game over broadcast failed")
		}
		return
	}
	if err := o.questionStarted(ctx, next); err != nil {
		o.logger.Error().Err(err).Str("session_id", s.ID.String()).Msg("question start broadcast failed")
	}
}

func (o *Orchestrator) questionStarted(ctx context.Context, s *GameSession) error {
	q, err := o.svc.Quiz(ctx, s.QuizID)
	if err != nil {
		return fmt.Errorf("loading quiz %s: %w", s.QuizID, err)
	}
	current, ok := q.QuestionAt(s.CurrentQuestionIndex)
	if !ok {
		return nil
	}
	startedAt := ""
	if s.CurrentQuestionStartedAt != nil {
		startedAt = s.CurrentQuestionStartedAt.UTC().Format(time.RFC3339Nano)
	}
	o.broadcast(s.ID, envelope(ws.TypeQuestionStarted, ws.QuestionStartedPayload{
		SessionID:     s.ID.String(),
		QuestionIndex: s.CurrentQuestionIndex,
		StartedAt:     startedAt,
		Question:      questionView(current, false),
	}))
	return nil
}

func (o *Orchestrator) gameOver(ctx context.Context, r *run, s *GameSession) error {
	r.done = true

	ranked, err := o.svc.Ledger.Leaderboard(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("loading final standings: %w", err)
	}
	finishedAt := ""
	if s.FinishedAt != nil {
		finishedAt = s.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	o.broadcast(s.ID, envelope(ws.TypeGameOver, ws.GameOverPayload{
		SessionID:   s.ID.String(),
		FinishedAt:  finishedAt,
		Leaderboard: leaderboardEntries(ranked),
	}))
	return nil
}

func (o *Orchestrator) broadcast(sessionID uuid.UUID, msg ws.Message) {
	if err := o.hub.BroadcastToSession(sessionID, msg); err != nil {
		o.logger.Debug().Err(err).Str("session_id", sessionID.String()).Msg("broadcast incomplete")
	}
}
