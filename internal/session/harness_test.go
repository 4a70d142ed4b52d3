package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/notify"
	"github.com/quizlive/quizlive/internal/quiz"
	"github.com/quizlive/quizlive/pkg/http/ws"
)

// memStore is an in-memory implementation of the store interfaces with the
// same conditional-update and uniqueness semantics as the SQL repositories.
type memStore struct {
	mu           sync.Mutex
	sessions     map[uuid.UUID]*GameSession
	participants map[uuid.UUID]*Participant
	answers      map[string]*Answer
	quizzes      map[uuid.UUID]*quiz.Quiz
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     make(map[uuid.UUID]*GameSession),
		participants: make(map[uuid.UUID]*Participant),
		answers:      make(map[string]*Answer),
		quizzes:      make(map[uuid.UUID]*quiz.Quiz),
	}
}

func answerKey(sessionID, participantID, questionID uuid.UUID) string {
	return fmt.Sprintf("%s|%s|%s", sessionID, participantID, questionID)
}

func (m *memStore) Create(ctx context.Context, s *GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetByPIN(ctx context.Context, pin string) (*GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.PIN == pin && s.Status != StatusFinished {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (m *memStore) PINActive(ctx context.Context, pin string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.PIN == pin && s.Status != StatusFinished {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Start(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusWaiting {
		return false, nil
	}
	t := now
	s.Status = StatusStarted
	s.StartedAt = &t
	s.CurrentQuestionIndex = 0
	s.CurrentQuestionStartedAt = &t
	return true, nil
}

func (m *memStore) Advance(ctx context.Context, id uuid.UUID, fromIndex int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusStarted || s.CurrentQuestionIndex != fromIndex {
		return false, nil
	}
	t := now
	s.CurrentQuestionIndex++
	s.CurrentQuestionStartedAt = &t
	return true, nil
}

func (m *memStore) Finish(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusStarted {
		return false, nil
	}
	t := now
	s.Status = StatusFinished
	s.FinishedAt = &t
	return true, nil
}

func (m *memStore) CreateParticipant(ctx context.Context, p *Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.participants[p.ID] = &cp
	return nil
}

func (m *memStore) GetParticipant(ctx context.Context, id uuid.UUID) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetByUser(ctx context.Context, sessionID, userID uuid.UUID) (*Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.SessionID == sessionID && p.UserID != nil && *p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Participant
	for _, p := range m.participants {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) CountActive(ctx context.Context, sessionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.participants {
		if p.SessionID == sessionID && p.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.IsActive = active
	return nil
}

func (m *memStore) ReconcileTotals(ctx context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.SessionID != sessionID {
			continue
		}
		total := 0
		for _, a := range m.answers {
			if a.SessionID == sessionID && a.ParticipantID == p.ID {
				total += a.PointsEarned
			}
		}
		p.TotalScore = total
	}
	return nil
}

func (m *memStore) InsertScored(ctx context.Context, a *Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := answerKey(a.SessionID, a.ParticipantID, a.QuestionID)
	if _, exists := m.answers[key]; exists {
		return ErrAlreadyAnswered
	}
	cp := *a
	m.answers[key] = &cp
	if p, ok := m.participants[a.ParticipantID]; ok {
		p.TotalScore += a.PointsEarned
	}
	return nil
}

func (m *memStore) GetForParticipant(ctx context.Context, sessionID, participantID, questionID uuid.UUID) (*Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[answerKey(sessionID, participantID, questionID)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) CountForQuestion(ctx context.Context, sessionID, questionID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.answers {
		if a.SessionID == sessionID && a.QuestionID == questionID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) OptionCounts(ctx context.Context, sessionID, questionID uuid.UUID) ([]OptionTally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, a := range m.answers {
		if a.SessionID == sessionID && a.QuestionID == questionID {
			counts[a.SelectedOptionID]++
		}
	}
	var out []OptionTally
	for id, n := range counts {
		out = append(out, OptionTally{OptionID: id, Count: n})
	}
	return out, nil
}

func (m *memStore) Outcomes(ctx context.Context, sessionID, questionID uuid.UUID) ([]ParticipantOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ParticipantOutcome
	for _, a := range m.answers {
		if a.SessionID == sessionID && a.QuestionID == questionID {
			nickname := ""
			if p, ok := m.participants[a.ParticipantID]; ok {
				nickname = p.Nickname
			}
			out = append(out, ParticipantOutcome{
				ParticipantID: a.ParticipantID,
				Nickname:      nickname,
				IsCorrect:     a.IsCorrect,
				PointsEarned:  a.PointsEarned,
			})
		}
	}
	return out, nil
}

func (m *memStore) GetQuiz(ctx context.Context, id uuid.UUID) (*quiz.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, quiz.ErrNotFound
	}
	return q, nil
}

func (m *memStore) addQuiz(q *quiz.Quiz) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[q.ID] = q
}

// participantAdapter satisfies ParticipantStore on top of memStore's
// differently named methods.
type participantAdapter struct{ *memStore }

func (a participantAdapter) Create(ctx context.Context, p *Participant) error {
	return a.CreateParticipant(ctx, p)
}

func (a participantAdapter) Get(ctx context.Context, id uuid.UUID) (*Participant, error) {
	return a.GetParticipant(ctx, id)
}

// eventRecorder captures published change events.
type eventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *eventRecorder) Publish(ctx context.Context, evt notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) byTable(table string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Table == table {
			out = append(out, e)
		}
	}
	return out
}

// fakeBroadcaster records broadcast messages per session.
type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []ws.Message
}

func (b *fakeBroadcaster) BroadcastToSession(sessionID uuid.UUID, msg ws.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *fakeBroadcaster) byType(msgType string) []ws.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []ws.Message
	for _, m := range b.messages {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fixture wires the session components over the in-memory store.
type fixture struct {
	store  *memStore
	events *eventRecorder
	clock  *fakeClock
	state  *StateMachine
	ledger *Ledger
	svc    *Service

	hostID uuid.UUID
	quiz   *quiz.Quiz
}

func newFixture(questions int) *fixture {
	store := newMemStore()
	events := &eventRecorder{}
	clock := newFakeClock(time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC))
	logger := zerolog.Nop()

	hostID := uuid.New()
	q := buildTestQuiz(hostID, questions)
	store.addQuiz(q)

	participants := participantAdapter{store}
	state := NewStateMachine(store, participants, store, events, clock.Now, logger)
	ledger := NewLedger(store, participants, store, store, events, clock.Now, 20, logger)
	pins := NewPINGenerator(store, 25)
	svc := NewService(state, ledger, pins, store, store, events, clock.Now, logger)

	return &fixture{
		store:  store,
		events: events,
		clock:  clock,
		state:  state,
		ledger: ledger,
		svc:    svc,
		hostID: hostID,
		quiz:   q,
	}
}

func buildTestQuiz(ownerID uuid.UUID, questions int) *quiz.Quiz {
	q := &quiz.Quiz{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   "Friday Night Trivia",
	}
	colors := []string{quiz.ColorRed, quiz.ColorBlue, quiz.ColorYellow, quiz.ColorGreen}
	for i := 0; i < questions; i++ {
		question := quiz.Question{
			ID:         uuid.New(),
			QuizID:     q.ID,
			Text:       fmt.Sprintf("Question %d", i+1),
			TimeLimit:  20,
			Points:     1000,
			OrderIndex: i,
		}
		for oi := 0; oi < 4; oi++ {
			question.Options = append(question.Options, quiz.Option{
				ID:         uuid.New(),
				QuestionID: question.ID,
				Text:       fmt.Sprintf("Option %d", oi+1),
				IsCorrect:  oi == 0,
				Color:      colors[oi],
				OrderIndex: oi,
			})
		}
		q.Questions = append(q.Questions, question)
	}
	return q
}

// createSession makes a waiting session owned by the fixture host.
func (f *fixture) createSession(t testingT) *GameSession {
	s, err := f.svc.Create(context.Background(), f.quiz.ID, f.hostID)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	return s
}

// join adds an anonymous participant through the ledger.
func (f *fixture) join(t testingT, pin, nickname string) *Participant {
	p, _, err := f.ledger.Join(context.Background(), pin, nickname, nil)
	if err != nil {
		t.Fatalf("joining session: %v", err)
	}
	return p
}

type testingT interface {
	Fatalf(format string, args ...any)
}
