package quiz

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the quiz id matched nothing.
var ErrNotFound = errors.New("quiz not found")

// Option colors shown on answer buttons. The set is fixed; storage rejects
// anything else.
const (
	ColorRed    = "red"
	ColorBlue   = "blue"
	ColorYellow = "yellow"
	ColorGreen  = "green"
)

// Option is one possible answer to a question.
type Option struct {
	ID         uuid.UUID
	QuestionID uuid.UUID
	Text       string
	IsCorrect  bool
	Color      string
	OrderIndex int
}

// Question is a single timed question of a quiz.
type Question struct {
	ID         uuid.UUID
	QuizID     uuid.UUID
	Text       string
	TimeLimit  int // seconds, > 0
	Points     int // max awardable
	OrderIndex int
	Options    []Option
}

// Option returns the option with the given id, if it belongs to the question.
func (q *Question) Option(id uuid.UUID) (*Option, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// Quiz is an ordered sequence of questions. The core treats quizzes as
// read-only; authoring happens elsewhere and content is immutable once a
// session referencing the quiz has started.
type Quiz struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Title     string
	Questions []Question
	CreatedAt time.Time
}

// QuestionAt returns the question at the given index.
func (q *Quiz) QuestionAt(index int) (*Question, bool) {
	if index < 0 || index >= len(q.Questions) {
		return nil, false
	}
	return &q.Questions[index], true
}

// QuestionByID looks a question up by id.
func (q *Quiz) QuestionByID(id uuid.UUID) (*Question, bool) {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i], true
		}
	}
	return nil, false
}
