package quiz

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRequest(t *testing.T, raw string) createQuizRequest {
	t.Helper()
	var req createQuizRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return req
}

const validQuizJSON = `{
	"title": "Capitals",
	"questions": [
		{
			"text": "Capital of France?",
			"time_limit": 20,
			"points": 1000,
			"options": [
				{"text": "Paris", "is_correct": true, "color": "red"},
				{"text": "Lyon", "is_correct": false, "color": "blue"},
				{"text": "Nice", "is_correct": false, "color": "yellow"},
				{"text": "Lille", "is_correct": false, "color": "green"}
			]
		}
	]
}`

func TestBuildQuiz(t *testing.T) {
	ownerID := uuid.New()
	q, err := buildQuiz(ownerID, decodeRequest(t, validQuizJSON))
	require.NoError(t, err)

	assert.Equal(t, ownerID, q.OwnerID)
	assert.Equal(t, "Capitals", q.Title)
	require.Len(t, q.Questions, 1)

	question := q.Questions[0]
	assert.Equal(t, q.ID, question.QuizID)
	assert.Equal(t, 0, question.OrderIndex)
	assert.Equal(t, 20, question.TimeLimit)
	assert.Equal(t, 1000, question.Points)
	require.Len(t, question.Options, 4)
	assert.True(t, question.Options[0].IsCorrect)
	assert.Equal(t, 3, question.Options[3].OrderIndex)
}

func TestBuildQuizRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"blank title", `{"title": "  ", "questions": [{"text": "q", "time_limit": 20, "points": 100, "options": [{"text": "a", "is_correct": true, "color": "red"}, {"text": "b", "color": "blue"}]}]}`},
		{"no questions", `{"title": "Empty", "questions": []}`},
		{"blank question text", `{"title": "T", "questions": [{"text": " ", "time_limit": 20, "points": 100, "options": [{"text": "a", "is_correct": true, "color": "red"}, {"text": "b", "color": "blue"}]}]}`},
		{"zero time limit", `{"title": "T", "questions": [{"text": "q", "time_limit": 0, "points": 100, "options": [{"text": "a", "is_correct": true, "color": "red"}, {"text": "b", "color": "blue"}]}]}`},
		{"zero points", `{"title": "T", "questions": [{"text": "q", "time_limit": 20, "points": 0, "options": [{"text": "a", "is_correct": true, "color": "red"}, {"text": "b", "color": "blue"}]}]}`},
		{"single option", `{"title": "T", "questions": [{"text": "q", "time_limit": 20, "points": 100, "options": [{"text": "a", "is_correct": true, "color": "red"}]}]}`},
		{"bad color", `{"title": "T", "questions": [{"text": "q", "time_limit": 20, "points": 100, "options": [{"text": "a", "is_correct": true, "color": "purple"}, {"text": "b", "color": "blue"}]}]}`},
		{"no correct option", `{"title": "T", "questions": [{"text": "q", "time_limit": 20, "points": 100, "options": [{"text": "a", "color": "red"}, {"text": "b", "color": "blue"}]}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := buildQuiz(uuid.New(), decodeRequest(t, tc.raw))
			assert.Error(t, err)
		})
	}
}

func TestQuestionAt(t *testing.T) {
	q := &Quiz{Questions: []Question{{Text: "first"}, {Text: "second"}}}

	got, ok := q.QuestionAt(0)
	require.True(t, ok)
	assert.Equal(t, "first", got.Text)

	_, ok = q.QuestionAt(2)
	assert.False(t, ok)
	_, ok = q.QuestionAt(-1)
	assert.False(t, ok)
}
