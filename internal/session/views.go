package session

import (
	"encoding/json"
	"time"

	"github.com/quizlive/quizlive/internal/quiz"
	"github.com/quizlive/quizlive/pkg/http/ws"
)

// Mapping from domain types to wire payloads. Correct answers never leave the
// server while a question is open; only results payloads reveal them.

func envelope(msgType string, payload any) ws.Message {
	raw, _ := json.Marshal(payload)
	return ws.Message{Type: msgType, Payload: raw}
}

func sessionView(s *GameSession, q *quiz.Quiz) ws.SessionView {
	v := ws.SessionView{
		ID:                   s.ID.String(),
		QuizID:               s.QuizID.String(),
		PIN:                  s.PIN,
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
	}
	if q != nil {
		v.QuizTitle = q.Title
		v.QuestionCount = len(q.Questions)
	}
	if s.CurrentQuestionStartedAt != nil {
		v.CurrentQuestionStartedAt = s.CurrentQuestionStartedAt.UTC().Format(time.RFC3339Nano)
	}
	return v
}

func questionView(q *quiz.Question, revealCorrect bool) ws.QuestionView {
	v := ws.QuestionView{
		ID:         q.ID.String(),
		Text:       q.Text,
		TimeLimit:  q.TimeLimit,
		Points:     q.Points,
		OrderIndex: q.OrderIndex,
		Options:    make([]ws.OptionView, 0, len(q.Options)),
	}
	for _, opt := range q.Options {
		ov := ws.OptionView{
			ID:         opt.ID.String(),
			Text:       opt.Text,
			Color:      opt.Color,
			OrderIndex: opt.OrderIndex,
		}
		if revealCorrect {
			correct := opt.IsCorrect
			ov.IsCorrect = &correct
		}
		v.Options = append(v.Options, ov)
	}
	return v
}

func participantView(p *Participant) ws.ParticipantView {
	return ws.ParticipantView{
		ID:         p.ID.String(),
		Nickname:   p.Nickname,
		TotalScore: p.TotalScore,
		IsActive:   p.IsActive,
	}
}

func participantViews(ps []Participant) []ws.ParticipantView {
	out := make([]ws.ParticipantView, 0, len(ps))
	for i := range ps {
		out = append(out, participantView(&ps[i]))
	}
	return out
}

func answerView(a *Answer) ws.AnswerView {
	return ws.AnswerView{
		QuestionID:       a.QuestionID.String(),
		SelectedOptionID: a.SelectedOptionID.String(),
		TimeTakenMs:      a.TimeTakenMs,
		PointsEarned:     a.PointsEarned,
		IsCorrect:        a.IsCorrect,
	}
}

// leaderboardEntries assumes ranked input; ties share neither rank nor order
// beyond what the ledger's sort produced.
func leaderboardEntries(ranked []Participant) []ws.LeaderboardEntry {
	out := make([]ws.LeaderboardEntry, 0, len(ranked))
	for i := range ranked {
		out = append(out, ws.LeaderboardEntry{
			Rank:          i + 1,
			ParticipantID: ranked[i].ID.String(),
			Nickname:      ranked[i].Nickname,
			TotalScore:    ranked[i].TotalScore,
		})
	}
	return out
}

func resultsPayload(sessionID string, questionIndex int, question *quiz.Question, tally *Tally) ws.QuestionResultsPayload {
	p := ws.QuestionResultsPayload{
		SessionID:     sessionID,
		QuestionID:    question.ID.String(),
		QuestionIndex: questionIndex,
		OptionCounts:  make([]ws.OptionCount, 0, len(tally.Options)),
		Participants:  make([]ws.ParticipantResult, 0, len(tally.Outcomes)),
	}
	for _, oc := range tally.Options {
		opt, ok := question.Option(oc.OptionID)
		if !ok {
			continue
		}
		p.OptionCounts = append(p.OptionCounts, ws.OptionCount{
			OptionID:  oc.OptionID.String(),
			Text:      opt.Text,
			Color:     opt.Color,
			IsCorrect: opt.IsCorrect,
			Count:     oc.Count,
		})
	}
	for _, o := range tally.Outcomes {
		p.Participants = append(p.Participants, ws.ParticipantResult{
			ParticipantID: o.ParticipantID.String(),
			Nickname:      o.Nickname,
			IsCorrect:     o.IsCorrect,
			PointsEarned:  o.PointsEarned,
		})
	}
	return p
}

func snapshotPayload(snap *Snapshot) ws.SessionStatePayload {
	p := ws.SessionStatePayload{
		Session:      sessionView(snap.Session, snap.Quiz),
		Participants: participantViews(snap.Participants),
		Leaderboard:  leaderboardEntries(snap.Leaderboard),
	}
	if snap.CurrentQuestion != nil {
		qv := questionView(snap.CurrentQuestion, false)
		p.CurrentQuestion = &qv
	}
	if snap.YourAnswer != nil {
		av := answerView(snap.YourAnswer)
		p.YourAnswer = &av
	}
	return p
}
