package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizlive_sessions_created_total",
		Help: "Game sessions created.",
	})
	sessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizlive_sessions_started_total",
		Help: "Game sessions moved from waiting to started.",
	})
	sessionsFinishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizlive_sessions_finished_total",
		Help: "Game sessions finished.",
	})
	participantsJoinedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizlive_participants_joined_total",
		Help: "Participants joined across all sessions.",
	})
	answersScoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizlive_answers_scored_total",
		Help: "Answers accepted and scored.",
	})
	answersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quizlive_answers_rejected_total",
		Help: "Answers rejected, by reason.",
	}, []string{"reason"})
	questionsClosedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quizlive_questions_closed_total",
		Help: "Questions closed by timeout or everyone answering.",
	})
)
