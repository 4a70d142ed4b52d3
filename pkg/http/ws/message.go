package ws

import "encoding/json"

// MessageType constants for the game WebSocket protocol.
const (
	// Client -> Server
	TypeJoinSession   = "join_session"
	TypeResumeSession = "resume_session"
	TypeStartGame     = "start_game"
	TypeNextQuestion  = "next_question"
	TypeEndGame       = "end_game"
	TypeSubmitAnswer  = "submit_answer"
	TypeLeaveSession  = "leave_session"

	// Server -> Client
	TypeSessionState      = "session_state"
	TypeSessionUpdated    = "session_updated"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeQuestionStarted   = "question_started"
	TypeCountdownTick     = "countdown_tick"
	TypeAnswerAck         = "answer_ack"
	TypeAnswerReceived    = "answer_received"
	TypeQuestionResults   = "question_results"
	TypeLeaderboard       = "leaderboard"
	TypeGameOver          = "game_over"
	TypeError             = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

type JoinSessionPayload struct {
	PIN      string `json:"pin"`
	Nickname string `json:"nickname"`
}

type ResumeSessionPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id,omitempty"` // anonymous capability token
}

type StartGamePayload struct {
	SessionID string `json:"session_id"`
}

// NextQuestionPayload carries the question index the host was looking at
// when it clicked next. A stale index makes the advance a no-op, so a double
// click never skips a question.
type NextQuestionPayload struct {
	SessionID    string `json:"session_id"`
	CurrentIndex int    `json:"current_index"`
}

type EndGamePayload struct {
	SessionID string `json:"session_id"`
}

type SubmitAnswerPayload struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

type LeaveSessionPayload struct {
	SessionID string `json:"session_id"`
}

// Server Messages (outgoing)

// SessionStatePayload is the full snapshot sent on (re)connect. Clients must
// apply it before trusting any incremental event.
type SessionStatePayload struct {
	Session         SessionView        `json:"session"`
	CurrentQuestion *QuestionView      `json:"current_question,omitempty"`
	YourAnswer      *AnswerView        `json:"your_answer,omitempty"`
	Participants    []ParticipantView  `json:"participants"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
}

type SessionView struct {
	ID                       string `json:"id"`
	QuizID                   string `json:"quiz_id"`
	QuizTitle                string `json:"quiz_title"`
	PIN                      string `json:"pin"`
	Status                   string `json:"status"`
	CurrentQuestionIndex     int    `json:"current_question_index"`
	CurrentQuestionStartedAt string `json:"current_question_started_at,omitempty"`
	QuestionCount            int    `json:"question_count"`
}

type QuestionView struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	TimeLimit  int          `json:"time_limit"`
	Points     int          `json:"points"`
	OrderIndex int          `json:"order_index"`
	Options    []OptionView `json:"options"`
}

type OptionView struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Color      string `json:"color"`
	OrderIndex int    `json:"order_index"`
	// IsCorrect is only populated in results payloads, never while the
	// question is open.
	IsCorrect *bool `json:"is_correct,omitempty"`
}

type ParticipantView struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	TotalScore int    `json:"total_score"`
	IsActive   bool   `json:"is_active"`
}

type AnswerView struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	TimeTakenMs      int64  `json:"time_taken_ms"`
	PointsEarned     int    `json:"points_earned"`
	IsCorrect        bool   `json:"is_correct"`
}

type SessionUpdatedPayload struct {
	Session SessionView `json:"session"`
}

type ParticipantJoinedPayload struct {
	SessionID   string          `json:"session_id"`
	Participant ParticipantView `json:"participant"`
}

type ParticipantLeftPayload struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

// QuestionStartedPayload carries the authoritative start timestamp; clients
// derive their countdown from it rather than decrementing locally.
type QuestionStartedPayload struct {
	SessionID     string       `json:"session_id"`
	QuestionIndex int          `json:"question_index"`
	StartedAt     string       `json:"started_at"`
	Question      QuestionView `json:"question"`
}

type CountdownTickPayload struct {
	SessionID        string `json:"session_id"`
	QuestionIndex    int    `json:"question_index"`
	RemainingSeconds int    `json:"remaining_seconds"`
	AnsweredCount    int    `json:"answered_count"`
}

type AnswerAckPayload struct {
	SessionID        string `json:"session_id"`
	QuestionID       string `json:"question_id"`
	Accepted         bool   `json:"accepted"`
	PointsEarned     int    `json:"points_earned"`
	IsCorrect        bool   `json:"is_correct"`
	ServerReceivedAt string `json:"server_received_at"`
}

// AnswerReceivedPayload tells the host a participant has answered, without
// revealing what they picked.
type AnswerReceivedPayload struct {
	SessionID     string `json:"session_id"`
	QuestionID    string `json:"question_id"`
	ParticipantID string `json:"participant_id"`
	AnsweredCount int    `json:"answered_count"`
}

type QuestionResultsPayload struct {
	SessionID     string              `json:"session_id"`
	QuestionID    string              `json:"question_id"`
	QuestionIndex int                 `json:"question_index"`
	OptionCounts  []OptionCount       `json:"option_counts"`
	Participants  []ParticipantResult `json:"participants"`
}

type OptionCount struct {
	OptionID  string `json:"option_id"`
	Text      string `json:"text"`
	Color     string `json:"color"`
	IsCorrect bool   `json:"is_correct"`
	Count     int    `json:"count"`
}

type ParticipantResult struct {
	ParticipantID string `json:"participant_id"`
	Nickname      string `json:"nickname"`
	IsCorrect     bool   `json:"is_correct"`
	PointsEarned  int    `json:"points_earned"`
}

type LeaderboardPayload struct {
	SessionID string             `json:"session_id"`
	Entries   []LeaderboardEntry `json:"entries"`
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Nickname      string `json:"nickname"`
	TotalScore    int    `json:"total_score"`
}

type GameOverPayload struct {
	SessionID   string             `json:"session_id"`
	FinishedAt  string             `json:"finished_at"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
