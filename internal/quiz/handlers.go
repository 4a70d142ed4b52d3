package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/identity"
	httperrors "github.com/quizlive/quizlive/pkg/http/errors"
)

// Store persists quiz content.
type Store interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*Quiz, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Quiz, error)
	CreateQuiz(ctx context.Context, q *Quiz) error
}

// HTTPHandlers provides REST endpoints for quiz authoring. All routes
// require an authenticated host; hosts only see their own quizzes.
type HTTPHandlers struct {
	store  Store
	logger zerolog.Logger
}

func NewHTTPHandlers(store Store, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{store: store, logger: logger}
}

type createQuizRequest struct {
	Title     string `json:"title"`
	Questions []struct {
		Text      string `json:"text"`
		TimeLimit int    `json:"time_limit"`
		Points    int    `json:"points"`
		Options   []struct {
			Text      string `json:"text"`
			IsCorrect bool   `json:"is_correct"`
			Color     string `json:"color"`
		} `json:"options"`
	} `json:"questions"`
}

// ServeHTTP routes /v1/quizzes requests.
func (h *HTTPHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims := identity.ClaimsFromContext(r.Context())
	if claims == nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/quizzes"), "/")
	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.create(w, r, claims.UserID)
	case rest == "" && r.Method == http.MethodGet:
		h.list(w, r, claims.UserID)
	case rest != "" && r.Method == http.MethodGet:
		h.get(w, r, claims.UserID, rest)
	default:
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
	}
}

func (h *HTTPHandlers) create(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID) {
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	q, err := buildQuiz(ownerID, req)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
		return
	}

	if err := h.store.CreateQuiz(r.Context(), q); err != nil {
		h.logger.Error().Err(err).Msg("quiz creation failed")
		httperrors.RespondInternalError(w)
		return
	}
	h.respondJSON(w, http.StatusCreated, toQuizResponse(q, true))
}

func (h *HTTPHandlers) list(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID) {
	quizzes, err := h.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Msg("quiz listing failed")
		httperrors.RespondInternalError(w)
		return
	}
	out := make([]map[string]any, 0, len(quizzes))
	for i := range quizzes {
		out = append(out, toQuizResponse(&quizzes[i], false))
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *HTTPHandlers) get(w http.ResponseWriter, r *http.Request, ownerID uuid.UUID, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid quiz id")
		return
	}
	q, err := h.store.GetQuiz(r.Context(), id)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Quiz not found")
		return
	}
	if q.OwnerID != ownerID {
		httperrors.RespondForbidden(w, httperrors.ErrCodeUnauthorized, "Not your quiz")
		return
	}
	h.respondJSON(w, http.StatusOK, toQuizResponse(q, true))
}

var validColors = map[string]bool{
	ColorRed:    true,
	ColorBlue:   true,
	ColorYellow: true,
	ColorGreen:  true,
}

func buildQuiz(ownerID uuid.UUID, req createQuizRequest) (*Quiz, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("a quiz needs at least one question")
	}

	q := &Quiz{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: time.Now(),
	}
	for qi, rq := range req.Questions {
		if strings.TrimSpace(rq.Text) == "" {
			return nil, fmt.Errorf("question %d: text is required", qi+1)
		}
		if rq.TimeLimit <= 0 {
			return nil, fmt.Errorf("question %d: time limit must be positive", qi+1)
		}
		if rq.Points <= 0 {
			return nil, fmt.Errorf("question %d: points must be positive", qi+1)
		}
		if len(rq.Options) < 2 {
			return nil, fmt.Errorf("question %d: at least two options required", qi+1)
		}

		question := Question{
			ID:         uuid.New(),
			QuizID:     q.ID,
			Text:       rq.Text,
			TimeLimit:  rq.TimeLimit,
			Points:     rq.Points,
			OrderIndex: qi,
		}
		hasCorrect := false
		for oi, ro := range rq.Options {
			if !validColors[ro.Color] {
				return nil, fmt.Errorf("question %d option %d: invalid color %q", qi+1, oi+1, ro.Color)
			}
			if ro.IsCorrect {
				hasCorrect = true
			}
			question.Options = append(question.Options, Option{
				ID:         uuid.New(),
				QuestionID: question.ID,
				Text:       ro.Text,
				IsCorrect:  ro.IsCorrect,
				Color:      ro.Color,
				OrderIndex: oi,
			})
		}
		if !hasCorrect {
			return nil, fmt.Errorf("question %d: needs a correct option", qi+1)
		}
		q.Questions = append(q.Questions, question)
	}
	return q, nil
}

func toQuizResponse(q *Quiz, includeQuestions bool) map[string]any {
	resp := map[string]any{
		"id":             q.ID.String(),
		"title":          q.Title,
		"question_count": len(q.Questions),
		"created_at":     q.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !includeQuestions {
		return resp
	}
	questions := make([]map[string]any, 0, len(q.Questions))
	for _, question := range q.Questions {
		options := make([]map[string]any, 0, len(question.Options))
		for _, opt := range question.Options {
			options = append(options, map[string]any{
				"id":         opt.ID.String(),
				"text":       opt.Text,
				"is_correct": opt.IsCorrect,
				"color":      opt.Color,
			})
		}
		questions = append(questions, map[string]any{
			"id":         question.ID.String(),
			"text":       question.Text,
			"time_limit": question.TimeLimit,
			"points":     question.Points,
			"options":    options,
		})
	}
	resp["questions"] = questions
	return resp
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
