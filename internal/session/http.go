package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizlive/quizlive/internal/identity"
	httperrors "github.com/quizlive/quizlive/pkg/http/errors"
)

// HTTPHandlers provides the REST surface for sessions: hosts create them
// here and get back the PIN to put on the screen; players check a PIN
// before opening the WebSocket.
type HTTPHandlers struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandlers(svc *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{svc: svc, logger: logger}
}

type createSessionRequest struct {
	QuizID string `json:"quiz_id"`
}

type sessionResponse struct {
	ID                   string `json:"id"`
	QuizID               string `json:"quiz_id"`
	PIN                  string `json:"pin"`
	Status               string `json:"status"`
	CurrentQuestionIndex int    `json:"current_question_index"`
}

// ServeHTTP routes /v1/sessions requests.
func (h *HTTPHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions")
	rest = strings.Trim(rest, "/")

	switch {
	case rest == "" && r.Method == http.MethodPost:
		h.create(w, r)
	case strings.HasPrefix(rest, "pin/") && r.Method == http.MethodGet:
		h.getByPIN(w, r, strings.TrimPrefix(rest, "pin/"))
	case rest != "" && r.Method == http.MethodGet:
		h.get(w, r, rest)
	default:
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeInvalidRequest, "Method not allowed")
	}
}

func (h *HTTPHandlers) create(w http.ResponseWriter, r *http.Request) {
	claims := identity.ClaimsFromContext(r.Context())
	if claims == nil {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid quiz id")
		return
	}

	s, err := h.svc.Create(r.Context(), quizID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotHost):
			httperrors.RespondForbidden(w, httperrors.ErrCodeNotSessionHost, "You do not own this quiz")
		case errors.Is(err, ErrPINExhausted):
			httperrors.RespondError(w, http.StatusServiceUnavailable, httperrors.ErrCodeSessionCreationFailed, "Could not allocate a game PIN")
		default:
			h.logger.Error().Err(err).Msg("session creation failed")
			httperrors.RespondInternalError(w)
		}
		return
	}

	h.respondSession(w, http.StatusCreated, s)
}

func (h *HTTPHandlers) get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Invalid session id")
		return
	}
	s, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeSessionNotFound, "Session not found")
		return
	}
	h.respondSession(w, http.StatusOK, s)
}

// getByPIN lets the join page validate a PIN before connecting. Only
// joinable metadata leaks; a finished session's PIN resolves to nothing.
func (h *HTTPHandlers) getByPIN(w http.ResponseWriter, r *http.Request, pin string) {
	s, err := h.svc.GetByPIN(r.Context(), pin)
	if err != nil {
		httperrors.RespondNotFound(w, httperrors.ErrCodeInvalidPIN, "No game with this PIN")
		return
	}
	h.respondSession(w, http.StatusOK, s)
}

func (h *HTTPHandlers) respondSession(w http.ResponseWriter, status int, s *GameSession) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(sessionResponse{
		ID:                   s.ID.String(),
		QuizID:               s.QuizID.String(),
		PIN:                  s.PIN,
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
	})
}
