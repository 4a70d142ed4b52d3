package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"

	// Account errors
	ErrCodeRegistrationFailed = "registration_failed"
	ErrCodeLoginFailed        = "login_failed"
	ErrCodeEmailTaken         = "email_taken"

	// Session errors
	ErrCodeSessionNotFound       = "session_not_found"
	ErrCodeSessionNotJoinable    = "game_already_in_progress"
	ErrCodeSessionCreationFailed = "session_creation_failed"
	ErrCodeInvalidSessionID      = "invalid_session_id"
	ErrCodeInvalidPIN            = "invalid_pin"
	ErrCodeNotSessionHost        = "not_session_host"
	ErrCodeInvalidTransition     = "invalid_transition"

	// Answer errors
	ErrCodeAlreadyAnswered = "already_answered"
	ErrCodeQuestionClosed  = "time_expired"
	ErrCodeSubmitFailed    = "submit_failed"
	ErrCodeInvalidOption   = "invalid_option"

	// Participant errors
	ErrCodeJoinFailed          = "join_failed"
	ErrCodeParticipantNotFound = "participant_not_found"
	ErrCodeInvalidNickname     = "invalid_nickname"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
