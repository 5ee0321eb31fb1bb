package errors

import (
	"fmt"
	"time"
)

// ErrorCode is the machine-readable code carried in API error envelopes.
type ErrorCode string

const (
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "AUTH_INVALID"
	ErrCodeAuthRequired    ErrorCode = "AUTH_REQUIRED"
	ErrCodeTooManyRequests ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Participation
	ErrCodeAlreadyParticipated ErrorCode = "ALREADY_PARTICIPATED"
	ErrCodeParticipantNotFound ErrorCode = "PARTICIPANT_NOT_FOUND"

	// Captcha
	ErrCodeCaptchaRequired         ErrorCode = "CAPTCHA_REQUIRED"
	ErrCodeCaptchaSessionNotFound  ErrorCode = "CAPTCHA_SESSION_NOT_FOUND"
	ErrCodeCaptchaExpired          ErrorCode = "CAPTCHA_EXPIRED"
	ErrCodeCaptchaAttemptsExceeded ErrorCode = "CAPTCHA_ATTEMPTS_EXCEEDED"
	ErrCodeAlreadyVerified         ErrorCode = "CAPTCHA_ALREADY_COMPLETED"

	// Winner selection
	ErrCodeSelectionDone            ErrorCode = "SELECTION_ALREADY_DONE"
	ErrCodeInsufficientParticipants ErrorCode = "INSUFFICIENT_PARTICIPANTS"

	// Collaborators / infrastructure
	ErrCodeSubscriptionCheck ErrorCode = "SUBSCRIPTION_CHECK_FAILED"
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
	ErrCodeCacheError        ErrorCode = "CACHE_ERROR"
)

// AppError is the typed application error crossing the HTTP boundary.
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// IsConflict reports whether the caller should switch to a read instead of
// retrying the same mutation.
func (e *AppError) IsConflict() bool {
	return e.Code == ErrCodeAlreadyParticipated || e.Code == ErrCodeSelectionDone
}

// IsInternal reports whether the error is ours rather than the caller's.
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeDatabaseError ||
		e.Code == ErrCodeCacheError ||
		e.Code == ErrCodeSubscriptionCheck
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil {
		appErr, _ = err.(*AppError)
	}
	return appErr, appErr != nil
}
