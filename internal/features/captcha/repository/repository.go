package repository

import (
	"context"
	"errors"
	"time"

	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
)

var (
	ErrSessionNotFound = errors.New("captcha session not found")
	ErrRecordNotFound  = errors.New("user captcha record not found")
)

// SessionRepository stores short-lived verification sessions. The Submit
// transition must be atomic per token: of two concurrent submissions,
// exactly one observes the deciding state change.
type SessionRepository interface {
	// Upsert saves the session and invalidates any prior session for the
	// same (user, giveaway) pair.
	Upsert(ctx context.Context, session *models.CaptchaSession) error

	// GetByToken returns ErrSessionNotFound for unknown or expired tokens.
	GetByToken(ctx context.Context, token string) (*models.CaptchaSession, error)

	// Submit applies one answer attempt. On a wrong answer with attempts
	// remaining, replacement becomes the session's new challenge. Exhausted
	// sessions are kept (until expiry) so late submissions still report
	// exhaustion rather than vanishing.
	Submit(ctx context.Context, token string, answer int, replacement models.Challenge, now time.Time) (*models.SubmitResult, error)
}

// RecordRepository is the global verification ledger. All mutations must be
// atomic at the datastore: increments may not lose updates under
// concurrency, and the verified flag is monotonic.
type RecordRepository interface {
	// Get returns ErrRecordNotFound when the user has no row yet; it never
	// creates one.
	Get(ctx context.Context, userID int64) (*models.UserCaptchaRecord, error)

	// MarkVerified is idempotent: the first call sets the completion
	// timestamp, later calls leave it untouched.
	MarkVerified(ctx context.Context, userID int64) error

	// IncrementParticipations bumps the counter and stamps first/last
	// participation times, creating the row if needed.
	IncrementParticipations(ctx context.Context, userID int64) error
}
