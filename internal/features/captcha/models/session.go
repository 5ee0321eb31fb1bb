package models

import "time"

// CaptchaSession is one in-progress verification attempt for a
// (user, giveaway) pair. At most one active session exists per pair;
// starting a new one supersedes the previous session.
type CaptchaSession struct {
	Token       string    `json:"session_token"`
	UserID      int64     `json:"user_id"`
	GiveawayID  int64     `json:"giveaway_id"`
	Question    string    `json:"question"`
	Answer      int       `json:"-"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AttemptsRemaining never goes below zero.
func (s *CaptchaSession) AttemptsRemaining() int {
	remaining := s.MaxAttempts - s.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (s *CaptchaSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SubmitOutcome classifies the result of answering a session.
type SubmitOutcome string

const (
	OutcomeCorrect           SubmitOutcome = "correct"
	OutcomeIncorrect         SubmitOutcome = "incorrect"
	OutcomeExpired           SubmitOutcome = "expired"
	OutcomeAttemptsExhausted SubmitOutcome = "attempts_exhausted"
	OutcomeNotFound          SubmitOutcome = "not_found"
)

// SubmitResult is what the session store reports after an atomic submit
// transition. On OutcomeIncorrect, Question carries the replacement
// challenge issued in the same transition.
type SubmitResult struct {
	Outcome           SubmitOutcome `json:"outcome"`
	UserID            int64         `json:"user_id,omitempty"`
	GiveawayID        int64         `json:"giveaway_id,omitempty"`
	Question          string        `json:"question,omitempty"`
	AttemptsRemaining int           `json:"attempts_remaining"`
}

// Challenge is a freshly generated question/answer pair, used to replace
// the one on a session after a wrong answer.
type Challenge struct {
	Question string
	Answer   int
}
