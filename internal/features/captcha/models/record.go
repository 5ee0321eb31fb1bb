package models

import "time"

// UserCaptchaRecord is the durable, platform-wide ledger entry for a user:
// whether they ever solved the captcha, plus cumulative participation and
// win counters. Created lazily; never deleted. Once CaptchaCompleted is
// true it never reverts and CaptchaCompletedAt never changes.
type UserCaptchaRecord struct {
	ID                   int64      `json:"id"`
	UserID               int64      `json:"user_id"`
	CaptchaCompleted     bool       `json:"captcha_completed"`
	CaptchaCompletedAt   *time.Time `json:"captcha_completed_at"`
	FirstParticipationAt *time.Time `json:"first_participation_at"`
	LastParticipationAt  *time.Time `json:"last_participation_at"`
	TotalParticipations  int        `json:"total_participations"`
	TotalWins            int        `json:"total_wins"`
}

// EmptyRecord is the zero-valued view returned when no ledger row exists.
// Reads never create rows.
func EmptyRecord(userID int64) *UserCaptchaRecord {
	return &UserCaptchaRecord{UserID: userID}
}
