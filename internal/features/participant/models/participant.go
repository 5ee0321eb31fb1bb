package models

import (
	"time"

	captcha "github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
)

// Participant is one (giveaway, user) registration. The pair is unique for
// the lifetime of the giveaway; re-registration attempts are reported, not
// duplicated.
type Participant struct {
	ID                     int64      `json:"id"`
	GiveawayID             int64      `json:"giveaway_id"`
	UserID                 int64      `json:"user_id"`
	Username               string     `json:"username,omitempty"`
	FirstName              string     `json:"first_name,omitempty"`
	LastName               string     `json:"last_name,omitempty"`
	ParticipatedAt         time.Time  `json:"participated_at"`
	CaptchaCompleted       bool       `json:"captcha_completed"`
	SubscriptionVerified   bool       `json:"subscription_verified"`
	SubscriptionVerifiedAt *time.Time `json:"subscription_verified_at,omitempty"`
	IsWinner               bool       `json:"is_winner"`
	WinnerSelectedAt       *time.Time `json:"winner_selected_at,omitempty"`
}

// DisplayMeta is the optional profile snapshot captured at registration
// time. It is presentation data only and never affects eligibility.
type DisplayMeta struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// RegistrationStatus classifies the outcome of a registration attempt.
type RegistrationStatus string

const (
	StatusRegistered           RegistrationStatus = "registered"
	StatusAlreadyRegistered    RegistrationStatus = "already_registered"
	StatusVerificationRequired RegistrationStatus = "verification_required"
)

// RegistrationResult carries either the registered participant or, for
// unverified users, the captcha session they must complete first.
type RegistrationResult struct {
	Status      RegistrationStatus      `json:"status"`
	Participant *Participant            `json:"participant,omitempty"`
	Session     *captcha.CaptchaSession `json:"captcha_session,omitempty"`
}

// Stats aggregates participation counters for one giveaway.
type Stats struct {
	GiveawayID           int64 `json:"giveaway_id"`
	TotalParticipants    int   `json:"total_participants"`
	CaptchaCompleted     int   `json:"captcha_completed"`
	SubscriptionVerified int   `json:"subscription_verified"`
	Winners              int   `json:"winners"`
}
