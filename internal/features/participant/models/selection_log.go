package models

import "time"

// SelectionMethodCryptographic is the only method currently recorded.
// Winners are drawn with an unbiased crypto/rand shuffle.
const SelectionMethodCryptographic = "cryptographic_random"

// WinnerSelectionLog is the immutable audit record of a giveaway's winner
// draw. At most one exists per giveaway, enforced by the datastore, which
// is what makes a selection final.
type WinnerSelectionLog struct {
	ID                   int64     `json:"id"`
	GiveawayID           int64     `json:"giveaway_id"`
	TotalEligible        int       `json:"total_eligible"`
	WinnerCountRequested int       `json:"winner_count_requested"`
	WinnerCountSelected  int       `json:"winner_count_selected"`
	SelectionMethod      string    `json:"selection_method"`
	SelectedUserIDs      []int64   `json:"selected_user_ids"`
	SelectionTimestamp   time.Time `json:"selection_timestamp"`
}

// SelectionResult is what the engine returns to callers: the chosen
// participants with display data, plus the audit log entry.
type SelectionResult struct {
	Winners []*Participant      `json:"winners"`
	Log     *WinnerSelectionLog `json:"log"`
}
