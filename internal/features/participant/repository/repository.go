package repository

import (
	"context"
	"errors"
	"time"

	"github.com/azatarm-prog/telegive-participant/internal/features/participant/models"
)

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrLogNotFound         = errors.New("winner selection log not found")

	// ErrSelectionExists surfaces the unique-constraint claim on the
	// selection log: some other transaction already decided this giveaway.
	ErrSelectionExists = errors.New("winner selection already recorded")
)

// Tx is a unit of work over the participant tables. The winner draw runs
// entirely inside one Tx so it commits atomically or not at all.
type Tx interface {
	Commit() error
	Rollback() error
}

type Repository interface {
	// Create inserts the registration if the (giveaway, user) pair is new.
	// When the pair already exists it returns the existing row with
	// created=false; it never modifies it.
	Create(ctx context.Context, participant *models.Participant) (*models.Participant, bool, error)

	GetByPair(ctx context.Context, giveawayID, userID int64) (*models.Participant, error)

	// List returns registrations ordered by participation time, oldest
	// first, so pagination is stable.
	List(ctx context.Context, giveawayID int64, offset, limit int) ([]*models.Participant, error)

	Count(ctx context.Context, giveawayID int64) (int, error)

	// EligibleCount counts registrations that would enter a draw right now:
	// captcha completed, subscription verified, not yet a winner.
	EligibleCount(ctx context.Context, giveawayID int64) (int, error)

	Stats(ctx context.Context, giveawayID int64) (*models.Stats, error)

	// ListByUser returns the user's most recent registrations across all
	// giveaways, newest first.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Participant, error)

	Winners(ctx context.Context, giveawayID int64) ([]*models.Participant, error)

	HasSelectionLog(ctx context.Context, giveawayID int64) (bool, error)

	GetSelectionLog(ctx context.Context, giveawayID int64) (*models.WinnerSelectionLog, error)

	BeginTx(ctx context.Context) (Tx, error)

	// EligibleTx loads and locks the eligible pool inside tx: captcha
	// completed and subscription verified. The row locks hold the pool
	// stable while winners are marked.
	EligibleTx(ctx context.Context, tx Tx, giveawayID int64) ([]*models.Participant, error)

	// MarkWinnersTx flags the given users as winners with one shared
	// timestamp. Rows already marked are left untouched.
	MarkWinnersTx(ctx context.Context, tx Tx, giveawayID int64, userIDs []int64, selectedAt time.Time) error

	// IncrementWinCountsTx bumps the global ledger win counter for each
	// winner, creating ledger rows as needed.
	IncrementWinCountsTx(ctx context.Context, tx Tx, userIDs []int64) error

	// InsertSelectionLogTx writes the audit record. A duplicate giveaway
	// returns ErrSelectionExists, which means another transaction won the
	// race to decide.
	InsertSelectionLogTx(ctx context.Context, tx Tx, log *models.WinnerSelectionLog) error
}
