package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/azatarm-prog/telegive-participant/internal/features/participant/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/repository"
)

const pgUniqueViolation = "23505"

const participantColumns = `
	id, giveaway_id, user_id,
	COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	participated_at, captcha_completed,
	subscription_verified, subscription_verified_at,
	is_winner, winner_selected_at`

type participantRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) repository.Repository {
	return &participantRepository{db: db}
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Commit() error   { return t.tx.Commit() }
func (t *pgTx) Rollback() error { return t.tx.Rollback() }

func unwrapTx(tx repository.Tx) (*sql.Tx, error) {
	wrapped, ok := tx.(*pgTx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return wrapped.tx, nil
}

func (r *participantRepository) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (r *participantRepository) Create(ctx context.Context, participant *models.Participant) (*models.Participant, bool, error) {
	query := `
		INSERT INTO participants (
			giveaway_id, user_id, username, first_name, last_name,
			captcha_completed, subscription_verified, subscription_verified_at
		)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8)
		ON CONFLICT ON CONSTRAINT uq_giveaway_user DO NOTHING
		RETURNING ` + participantColumns

	row := r.db.QueryRowContext(ctx, query,
		participant.GiveawayID,
		participant.UserID,
		participant.Username,
		participant.FirstName,
		participant.LastName,
		participant.CaptchaCompleted,
		participant.SubscriptionVerified,
		participant.SubscriptionVerifiedAt,
	)

	created, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race or repeat call: hand back the existing row.
		existing, err := r.GetByPair(ctx, participant.GiveawayID, participant.UserID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create participant: %w", err)
	}

	return created, true, nil
}

func (r *participantRepository) GetByPair(ctx context.Context, giveawayID, userID int64) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE giveaway_id = $1 AND user_id = $2`

	participant, err := scanParticipant(r.db.QueryRowContext(ctx, query, giveawayID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return participant, nil
}

func (r *participantRepository) List(ctx context.Context, giveawayID int64, offset, limit int) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE giveaway_id = $1
		ORDER BY participated_at ASC, id ASC
		OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, giveawayID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	return collectParticipants(rows)
}

func (r *participantRepository) Count(ctx context.Context, giveawayID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE giveaway_id = $1`, giveawayID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *participantRepository) EligibleCount(ctx context.Context, giveawayID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants
		 WHERE giveaway_id = $1
		   AND captcha_completed = TRUE
		   AND subscription_verified = TRUE
		   AND is_winner = FALSE`, giveawayID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count eligible participants: %w", err)
	}
	return count, nil
}

func (r *participantRepository) Stats(ctx context.Context, giveawayID int64) (*models.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE captcha_completed),
			COUNT(*) FILTER (WHERE subscription_verified),
			COUNT(*) FILTER (WHERE is_winner)
		FROM participants
		WHERE giveaway_id = $1`

	stats := &models.Stats{GiveawayID: giveawayID}
	err := r.db.QueryRowContext(ctx, query, giveawayID).Scan(
		&stats.TotalParticipants,
		&stats.CaptchaCompleted,
		&stats.SubscriptionVerified,
		&stats.Winners,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get participant stats: %w", err)
	}
	return stats, nil
}

func (r *participantRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE user_id = $1
		ORDER BY participated_at DESC, id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user participations: %w", err)
	}
	defer rows.Close()

	return collectParticipants(rows)
}

func (r *participantRepository) Winners(ctx context.Context, giveawayID int64) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE giveaway_id = $1 AND is_winner = TRUE
		ORDER BY user_id ASC`

	rows, err := r.db.QueryContext(ctx, query, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list winners: %w", err)
	}
	defer rows.Close()

	return collectParticipants(rows)
}

func (r *participantRepository) HasSelectionLog(ctx context.Context, giveawayID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM winner_selection_log WHERE giveaway_id = $1)`, giveawayID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check selection log: %w", err)
	}
	return exists, nil
}

func (r *participantRepository) GetSelectionLog(ctx context.Context, giveawayID int64) (*models.WinnerSelectionLog, error) {
	query := `
		SELECT id, giveaway_id, total_eligible, winner_count_requested,
		       winner_count_selected, selection_method, selected_user_ids,
		       selection_timestamp
		FROM winner_selection_log
		WHERE giveaway_id = $1`

	log := &models.WinnerSelectionLog{}
	var selected pq.Int64Array
	err := r.db.QueryRowContext(ctx, query, giveawayID).Scan(
		&log.ID,
		&log.GiveawayID,
		&log.TotalEligible,
		&log.WinnerCountRequested,
		&log.WinnerCountSelected,
		&log.SelectionMethod,
		&selected,
		&log.SelectionTimestamp,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selection log: %w", err)
	}

	log.SelectedUserIDs = []int64(selected)
	return log, nil
}

func (r *participantRepository) EligibleTx(ctx context.Context, tx repository.Tx, giveawayID int64) ([]*models.Participant, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + participantColumns + `
		FROM participants
		WHERE giveaway_id = $1
		  AND captcha_completed = TRUE
		  AND subscription_verified = TRUE
		  AND is_winner = FALSE
		ORDER BY id ASC
		FOR UPDATE`

	rows, err := sqlTx.QueryContext(ctx, query, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock eligible participants: %w", err)
	}
	defer rows.Close()

	return collectParticipants(rows)
}

func (r *participantRepository) MarkWinnersTx(ctx context.Context, tx repository.Tx, giveawayID int64, userIDs []int64, selectedAt time.Time) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE participants
		SET is_winner = TRUE, winner_selected_at = $3
		WHERE giveaway_id = $1 AND user_id = ANY($2) AND is_winner = FALSE`

	if _, err := sqlTx.ExecContext(ctx, query, giveawayID, pq.Array(userIDs), selectedAt); err != nil {
		return fmt.Errorf("failed to mark winners: %w", err)
	}
	return nil
}

func (r *participantRepository) IncrementWinCountsTx(ctx context.Context, tx repository.Tx, userIDs []int64) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_captcha_records (user_id, total_wins)
		SELECT unnest($1::BIGINT[]), 1
		ON CONFLICT (user_id) DO UPDATE SET
			total_wins = user_captcha_records.total_wins + 1`

	if _, err := sqlTx.ExecContext(ctx, query, pq.Array(userIDs)); err != nil {
		return fmt.Errorf("failed to increment win counters: %w", err)
	}
	return nil
}

func (r *participantRepository) InsertSelectionLogTx(ctx context.Context, tx repository.Tx, log *models.WinnerSelectionLog) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO winner_selection_log (
			giveaway_id, total_eligible, winner_count_requested,
			winner_count_selected, selection_method, selected_user_ids,
			selection_timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = sqlTx.QueryRowContext(ctx, query,
		log.GiveawayID,
		log.TotalEligible,
		log.WinnerCountRequested,
		log.WinnerCountSelected,
		log.SelectionMethod,
		pq.Array(log.SelectedUserIDs),
		log.SelectionTimestamp,
	).Scan(&log.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return repository.ErrSelectionExists
		}
		return fmt.Errorf("failed to insert selection log: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	p := &models.Participant{}
	err := row.Scan(
		&p.ID,
		&p.GiveawayID,
		&p.UserID,
		&p.Username,
		&p.FirstName,
		&p.LastName,
		&p.ParticipatedAt,
		&p.CaptchaCompleted,
		&p.SubscriptionVerified,
		&p.SubscriptionVerifiedAt,
		&p.IsWinner,
		&p.WinnerSelectedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func collectParticipants(rows *sql.Rows) ([]*models.Participant, error) {
	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read participants: %w", err)
	}
	return participants, nil
}
