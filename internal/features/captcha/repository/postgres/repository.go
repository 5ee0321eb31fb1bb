package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository"
)

type recordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) repository.RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) Get(ctx context.Context, userID int64) (*models.UserCaptchaRecord, error) {
	query := `
		SELECT id, user_id, captcha_completed, captcha_completed_at,
		       first_participation_at, last_participation_at,
		       total_participations, total_wins
		FROM user_captcha_records
		WHERE user_id = $1`

	record := &models.UserCaptchaRecord{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&record.ID,
		&record.UserID,
		&record.CaptchaCompleted,
		&record.CaptchaCompletedAt,
		&record.FirstParticipationAt,
		&record.LastParticipationAt,
		&record.TotalParticipations,
		&record.TotalWins,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get captcha record: %w", err)
	}

	return record, nil
}

// MarkVerified relies on the upsert to stay monotonic: COALESCE keeps the
// original completion timestamp no matter how many times this runs.
func (r *recordRepository) MarkVerified(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO user_captcha_records (user_id, captcha_completed, captcha_completed_at)
		VALUES ($1, TRUE, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			captcha_completed = TRUE,
			captcha_completed_at = COALESCE(user_captcha_records.captcha_completed_at, EXCLUDED.captcha_completed_at)`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

func (r *recordRepository) IncrementParticipations(ctx context.Context, userID int64) error {
	query := `
		INSERT INTO user_captcha_records (user_id, first_participation_at, last_participation_at, total_participations)
		VALUES ($1, NOW(), NOW(), 1)
		ON CONFLICT (user_id) DO UPDATE SET
			total_participations = user_captcha_records.total_participations + 1,
			first_participation_at = COALESCE(user_captcha_records.first_participation_at, EXCLUDED.first_participation_at),
			last_participation_at = EXCLUDED.last_participation_at`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to increment participations: %w", err)
	}
	return nil
}
