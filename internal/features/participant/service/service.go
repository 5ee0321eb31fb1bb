package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
	captchamodels "github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	captcharepo "github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository"
	captchaservice "github.com/azatarm-prog/telegive-participant/internal/features/captcha/service"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/repository"
	"github.com/azatarm-prog/telegive-participant/internal/platform/telegive"
	"github.com/azatarm-prog/telegive-participant/internal/utils/random"
)

var (
	// ErrSelectionDone means winners for the giveaway were already drawn.
	// Selection is final; there is no re-draw.
	ErrSelectionDone = errors.New("winners already selected for giveaway")

	// ErrNoEligibleParticipants means the eligible pool was empty, so no
	// selection was recorded and a later attempt may still succeed.
	ErrNoEligibleParticipants = errors.New("no eligible participants")
)

// CaptchaVerifier is the slice of the captcha service registration needs.
type CaptchaVerifier interface {
	StartSession(ctx context.Context, userID, giveawayID int64) (*captchamodels.CaptchaSession, error)
	Status(ctx context.Context, userID int64) (*captchamodels.UserCaptchaRecord, error)
}

type Service struct {
	participants repository.Repository
	records      captcharepo.RecordRepository
	verifier     CaptchaVerifier
	subscription telegive.SubscriptionChecker
}

func New(
	participants repository.Repository,
	records captcharepo.RecordRepository,
	verifier CaptchaVerifier,
	subscription telegive.SubscriptionChecker,
) *Service {
	return &Service{
		participants: participants,
		records:      records,
		verifier:     verifier,
		subscription: subscription,
	}
}

// RegisterRequest carries a registration attempt. Display fields are a
// snapshot for presentation and never affect eligibility.
type RegisterRequest struct {
	GiveawayID int64
	UserID     int64
	Meta       models.DisplayMeta
}

// Register is idempotent per (giveaway, user) pair. Unverified users get a
// captcha session instead of a registration; verified users are inserted
// exactly once no matter how many times or how concurrently this is called.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.RegistrationResult, error) {
	record, err := s.verifier.Status(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to check verification status: %w", err)
	}

	if !record.CaptchaCompleted {
		session, err := s.verifier.StartSession(ctx, req.UserID, req.GiveawayID)
		if err != nil {
			// A concurrent submission may have verified the user between
			// the two reads. Fall through to the verified path.
			if !errors.Is(err, captchaservice.ErrAlreadyVerified) {
				return nil, fmt.Errorf("failed to start captcha session: %w", err)
			}
		} else {
			return &models.RegistrationResult{
				Status:  models.StatusVerificationRequired,
				Session: session,
			}, nil
		}
	}

	subscribed, verifiedAt := s.checkSubscription(ctx, req.UserID, req.GiveawayID)

	participant := &models.Participant{
		GiveawayID:             req.GiveawayID,
		UserID:                 req.UserID,
		Username:               req.Meta.Username,
		FirstName:              req.Meta.FirstName,
		LastName:               req.Meta.LastName,
		CaptchaCompleted:       true,
		SubscriptionVerified:   subscribed,
		SubscriptionVerifiedAt: verifiedAt,
	}

	stored, created, err := s.participants.Create(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("failed to register participant: %w", err)
	}

	if !created {
		return &models.RegistrationResult{
			Status:      models.StatusAlreadyRegistered,
			Participant: stored,
		}, nil
	}

	if err := s.records.IncrementParticipations(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("failed to update participation counters: %w", err)
	}

	logger.Info().
		Int64("giveaway_id", req.GiveawayID).
		Int64("user_id", req.UserID).
		Bool("subscription_verified", subscribed).
		Msg("participant registered")

	return &models.RegistrationResult{
		Status:      models.StatusRegistered,
		Participant: stored,
	}, nil
}

// checkSubscription asks the channel service whether the user follows the
// giveaway's channel. A failed check degrades to unverified rather than
// blocking registration; the flag can be re-checked before selection.
func (s *Service) checkSubscription(ctx context.Context, userID, giveawayID int64) (bool, *time.Time) {
	result, err := s.subscription.VerifySubscription(ctx, userID, giveawayID)
	if err != nil {
		logger.Warn().
			Err(err).
			Int64("user_id", userID).
			Int64("giveaway_id", giveawayID).
			Msg("subscription check failed, registering unverified")
		return false, nil
	}
	if !result.IsSubscribed {
		return false, nil
	}
	now := time.Now().UTC()
	return true, &now
}

func (s *Service) Get(ctx context.Context, giveawayID, userID int64) (*models.Participant, error) {
	return s.participants.GetByPair(ctx, giveawayID, userID)
}

func (s *Service) List(ctx context.Context, giveawayID int64, offset, limit int) ([]*models.Participant, int, error) {
	participants, err := s.participants.List(ctx, giveawayID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.participants.Count(ctx, giveawayID)
	if err != nil {
		return nil, 0, err
	}
	return participants, total, nil
}

func (s *Service) Count(ctx context.Context, giveawayID int64) (int, error) {
	return s.participants.Count(ctx, giveawayID)
}

func (s *Service) EligibleCount(ctx context.Context, giveawayID int64) (int, error) {
	return s.participants.EligibleCount(ctx, giveawayID)
}

func (s *Service) Stats(ctx context.Context, giveawayID int64) (*models.Stats, error) {
	return s.participants.Stats(ctx, giveawayID)
}

// History returns the user's global ledger entry together with their most
// recent registrations.
func (s *Service) History(ctx context.Context, userID int64, limit int) (*captchamodels.UserCaptchaRecord, []*models.Participant, error) {
	record, err := s.records.Get(ctx, userID)
	if errors.Is(err, captcharepo.ErrRecordNotFound) {
		record = captchamodels.EmptyRecord(userID)
	} else if err != nil {
		return nil, nil, err
	}

	participations, err := s.participants.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, nil, err
	}
	return record, participations, nil
}

// Winners returns the recorded draw for a giveaway, or ErrLogNotFound when
// no selection happened yet.
func (s *Service) Winners(ctx context.Context, giveawayID int64) (*models.SelectionResult, error) {
	log, err := s.participants.GetSelectionLog(ctx, giveawayID)
	if err != nil {
		return nil, err
	}
	winners, err := s.participants.Winners(ctx, giveawayID)
	if err != nil {
		return nil, err
	}
	return &models.SelectionResult{Winners: winners, Log: log}, nil
}

// SelectWinners draws up to count winners from the eligible pool with an
// unbiased crypto/rand shuffle. The draw, the winner flags, the ledger win
// counters and the audit log commit in one transaction, and the log's
// unique giveaway constraint guarantees at most one draw ever commits even
// under concurrent calls.
func (s *Service) SelectWinners(ctx context.Context, giveawayID int64, count int) (*models.SelectionResult, error) {
	if count < 1 {
		return nil, fmt.Errorf("winner count must be positive, got %d", count)
	}

	done, err := s.participants.HasSelectionLog(ctx, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior selection: %w", err)
	}
	if done {
		return nil, ErrSelectionDone
	}

	tx, err := s.participants.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	pool, err := s.participants.EligibleTx(ctx, tx, giveawayID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoEligibleParticipants
	}

	winners, err := random.Sample(pool, count)
	if err != nil {
		return nil, fmt.Errorf("failed to sample winners: %w", err)
	}

	selectedAt := time.Now().UTC()
	userIDs := make([]int64, len(winners))
	for i, w := range winners {
		userIDs[i] = w.UserID
		w.IsWinner = true
		w.WinnerSelectedAt = &selectedAt
	}

	if err := s.participants.MarkWinnersTx(ctx, tx, giveawayID, userIDs, selectedAt); err != nil {
		return nil, err
	}
	if err := s.participants.IncrementWinCountsTx(ctx, tx, userIDs); err != nil {
		return nil, err
	}

	log := &models.WinnerSelectionLog{
		GiveawayID:           giveawayID,
		TotalEligible:        len(pool),
		WinnerCountRequested: count,
		WinnerCountSelected:  len(winners),
		SelectionMethod:      models.SelectionMethodCryptographic,
		SelectedUserIDs:      userIDs,
		SelectionTimestamp:   selectedAt,
	}
	if err := s.participants.InsertSelectionLogTx(ctx, tx, log); err != nil {
		if errors.Is(err, repository.ErrSelectionExists) {
			return nil, ErrSelectionDone
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit winner selection: %w", err)
	}

	logger.Info().
		Int64("giveaway_id", giveawayID).
		Int("requested", count).
		Int("selected", len(winners)).
		Int("eligible_pool", len(pool)).
		Msg("winners selected")

	return &models.SelectionResult{Winners: winners, Log: log}, nil
}
