package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/azatarm-prog/telegive-participant/internal/common/logger"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/generator"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository"
)

// ErrAlreadyVerified is returned when a session is requested for a user the
// ledger already records as verified. Verified users never see a captcha
// again, for any giveaway.
var ErrAlreadyVerified = errors.New("user already completed captcha")

type Service struct {
	sessions       repository.SessionRepository
	records        repository.RecordRepository
	generator      *generator.Generator
	maxAttempts    int
	sessionTimeout time.Duration
}

func New(
	sessions repository.SessionRepository,
	records repository.RecordRepository,
	gen *generator.Generator,
	maxAttempts int,
	sessionTimeout time.Duration,
) *Service {
	return &Service{
		sessions:       sessions,
		records:        records,
		generator:      gen,
		maxAttempts:    maxAttempts,
		sessionTimeout: sessionTimeout,
	}
}

// StartSession creates a fresh verification session for the pair,
// superseding any previous one. Users the ledger already records as
// verified get ErrAlreadyVerified instead of a session.
func (s *Service) StartSession(ctx context.Context, userID, giveawayID int64) (*models.CaptchaSession, error) {
	record, err := s.records.Get(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check verification ledger: %w", err)
	}
	if record != nil && record.CaptchaCompleted {
		return nil, ErrAlreadyVerified
	}

	question, answer, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	session := &models.CaptchaSession{
		Token:       token,
		UserID:      userID,
		GiveawayID:  giveawayID,
		Question:    question,
		Answer:      answer,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.sessionTimeout),
	}

	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	logger.Debug().
		Int64("user_id", userID).
		Int64("giveaway_id", giveawayID).
		Msg("captcha session started")

	return session, nil
}

// SubmitAnswer runs one attempt against the session. A correct answer marks
// the user verified in the global ledger; a wrong answer with attempts left
// comes back with a replacement question generated up front, so the store
// can swap it in atomically with the attempt itself.
func (s *Service) SubmitAnswer(ctx context.Context, token, answer string) (*models.SubmitResult, error) {
	parsed, ok := generator.ParseAnswer(answer)
	if !ok {
		// Non-numeric input counts as a wrong answer, not a validation
		// error, so it still burns an attempt. Generated answers are
		// never negative, so -1 can never match.
		parsed = -1
	}

	question, correct, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate replacement challenge: %w", err)
	}
	replacement := models.Challenge{Question: question, Answer: correct}

	result, err := s.sessions.Submit(ctx, token, parsed, replacement, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to submit answer: %w", err)
	}

	if result.Outcome == models.OutcomeCorrect {
		if err := s.records.MarkVerified(ctx, result.UserID); err != nil {
			return nil, fmt.Errorf("failed to record verification: %w", err)
		}
		logger.Info().
			Int64("user_id", result.UserID).
			Int64("giveaway_id", result.GiveawayID).
			Msg("user passed captcha")
	}

	return result, nil
}

// Status reports the user's ledger entry. Users with no entry yet read as
// an all-zero record; reads never create rows.
func (s *Service) Status(ctx context.Context, userID int64) (*models.UserCaptchaRecord, error) {
	record, err := s.records.Get(ctx, userID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return models.EmptyRecord(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get captcha status: %w", err)
	}
	return record, nil
}

// GetSession exposes a session for status reads; expired sessions are
// reported as-is so callers can distinguish expiry from absence.
func (s *Service) GetSession(ctx context.Context, token string) (*models.CaptchaSession, error) {
	return s.sessions.GetByToken(ctx, token)
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
