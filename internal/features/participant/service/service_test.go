package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	captchamodels "github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	captcharepo "github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository"
	captchaservice "github.com/azatarm-prog/telegive-participant/internal/features/captcha/service"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/participant/repository"
	"github.com/azatarm-prog/telegive-participant/internal/platform/telegive"
)

// memParticipantRepo keeps the store's transactional behavior: winner
// marks buffer inside a tx and apply on commit, while the selection log
// slot is claimed up front the way a unique index serializes inserts.
type memParticipantRepo struct {
	mu           sync.Mutex
	nextID       int64
	participants map[string]*models.Participant
	logs         map[int64]*models.WinnerSelectionLog
	claimed      map[int64]bool
	winCounts    map[int64]int
}

func newMemParticipantRepo() *memParticipantRepo {
	return &memParticipantRepo{
		nextID:       1,
		participants: make(map[string]*models.Participant),
		logs:         make(map[int64]*models.WinnerSelectionLog),
		claimed:      make(map[int64]bool),
		winCounts:    make(map[int64]int),
	}
}

func key(giveawayID, userID int64) string {
	return fmt.Sprintf("%d:%d", giveawayID, userID)
}

func (r *memParticipantRepo) Create(_ context.Context, p *models.Participant) (*models.Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(p.GiveawayID, p.UserID)
	if existing, ok := r.participants[k]; ok {
		clone := *existing
		return &clone, false, nil
	}

	clone := *p
	clone.ID = r.nextID
	r.nextID++
	clone.ParticipatedAt = time.Now().UTC()
	r.participants[k] = &clone

	result := clone
	return &result, true, nil
}

func (r *memParticipantRepo) GetByPair(_ context.Context, giveawayID, userID int64) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[key(giveawayID, userID)]
	if !ok {
		return nil, repository.ErrParticipantNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *memParticipantRepo) List(_ context.Context, giveawayID int64, offset, limit int) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.byGiveawayLocked(giveawayID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memParticipantRepo) Count(_ context.Context, giveawayID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byGiveawayLocked(giveawayID)), nil
}

func (r *memParticipantRepo) EligibleCount(_ context.Context, giveawayID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, p := range r.byGiveawayLocked(giveawayID) {
		if p.CaptchaCompleted && p.SubscriptionVerified && !p.IsWinner {
			count++
		}
	}
	return count, nil
}

func (r *memParticipantRepo) Stats(_ context.Context, giveawayID int64) (*models.Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.Stats{GiveawayID: giveawayID}
	for _, p := range r.byGiveawayLocked(giveawayID) {
		stats.TotalParticipants++
		if p.CaptchaCompleted {
			stats.CaptchaCompleted++
		}
		if p.SubscriptionVerified {
			stats.SubscriptionVerified++
		}
		if p.IsWinner {
			stats.Winners++
		}
	}
	return stats, nil
}

func (r *memParticipantRepo) ListByUser(_ context.Context, userID int64, limit int) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Participant
	for _, p := range r.participants {
		if p.UserID == userID {
			clone := *p
			out = append(out, &clone)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memParticipantRepo) Winners(_ context.Context, giveawayID int64) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Participant
	for _, p := range r.byGiveawayLocked(giveawayID) {
		if p.IsWinner {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memParticipantRepo) HasSelectionLog(_ context.Context, giveawayID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.logs[giveawayID]
	return ok, nil
}

func (r *memParticipantRepo) GetSelectionLog(_ context.Context, giveawayID int64) (*models.WinnerSelectionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log, ok := r.logs[giveawayID]
	if !ok {
		return nil, repository.ErrLogNotFound
	}
	clone := *log
	return &clone, nil
}

func (r *memParticipantRepo) byGiveawayLocked(giveawayID int64) []*models.Participant {
	var out []*models.Participant
	for _, p := range r.participants {
		if p.GiveawayID == giveawayID {
			out = append(out, p)
		}
	}
	return out
}

type memTx struct {
	repo      *memParticipantRepo
	pending   []func()
	claimedID int64
	done      bool
}

func (r *memParticipantRepo) BeginTx(_ context.Context) (repository.Tx, error) {
	return &memTx{repo: r}, nil
}

func (t *memTx) Commit() error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, apply := range t.pending {
		apply()
	}
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if !t.done && t.claimedID != 0 {
		delete(t.repo.claimed, t.claimedID)
	}
	t.done = true
	return nil
}

func (r *memParticipantRepo) EligibleTx(_ context.Context, _ repository.Tx, giveawayID int64) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.Participant
	for _, p := range r.byGiveawayLocked(giveawayID) {
		if p.CaptchaCompleted && p.SubscriptionVerified && !p.IsWinner {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memParticipantRepo) MarkWinnersTx(_ context.Context, tx repository.Tx, giveawayID int64, userIDs []int64, selectedAt time.Time) error {
	t := tx.(*memTx)
	ids := append([]int64(nil), userIDs...)
	t.pending = append(t.pending, func() {
		for _, id := range ids {
			if p, ok := r.participants[key(giveawayID, id)]; ok && !p.IsWinner {
				p.IsWinner = true
				at := selectedAt
				p.WinnerSelectedAt = &at
			}
		}
	})
	return nil
}

func (r *memParticipantRepo) IncrementWinCountsTx(_ context.Context, tx repository.Tx, userIDs []int64) error {
	t := tx.(*memTx)
	ids := append([]int64(nil), userIDs...)
	t.pending = append(t.pending, func() {
		for _, id := range ids {
			r.winCounts[id]++
		}
	})
	return nil
}

func (r *memParticipantRepo) InsertSelectionLogTx(_ context.Context, tx repository.Tx, log *models.WinnerSelectionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logs[log.GiveawayID]; ok {
		return repository.ErrSelectionExists
	}
	if r.claimed[log.GiveawayID] {
		return repository.ErrSelectionExists
	}
	r.claimed[log.GiveawayID] = true

	t := tx.(*memTx)
	t.claimedID = log.GiveawayID
	clone := *log
	t.pending = append(t.pending, func() {
		r.logs[clone.GiveawayID] = &clone
	})
	return nil
}

// fakeRecords implements the ledger for participation counters.
type fakeRecords struct {
	mu             sync.Mutex
	verified       map[int64]bool
	participations map[int64]int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		verified:       make(map[int64]bool),
		participations: make(map[int64]int),
	}
}

func (f *fakeRecords) Get(_ context.Context, userID int64) (*captchamodels.UserCaptchaRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.verified[userID] && f.participations[userID] == 0 {
		return nil, captcharepo.ErrRecordNotFound
	}
	return &captchamodels.UserCaptchaRecord{
		UserID:              userID,
		CaptchaCompleted:    f.verified[userID],
		TotalParticipations: f.participations[userID],
	}, nil
}

func (f *fakeRecords) MarkVerified(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified[userID] = true
	return nil
}

func (f *fakeRecords) IncrementParticipations(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.participations[userID]++
	return nil
}

// fakeVerifier stands in for the captcha service.
type fakeVerifier struct {
	records *fakeRecords
}

func (f *fakeVerifier) StartSession(_ context.Context, userID, giveawayID int64) (*captchamodels.CaptchaSession, error) {
	f.records.mu.Lock()
	verified := f.records.verified[userID]
	f.records.mu.Unlock()
	if verified {
		return nil, captchaservice.ErrAlreadyVerified
	}
	return &captchamodels.CaptchaSession{
		Token:       fmt.Sprintf("token-%d-%d", userID, giveawayID),
		UserID:      userID,
		GiveawayID:  giveawayID,
		Question:    "What is 2 + 2?",
		MaxAttempts: 3,
	}, nil
}

func (f *fakeVerifier) Status(ctx context.Context, userID int64) (*captchamodels.UserCaptchaRecord, error) {
	record, err := f.records.Get(ctx, userID)
	if errors.Is(err, captcharepo.ErrRecordNotFound) {
		return captchamodels.EmptyRecord(userID), nil
	}
	return record, err
}

type fakeSubscription struct {
	subscribed bool
	err        error
}

func (f *fakeSubscription) VerifySubscription(_ context.Context, _, _ int64) (*telegive.SubscriptionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &telegive.SubscriptionResult{IsSubscribed: f.subscribed}, nil
}

type fixture struct {
	svc     *Service
	repo    *memParticipantRepo
	records *fakeRecords
	subs    *fakeSubscription
}

func newFixture() *fixture {
	repo := newMemParticipantRepo()
	records := newFakeRecords()
	subs := &fakeSubscription{subscribed: true}
	svc := New(repo, records, &fakeVerifier{records: records}, subs)
	return &fixture{svc: svc, repo: repo, records: records, subs: subs}
}

func (f *fixture) registerVerified(t *testing.T, giveawayID, userID int64) *models.Participant {
	t.Helper()
	require.NoError(t, f.records.MarkVerified(context.Background(), userID))
	result, err := f.svc.Register(context.Background(), RegisterRequest{GiveawayID: giveawayID, UserID: userID})
	require.NoError(t, err)
	require.Equal(t, models.StatusRegistered, result.Status)
	return result.Participant
}

func TestRegisterUnverifiedUserGetsCaptcha(t *testing.T) {
	f := newFixture()

	result, err := f.svc.Register(context.Background(), RegisterRequest{GiveawayID: 1, UserID: 100})
	require.NoError(t, err)

	assert.Equal(t, models.StatusVerificationRequired, result.Status)
	require.NotNil(t, result.Session)
	assert.Nil(t, result.Participant)

	_, err = f.repo.GetByPair(context.Background(), 1, 100)
	assert.ErrorIs(t, err, repository.ErrParticipantNotFound, "no registration until captcha passes")
	assert.Zero(t, f.records.participations[100])
}

func TestRegisterVerifiedUser(t *testing.T) {
	f := newFixture()

	participant := f.registerVerified(t, 1, 100)

	assert.True(t, participant.CaptchaCompleted)
	assert.True(t, participant.SubscriptionVerified)
	assert.NotNil(t, participant.SubscriptionVerifiedAt)
	assert.Equal(t, 1, f.records.participations[100])
}

func TestRegisterIsIdempotentPerPair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.registerVerified(t, 1, 100)

	second, err := f.svc.Register(ctx, RegisterRequest{GiveawayID: 1, UserID: 100})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAlreadyRegistered, second.Status)
	assert.Equal(t, first.ID, second.Participant.ID)
	assert.Equal(t, 1, f.records.participations[100], "repeat attempts do not bump the counter")

	// Same user, different giveaway is a fresh registration.
	other, err := f.svc.Register(ctx, RegisterRequest{GiveawayID: 2, UserID: 100})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, other.Status)
	assert.Equal(t, 2, f.records.participations[100])
}

func TestRegisterDegradesOnSubscriptionFailure(t *testing.T) {
	f := newFixture()
	f.subs.err = errors.New("channel service down")

	require.NoError(t, f.records.MarkVerified(context.Background(), 100))
	result, err := f.svc.Register(context.Background(), RegisterRequest{GiveawayID: 1, UserID: 100})
	require.NoError(t, err)

	assert.Equal(t, models.StatusRegistered, result.Status)
	assert.False(t, result.Participant.SubscriptionVerified)
	assert.Nil(t, result.Participant.SubscriptionVerifiedAt)
}

func TestSelectWinnersDrawsRequestedCount(t *testing.T) {
	f := newFixture()
	for userID := int64(100); userID < 110; userID++ {
		f.registerVerified(t, 1, userID)
	}

	result, err := f.svc.SelectWinners(context.Background(), 1, 4)
	require.NoError(t, err)

	assert.Len(t, result.Winners, 4)
	assert.Equal(t, 10, result.Log.TotalEligible)
	assert.Equal(t, 4, result.Log.WinnerCountRequested)
	assert.Equal(t, 4, result.Log.WinnerCountSelected)
	assert.Equal(t, models.SelectionMethodCryptographic, result.Log.SelectionMethod)
	assert.Len(t, result.Log.SelectedUserIDs, 4)

	seen := map[int64]bool{}
	for _, w := range result.Winners {
		require.False(t, seen[w.UserID], "winners must be distinct")
		seen[w.UserID] = true
		assert.True(t, w.IsWinner)
		require.NotNil(t, w.WinnerSelectedAt)
		assert.Equal(t, result.Log.SelectionTimestamp, *w.WinnerSelectedAt, "all winners share one timestamp")
		assert.Equal(t, 1, f.repo.winCounts[w.UserID])
	}

	stats, err := f.svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Winners)
}

func TestSelectWinnersCapsAtPoolSize(t *testing.T) {
	f := newFixture()
	for userID := int64(100); userID < 104; userID++ {
		f.registerVerified(t, 1, userID)
	}

	result, err := f.svc.SelectWinners(context.Background(), 1, 10)
	require.NoError(t, err)

	assert.Len(t, result.Winners, 4, "cannot draw more winners than eligible participants")
	assert.Equal(t, 10, result.Log.WinnerCountRequested)
	assert.Equal(t, 4, result.Log.WinnerCountSelected)
}

func TestSelectWinnersIsFinal(t *testing.T) {
	f := newFixture()
	for userID := int64(100); userID < 105; userID++ {
		f.registerVerified(t, 1, userID)
	}

	_, err := f.svc.SelectWinners(context.Background(), 1, 2)
	require.NoError(t, err)

	_, err = f.svc.SelectWinners(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrSelectionDone)
}

func TestConcurrentSelectionDecidesExactlyOnce(t *testing.T) {
	f := newFixture()
	for userID := int64(100); userID < 120; userID++ {
		f.registerVerified(t, 1, userID)
	}

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SelectWinners(context.Background(), 1, 3)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrSelectionDone):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one draw may commit")
	assert.Equal(t, attempts-1, conflicts)

	winners, err := f.svc.Winners(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, winners.Winners, 3)
}

func TestSelectWinnersWithEmptyPoolWritesNothing(t *testing.T) {
	f := newFixture()

	// Registered but unsubscribed participants are not eligible.
	f.subs.subscribed = false
	require.NoError(t, f.records.MarkVerified(context.Background(), 100))
	_, err := f.svc.Register(context.Background(), RegisterRequest{GiveawayID: 1, UserID: 100})
	require.NoError(t, err)

	_, err = f.svc.SelectWinners(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrNoEligibleParticipants)

	has, err := f.repo.HasSelectionLog(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, has, "a failed draw leaves no audit record")

	// A later attempt with an eligible pool still succeeds.
	f.subs.subscribed = true
	f.registerVerified(t, 1, 101)
	result, err := f.svc.SelectWinners(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Len(t, result.Winners, 1)
}

func TestSelectWinnersRejectsNonPositiveCount(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SelectWinners(context.Background(), 1, 0)
	assert.Error(t, err)
}

func TestWinnersBeforeSelection(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Winners(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrLogNotFound)
}

func TestHistoryCombinesLedgerAndRegistrations(t *testing.T) {
	f := newFixture()
	f.registerVerified(t, 1, 100)
	f.registerVerified(t, 2, 100)

	record, participations, err := f.svc.History(context.Background(), 100, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, record.TotalParticipations)
	assert.Len(t, participations, 2)

	// Unknown users read as a zero record with no history.
	record, participations, err = f.svc.History(context.Background(), 999, 10)
	require.NoError(t, err)
	assert.False(t, record.CaptchaCompleted)
	assert.Empty(t, participations)
}

// Full lifecycle: unverified user is challenged, becomes verified, joins a
// second giveaway without a challenge, and the draw settles both the
// registry and the ledger.
func TestParticipationLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// First contact: captcha required, nothing recorded.
	result, err := f.svc.Register(ctx, RegisterRequest{GiveawayID: 1, UserID: 100})
	require.NoError(t, err)
	require.Equal(t, models.StatusVerificationRequired, result.Status)

	// Solving the captcha flips the global flag; the retry registers.
	require.NoError(t, f.records.MarkVerified(ctx, 100))
	result, err = f.svc.Register(ctx, RegisterRequest{GiveawayID: 1, UserID: 100})
	require.NoError(t, err)
	require.Equal(t, models.StatusRegistered, result.Status)

	// Verification is global: a second giveaway needs no captcha.
	result, err = f.svc.Register(ctx, RegisterRequest{GiveawayID: 2, UserID: 100})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistered, result.Status)

	f.registerVerified(t, 1, 101)
	f.registerVerified(t, 1, 102)

	eligible, err := f.svc.EligibleCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, eligible)

	selection, err := f.svc.SelectWinners(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, selection.Winners, 2)

	// Winners leave the eligible pool and land in the audit projection.
	eligible, err = f.svc.EligibleCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, eligible)

	recorded, err := f.svc.Winners(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, selection.Log.SelectedUserIDs, recorded.Log.SelectedUserIDs)
	for _, userID := range selection.Log.SelectedUserIDs {
		assert.Equal(t, 1, f.repo.winCounts[userID])
	}

	// Giveaway 2 is untouched by giveaway 1's draw.
	_, err = f.svc.Winners(ctx, 2)
	assert.ErrorIs(t, err, repository.ErrLogNotFound)
}
