package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository"
)

const (
	keyPrefixSession = "captcha:session:"
	keyPrefixActive  = "captcha:active:"

	// Sessions outlive their logical expiry by a grace window so that a
	// stale token reports Expired instead of NotFound while callers are
	// still likely to retry it.
	expiryGrace = 10 * time.Minute
)

type sessionClient interface {
	redis.Scripter
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

type sessionRepository struct {
	client sessionClient
}

func NewRepository(client sessionClient) repository.SessionRepository {
	return &sessionRepository{client: client}
}

func sessionKey(token string) string {
	return keyPrefixSession + token
}

func activeKey(userID, giveawayID int64) string {
	return fmt.Sprintf("%s%d:%d", keyPrefixActive, userID, giveawayID)
}

// upsertScript installs the new session and retires the pair's previous
// one in a single atomic step, so two concurrent starts for the same pair
// can never leave both hashes answerable: the index always points at the
// last writer and the loser's hash is deleted.
//
// KEYS[1] active index, KEYS[2] session hash. ARGV: token, user_id,
// giveaway_id, question, answer, attempts, max_attempts, created_at,
// expires_at, ttl_ms.
var upsertScript = redis.NewScript(`
local active = KEYS[1]
local key = KEYS[2]
local old = redis.call('GET', active)
if old and old ~= ARGV[1] then
  redis.call('DEL', 'captcha:session:' .. old)
end
redis.call('DEL', key)
redis.call('HSET', key,
  'user_id', ARGV[2], 'giveaway_id', ARGV[3],
  'question', ARGV[4], 'answer', ARGV[5],
  'attempts', ARGV[6], 'max_attempts', ARGV[7],
  'created_at', ARGV[8], 'expires_at', ARGV[9])
redis.call('PEXPIRE', key, ARGV[10])
redis.call('SET', active, ARGV[1], 'PX', ARGV[10])
return 1
`)

func (r *sessionRepository) Upsert(ctx context.Context, session *models.CaptchaSession) error {
	ttl := time.Until(session.ExpiresAt.Add(expiryGrace))
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	err := upsertScript.Run(ctx, r.client,
		[]string{activeKey(session.UserID, session.GiveawayID), sessionKey(session.Token)},
		session.Token,
		session.UserID, session.GiveawayID,
		session.Question, session.Answer,
		session.Attempts, session.MaxAttempts,
		session.CreatedAt.Unix(), session.ExpiresAt.Unix(),
		ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *sessionRepository) GetByToken(ctx context.Context, token string) (*models.CaptchaSession, error) {
	fields, err := r.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, repository.ErrSessionNotFound
	}

	session := &models.CaptchaSession{Token: token}
	session.UserID, _ = strconv.ParseInt(fields["user_id"], 10, 64)
	session.GiveawayID, _ = strconv.ParseInt(fields["giveaway_id"], 10, 64)
	session.Question = fields["question"]
	session.Answer, _ = strconv.Atoi(fields["answer"])
	session.Attempts, _ = strconv.Atoi(fields["attempts"])
	session.MaxAttempts, _ = strconv.Atoi(fields["max_attempts"])
	if createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		session.CreatedAt = time.Unix(createdAt, 0).UTC()
	}
	if expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64); err == nil {
		session.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	}

	return session, nil
}

// submitScript applies one answer attempt as a single atomic transition,
// so concurrent submissions against the same token linearize: exactly one
// wins a race to the deciding attempt.
//
// KEYS[1] session hash. ARGV: now(unix), answer, replacement question,
// replacement answer. Returns {outcome, user_id, giveaway_id, remaining,
// question}.
var submitScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
  return {'not_found', '0', '0', 0, ''}
end
local vals = redis.call('HMGET', key, 'user_id', 'giveaway_id', 'answer', 'attempts', 'max_attempts', 'expires_at')
local userId = vals[1]
local giveawayId = vals[2]
local answer = tonumber(vals[3])
local attempts = tonumber(vals[4])
local maxAttempts = tonumber(vals[5])
local expiresAt = tonumber(vals[6])
if tonumber(ARGV[1]) >= expiresAt then
  return {'expired', userId, giveawayId, 0, ''}
end
if attempts >= maxAttempts then
  return {'attempts_exhausted', userId, giveawayId, 0, ''}
end
if tonumber(ARGV[2]) == answer then
  redis.call('DEL', key)
  redis.call('DEL', 'captcha:active:' .. userId .. ':' .. giveawayId)
  return {'correct', userId, giveawayId, maxAttempts - attempts, ''}
end
attempts = redis.call('HINCRBY', key, 'attempts', 1)
if attempts >= maxAttempts then
  return {'attempts_exhausted', userId, giveawayId, 0, ''}
end
redis.call('HSET', key, 'question', ARGV[3], 'answer', ARGV[4])
return {'incorrect', userId, giveawayId, maxAttempts - attempts, ARGV[3]}
`)

func (r *sessionRepository) Submit(ctx context.Context, token string, answer int, replacement models.Challenge, now time.Time) (*models.SubmitResult, error) {
	raw, err := submitScript.Run(ctx, r.client,
		[]string{sessionKey(token)},
		now.Unix(), answer, replacement.Question, replacement.Answer,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to run submit script: %w", err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 5 {
		return nil, fmt.Errorf("unexpected submit script reply: %v", raw)
	}

	result := &models.SubmitResult{
		Outcome: models.SubmitOutcome(asString(reply[0])),
	}
	result.UserID, _ = strconv.ParseInt(asString(reply[1]), 10, 64)
	result.GiveawayID, _ = strconv.ParseInt(asString(reply[2]), 10, 64)
	result.AttemptsRemaining = int(asInt(reply[3]))
	result.Question = asString(reply[4])

	return result, nil
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

func asInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
