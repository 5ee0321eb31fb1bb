package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/models"
	"github.com/azatarm-prog/telegive-participant/internal/features/captcha/repository"
)

type scriptCall struct {
	keys []string
	args []interface{}
}

// fakeClient records script invocations and serves canned replies, so the
// tests can pin down what the repository sends to Redis without a server.
type fakeClient struct {
	calls  []scriptCall
	reply  interface{}
	fields map[string]string
}

func (f *fakeClient) record(keys []string, args []interface{}) *redis.Cmd {
	f.calls = append(f.calls, scriptCall{keys: keys, args: args})
	return redis.NewCmdResult(f.reply, nil)
}

func (f *fakeClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.record(keys, args)
}

func (f *fakeClient) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.record(keys, args)
}

func (f *fakeClient) EvalRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.record(keys, args)
}

func (f *fakeClient) EvalShaRO(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.record(keys, args)
}

func (f *fakeClient) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	exists := make([]bool, len(hashes))
	return redis.NewBoolSliceResult(exists, nil)
}

func (f *fakeClient) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeClient) HGetAll(_ context.Context, _ string) *redis.MapStringStringCmd {
	return redis.NewMapStringStringResult(f.fields, nil)
}

func testSession() *models.CaptchaSession {
	now := time.Now().UTC()
	return &models.CaptchaSession{
		Token:       "tok-abc",
		UserID:      100,
		GiveawayID:  7,
		Question:    "What is 3 + 4?",
		Answer:      7,
		MaxAttempts: 3,
		CreatedAt:   now,
		ExpiresAt:   now.Add(10 * time.Minute),
	}
}

// Supersession must not be a read-modify-write sequence: the whole
// install-and-retire transition goes to Redis as one script invocation
// covering both the pair index and the session hash.
func TestUpsertIsOneAtomicInvocation(t *testing.T) {
	client := &fakeClient{reply: int64(1)}
	repo := NewRepository(client)

	require.NoError(t, repo.Upsert(context.Background(), testSession()))

	require.Len(t, client.calls, 1)
	call := client.calls[0]
	assert.Equal(t, []string{"captcha:active:100:7", "captcha:session:tok-abc"}, call.keys)
	require.NotEmpty(t, call.args)
	assert.Equal(t, "tok-abc", call.args[0])
}

func TestSubmitIsOneAtomicInvocation(t *testing.T) {
	client := &fakeClient{reply: []interface{}{"incorrect", "100", "7", int64(2), "What is 5 - 2?"}}
	repo := NewRepository(client)

	_, err := repo.Submit(context.Background(), "tok-abc", 9,
		models.Challenge{Question: "What is 5 - 2?", Answer: 3}, time.Now())
	require.NoError(t, err)

	require.Len(t, client.calls, 1)
	assert.Equal(t, []string{"captcha:session:tok-abc"}, client.calls[0].keys)
}

func TestSubmitMapsScriptReply(t *testing.T) {
	tests := []struct {
		name  string
		reply []interface{}
		want  models.SubmitResult
	}{
		{
			name:  "correct",
			reply: []interface{}{"correct", "100", "7", int64(3), ""},
			want: models.SubmitResult{
				Outcome: models.OutcomeCorrect, UserID: 100, GiveawayID: 7, AttemptsRemaining: 3,
			},
		},
		{
			name:  "incorrect with replacement",
			reply: []interface{}{"incorrect", "100", "7", int64(1), "What is 2 + 2?"},
			want: models.SubmitResult{
				Outcome: models.OutcomeIncorrect, UserID: 100, GiveawayID: 7,
				AttemptsRemaining: 1, Question: "What is 2 + 2?",
			},
		},
		{
			name:  "exhausted",
			reply: []interface{}{"attempts_exhausted", "100", "7", int64(0), ""},
			want: models.SubmitResult{
				Outcome: models.OutcomeAttemptsExhausted, UserID: 100, GiveawayID: 7,
			},
		},
		{
			name:  "not found",
			reply: []interface{}{"not_found", "0", "0", int64(0), ""},
			want:  models.SubmitResult{Outcome: models.OutcomeNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(&fakeClient{reply: tt.reply})

			result, err := repo.Submit(context.Background(), "tok-abc", 1, models.Challenge{}, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.want, *result)
		})
	}
}

func TestGetByTokenMapsFields(t *testing.T) {
	client := &fakeClient{fields: map[string]string{
		"user_id":      "100",
		"giveaway_id":  "7",
		"question":     "What is 3 + 4?",
		"answer":       "7",
		"attempts":     "1",
		"max_attempts": "3",
		"created_at":   "1700000000",
		"expires_at":   "1700000600",
	}}
	repo := NewRepository(client)

	session, err := repo.GetByToken(context.Background(), "tok-abc")
	require.NoError(t, err)

	assert.Equal(t, int64(100), session.UserID)
	assert.Equal(t, int64(7), session.GiveawayID)
	assert.Equal(t, 7, session.Answer)
	assert.Equal(t, 2, session.AttemptsRemaining())
	assert.Equal(t, time.Unix(1700000600, 0).UTC(), session.ExpiresAt)
}

func TestGetByTokenMissing(t *testing.T) {
	repo := NewRepository(&fakeClient{fields: map[string]string{}})

	_, err := repo.GetByToken(context.Background(), "gone")
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
}
