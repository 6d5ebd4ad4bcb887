package dynamo

import (
	"context"
	"testing"
	"time"

	"github.com/marisec-auth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const otpTable = "otp_records"

func TestOTPRepo_IncrementAttempts_ConditionalAdd(t *testing.T) {
	fake, client := newFakeDynamo(t, func(op string, _ map[string]any) reply {
		return reply{Body: map[string]any{
			"Attributes": map[string]any{"attempts": map[string]any{"N": "2"}},
		}}
	})
	repo := NewOTPRepo(client, otpTable)

	n, err := repo.IncrementAttempts(context.Background(), "a@b.com", domain.OTPLogin, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	body := calls[0].Body
	assert.Equal(t, "UpdateItem", calls[0].Op)
	assert.Equal(t, otpTable, str(body, "TableName"))
	assert.Equal(t, "ADD #a :one", str(body, "UpdateExpression"))
	assert.Equal(t, "attribute_exists(#e) AND #a < :max", str(body, "ConditionExpression"))
	assert.Equal(t, "attempts", str(body, "ExpressionAttributeNames", "#a"))
	assert.Equal(t, "1", str(body, "ExpressionAttributeValues", ":one", "N"))
	assert.Equal(t, "3", str(body, "ExpressionAttributeValues", ":max", "N"))
	assert.Equal(t, "ALL_OLD", str(body, "ReturnValuesOnConditionCheckFailure"))
	assert.Equal(t, "a@b.com", str(body, "Key", "email", "S"))
	assert.Equal(t, "login", str(body, "Key", "type", "S"))
}

func TestOTPRepo_IncrementAttempts_MissingRecord(t *testing.T) {
	_, client := newFakeDynamo(t, func(string, map[string]any) reply {
		return conditionFailed(nil)
	})

	_, err := NewOTPRepo(client, otpTable).IncrementAttempts(context.Background(), "a@b.com", domain.OTPLogin, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestOTPRepo_IncrementAttempts_AtCeiling(t *testing.T) {
	_, client := newFakeDynamo(t, func(string, map[string]any) reply {
		return conditionFailed(map[string]any{
			"email":    map[string]any{"S": "a@b.com"},
			"type":     map[string]any{"S": "login"},
			"attempts": map[string]any{"N": "3"},
		})
	})

	_, err := NewOTPRepo(client, otpTable).IncrementAttempts(context.Background(), "a@b.com", domain.OTPLogin, 3)
	assert.ErrorIs(t, err, domain.ErrOTPAttemptsExceeded)
}

func TestOTPRepo_Delete_ConsumesOnce(t *testing.T) {
	deleted := false
	fake, client := newFakeDynamo(t, func(string, map[string]any) reply {
		if deleted {
			return conditionFailed(nil)
		}
		deleted = true
		return reply{Body: map[string]any{}}
	})
	repo := NewOTPRepo(client, otpTable)
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, "a@b.com", domain.OTPRegistration))
	err := repo.Delete(ctx, "a@b.com", domain.OTPRegistration)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "DeleteItem", calls[0].Op)
	assert.Equal(t, "attribute_exists(#e)", str(calls[0].Body, "ConditionExpression"))
	assert.Equal(t, "email", str(calls[0].Body, "ExpressionAttributeNames", "#e"))
	assert.Equal(t, "registration", str(calls[0].Body, "Key", "type", "S"))
}

func TestOTPRepo_Get(t *testing.T) {
	expires := time.Date(2026, 5, 1, 12, 10, 0, 0, time.UTC)
	fake, client := newFakeDynamo(t, func(string, map[string]any) reply {
		return reply{Body: map[string]any{"Item": map[string]any{
			"email":      map[string]any{"S": "a@b.com"},
			"type":       map[string]any{"S": "registration"},
			"code_hash":  map[string]any{"S": "abc"},
			"expires_at": map[string]any{"N": "1777637400"},
			"attempts":   map[string]any{"N": "1"},
			"pending_user": map[string]any{"M": map[string]any{
				"username": map[string]any{"S": "diver1"},
			}},
		}}}
	})

	rec, err := NewOTPRepo(client, otpTable).Get(context.Background(), "a@b.com", domain.OTPRegistration)
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.CodeHash)
	assert.Equal(t, 1, rec.Attempts)
	assert.True(t, expires.Equal(rec.ExpiresAt))
	require.NotNil(t, rec.PendingUser)
	assert.Equal(t, "diver1", rec.PendingUser.Username)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, true, calls[0].Body["ConsistentRead"])
}

func TestOTPRepo_Get_Missing(t *testing.T) {
	_, client := newFakeDynamo(t, nil)

	_, err := NewOTPRepo(client, otpTable).Get(context.Background(), "a@b.com", domain.OTPLogin)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOTPRepo_Put_WritesUnixExpiry(t *testing.T) {
	fake, client := newFakeDynamo(t, nil)
	rec := &domain.OTPRecord{
		Email:     "a@b.com",
		Type:      domain.OTPLogin,
		CodeHash:  "abc",
		ExpiresAt: time.Unix(1777637400, 0).UTC(),
		CreatedAt: time.Unix(1777636800, 0).UTC(),
	}

	require.NoError(t, NewOTPRepo(client, otpTable).Put(context.Background(), rec))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "PutItem", calls[0].Op)
	assert.Equal(t, "1777637400", str(calls[0].Body, "Item", "expires_at", "N"))
	assert.Equal(t, "0", str(calls[0].Body, "Item", "attempts", "N"))
	assert.Empty(t, str(calls[0].Body, "ConditionExpression"))
}

func TestOTPRepo_TransportErrorsAreUnavailable(t *testing.T) {
	repo := NewOTPRepo(deadClient(t), otpTable)
	ctx := context.Background()

	_, err := repo.Get(ctx, "a@b.com", domain.OTPLogin)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = repo.IncrementAttempts(ctx, "a@b.com", domain.OTPLogin, 3)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	err = repo.Delete(ctx, "a@b.com", domain.OTPLogin)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	err = repo.Put(ctx, &domain.OTPRecord{Email: "a@b.com", Type: domain.OTPLogin})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
