package repositories_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/tourney/internal/repositories"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisAttemptStore_Get(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("kv:forgotPasswordAttempts").SetVal(`{"a@x.com":{"count":2,"lastAttempt":"2026-10-18T10:00:00Z"}}`)

	store := repositories.NewRedisAttemptStore(client)
	value, err := store.Get(context.Background(), "forgotPasswordAttempts")

	require.NoError(t, err)
	assert.JSONEq(t, `{"a@x.com":{"count":2,"lastAttempt":"2026-10-18T10:00:00Z"}}`, string(value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_GetMissing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("kv:forgotPasswordAttempts").RedisNil()

	store := repositories.NewRedisAttemptStore(client)
	value, err := store.Get(context.Background(), "forgotPasswordAttempts")

	assert.NoError(t, err)
	assert.Nil(t, value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_GetError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectGet("kv:forgotPasswordAttempts").SetErr(errors.New("connection refused"))

	store := repositories.NewRedisAttemptStore(client)
	_, err := store.Get(context.Background(), "forgotPasswordAttempts")

	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_Set(t *testing.T) {
	client, mock := redismock.NewClientMock()
	value := []byte(`{"a@x.com":{"count":1,"lastAttempt":"2026-10-18T10:00:00Z"}}`)
	mock.ExpectSet("kv:forgotPasswordAttempts", value, 0).SetVal("OK")

	store := repositories.NewRedisAttemptStore(client)

	assert.NoError(t, store.Set(context.Background(), "forgotPasswordAttempts", value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_Ping(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")

	store := repositories.NewRedisAttemptStore(client)

	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// expectUpdateRound scripts one WATCH/GET/MULTI/SET/EXEC cycle of RedisAttemptStore.Update
func expectUpdateRound(mock redismock.ClientMock, key string, next []byte, execErr error) {
	mock.ExpectWatch(key)
	mock.ExpectGet(key).RedisNil()
	mock.ExpectTxPipeline()
	mock.ExpectSet(key, next, 0).SetVal("OK")
	exec := mock.ExpectTxPipelineExec()
	if execErr != nil {
		exec.SetErr(execErr)
	}
}

func TestRedisAttemptStore_Update(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := []byte(`{"a@x.com":{"count":1,"lastAttempt":"2026-10-18T10:00:00Z"}}`)
	expectUpdateRound(mock, "kv:forgotPasswordAttempts", next, nil)

	store := repositories.NewRedisAttemptStore(client)

	var seen []byte
	err := store.Update(context.Background(), "forgotPasswordAttempts", func(current []byte) ([]byte, error) {
		seen = current
		return next, nil
	})

	require.NoError(t, err)
	assert.Nil(t, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_UpdateWithoutChangesSkipsWrite(t *testing.T) {
	client, mock := redismock.NewClientMock()
	current := `{"a@x.com":{"count":2,"lastAttempt":"2026-10-18T10:00:00Z"}}`
	mock.ExpectWatch("kv:forgotPasswordAttempts")
	mock.ExpectGet("kv:forgotPasswordAttempts").SetVal(current)

	store := repositories.NewRedisAttemptStore(client)

	var seen []byte
	err := store.Update(context.Background(), "forgotPasswordAttempts", func(value []byte) ([]byte, error) {
		seen = value
		return nil, nil
	})

	require.NoError(t, err)
	assert.JSONEq(t, current, string(seen))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_UpdatePropagatesCallbackError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectWatch("kv:forgotPasswordAttempts")
	mock.ExpectGet("kv:forgotPasswordAttempts").RedisNil()

	store := repositories.NewRedisAttemptStore(client)
	boom := errors.New("encode failed")

	err := store.Update(context.Background(), "forgotPasswordAttempts", func([]byte) ([]byte, error) {
		return nil, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_UpdateRetriesAfterConflict(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := []byte(`{"a@x.com":{"count":1,"lastAttempt":"2026-10-18T10:00:00Z"}}`)
	expectUpdateRound(mock, "kv:forgotPasswordAttempts", next, redis.TxFailedErr)
	expectUpdateRound(mock, "kv:forgotPasswordAttempts", next, nil)

	store := repositories.NewRedisAttemptStore(client)

	calls := 0
	err := store.Update(context.Background(), "forgotPasswordAttempts", func([]byte) ([]byte, error) {
		calls++
		return next, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisAttemptStore_UpdateGivesUpAfterRepeatedConflicts(t *testing.T) {
	client, mock := redismock.NewClientMock()
	next := []byte(`{}`)
	for i := 0; i < 5; i++ {
		expectUpdateRound(mock, "kv:forgotPasswordAttempts", next, redis.TxFailedErr)
	}

	store := repositories.NewRedisAttemptStore(client)

	calls := 0
	err := store.Update(context.Background(), "forgotPasswordAttempts", func([]byte) ([]byte, error) {
		calls++
		return next, nil
	})

	assert.ErrorIs(t, err, repositories.ErrUpdateConflict)
	assert.Equal(t, 5, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
