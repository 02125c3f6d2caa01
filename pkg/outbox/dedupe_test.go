package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/void1100/Bank-management-system/pkg/redis"
)

func TestDeduperMarksEachEnvelopeOnce(t *testing.T) {
	raw, mock := redismock.NewClientMock()
	store := redis.Wrap(raw)
	d, err := NewDeduper(store, "outbox-publisher", time.Hour)
	require.NoError(t, err)

	id := uuid.New()
	key := store.IdempotencyKey("delivered:outbox-publisher", id.String())
	ctx := context.Background()

	mock.ExpectSetNX(key, "1", time.Hour).SetVal(true)
	first, err := d.FirstDelivery(ctx, id)
	require.NoError(t, err)
	assert.True(t, first)

	mock.ExpectSetNX(key, "1", time.Hour).SetVal(false)
	first, err = d.FirstDelivery(ctx, id)
	require.NoError(t, err)
	assert.False(t, first)

	mock.ExpectDel(key).SetVal(1)
	require.NoError(t, d.Forget(ctx, id))

	mock.ExpectSetNX(key, "1", time.Hour).SetErr(errors.New("connection refused"))
	_, err = d.FirstDelivery(ctx, id)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDeduperValidates(t *testing.T) {
	raw, _ := redismock.NewClientMock()
	store := redis.Wrap(raw)

	_, err := NewDeduper(nil, "p", time.Hour)
	assert.Error(t, err)
	_, err = NewDeduper(store, "", time.Hour)
	assert.Error(t, err)
	_, err = NewDeduper(store, "p", 0)
	assert.Error(t, err)
}
