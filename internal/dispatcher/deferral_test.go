package dispatcher

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeferralsDoubleUntilCapped(t *testing.T) {
	d := newDeferrals(DeferralPolicy{Base: time.Second, Max: 5 * time.Second, Limit: 10})
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id := uuid.New()

	assert.Equal(t, time.Second, d.fail(id, now))
	assert.Equal(t, 2*time.Second, d.fail(id, now))
	assert.Equal(t, 4*time.Second, d.fail(id, now))
	assert.Equal(t, 5*time.Second, d.fail(id, now))
	assert.Equal(t, 5*time.Second, d.fail(id, now))

	assert.Equal(t, []uuid.UUID{id}, d.active(now.Add(4*time.Second)))
	assert.Empty(t, d.active(now.Add(5*time.Second)))
}

func TestDeferralsClear(t *testing.T) {
	d := newDeferrals(DeferralPolicy{})
	id := uuid.New()
	now := time.Now().UTC()

	assert.False(t, d.clear(id))
	d.fail(id, now)
	assert.Equal(t, 1, d.size())
	assert.True(t, d.clear(id))
	assert.Zero(t, d.size())
	assert.Equal(t, defaultDeferralBase, d.fail(id, now), "failure count restarts after clear")
}

func TestDeferralsEvictEarliestOverLimit(t *testing.T) {
	d := newDeferrals(DeferralPolicy{Base: time.Second, Max: time.Minute, Limit: 2})
	now := time.Now().UTC()
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	d.fail(first, now)
	d.fail(second, now.Add(time.Second))
	d.fail(third, now.Add(2*time.Second))

	assert.Equal(t, 2, d.size())
	assert.ElementsMatch(t, []uuid.UUID{second, third}, d.active(now))
}
