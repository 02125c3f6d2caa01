package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialDoublesUpToMax(t *testing.T) {
	b := &Exponential{Base: time.Second, Max: 5 * time.Second}

	var got []time.Duration
	for range 5 {
		got = append(got, b.Next())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)

	b.Reset()
	assert.Equal(t, time.Second, b.Next())
}

func TestExponentialAddsBoundedJitter(t *testing.T) {
	b := &Exponential{Base: time.Second, Max: time.Second, Jitter: 100 * time.Millisecond}
	for range 50 {
		d := b.Next()
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 1100*time.Millisecond)
	}
	assert.Zero(t, Jitter(0))
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
}
