//go:build unit

package timeutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/voltgrid/dbpool/foundation/timeutil"
)

func TestUTCClockNowIsUTC(t *testing.T) {
	now := timeutil.UTCClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
}

func TestUTCClockSince(t *testing.T) {
	c := timeutil.UTCClock{}
	start := c.Now().Add(-time.Second)
	assert.GreaterOrEqual(t, c.Since(start), time.Second)
}

func TestUTCClockSleepZeroReturnsImmediately(t *testing.T) {
	err := timeutil.UTCClock{}.Sleep(context.Background(), 0)
	assert.NoError(t, err)
}

func TestUTCClockSleepCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := timeutil.UTCClock{}.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrozenClockAdvance(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := timeutil.NewFrozenClock(base)

	assert.Equal(t, base, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, base.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(base))
}

func TestFrozenClockSleepAdvancesWithoutBlocking(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := timeutil.NewFrozenClock(base)

	start := time.Now()
	err := c.Sleep(context.Background(), time.Hour)
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, base.Add(time.Hour), c.Now())
}

func TestFrozenClockSet(t *testing.T) {
	c := timeutil.NewFrozenClock(time.Unix(0, 0))
	next := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	c.Set(next)
	assert.Equal(t, next, c.Now())
}
