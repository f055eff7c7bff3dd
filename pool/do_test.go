package pool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SuccessFeedsCounters(t *testing.T) {
	p, _ := newTestPool(t, testConfig())

	err := p.Do(context.Background(), "", func(ctx context.Context, c Client) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	m := p.Metrics()
	assert.Equal(t, uint64(1), m.TotalQueries)
	assert.Greater(t, m.AverageQueryTime, time.Duration(0))
	assert.Zero(t, m.ErrorRate)
	assert.Equal(t, 0, m.ActiveConns, "connection released")
	checkCountInvariant(t, p)
}

func TestDo_ErrorPropagatesAndConnectionSurvives(t *testing.T) {
	p, _ := newTestPool(t, testConfig())
	boom := errors.New("syntax error at or near SELECT")

	err := p.Do(context.Background(), "", func(ctx context.Context, c Client) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m := p.Metrics()
	assert.Equal(t, 2, m.TotalConns, "plain query errors do not shrink the pool")
	assert.Greater(t, m.ErrorRate, 0.0)
	assert.Zero(t, m.RemovedByReason[ReasonConnectivity])
	checkCountInvariant(t, p)
}

func TestDo_DisconnectRemovesAndReplaces(t *testing.T) {
	p, d := newTestPool(t, testConfig())
	refused := errors.New("connection refused")

	err := p.Do(context.Background(), "", func(ctx context.Context, c Client) error {
		return refused
	})
	assert.ErrorIs(t, err, refused, "the original error still reaches the caller")

	assert.Equal(t, uint64(1), p.Metrics().RemovedByReason[ReasonConnectivity])

	// Replacement brings the pool back up to the minimum.
	require.Eventually(t, func() bool {
		return p.Metrics().TotalConns == 2
	}, 3*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, d.dialCount(), 3)
	checkCountInvariant(t, p)
}

func TestDo_AcquireErrorSurfaces(t *testing.T) {
	p, _ := newTestPool(t, testConfig())
	require.NoError(t, p.Shutdown(context.Background()))

	err := p.Do(context.Background(), "", func(ctx context.Context, c Client) error { return nil })
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestDo_SlowQueryCounted(t *testing.T) {
	cfg := testConfig()
	cfg.SlowQueryThreshold = time.Millisecond
	p, _ := newTestPool(t, cfg)

	err := p.Do(context.Background(), "", func(ctx context.Context, c Client) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.Metrics().Performance.SlowQueries)
}

func TestDo_ObservedClientOwnsConnCounters(t *testing.T) {
	d := &fakeDialer{observable: true}
	p, err := New(context.Background(), testConfig(), WithDialer(d))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	c, err := p.Acquire(context.Background(), "")
	require.NoError(t, err)
	p.Release(c)

	require.NoError(t, p.Do(context.Background(), "", func(ctx context.Context, cl Client) error { return nil }))

	// Pool-level accounting still runs; per-connection counters wait for
	// driver events instead of being double counted.
	assert.Equal(t, uint64(1), p.Metrics().TotalQueries)
	assert.Zero(t, c.QueryCount())
}

func TestQuery_ReturnsValue(t *testing.T) {
	p, _ := newTestPool(t, testConfig())

	got, err := Query(context.Background(), p, "", func(ctx context.Context, c Client) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Query(context.Background(), p, "", func(ctx context.Context, c Client) (int, error) {
		return 0, errors.New("no rows")
	})
	assert.Error(t, err)
}
