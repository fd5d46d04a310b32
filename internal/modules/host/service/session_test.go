package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuckoohost/internal/modules/host/domain"
	"cuckoohost/internal/modules/host/dto"
	"cuckoohost/internal/modules/host/service"
	solversvc "cuckoohost/internal/modules/solver/service"
	"cuckoohost/internal/platform/clock"
	"cuckoohost/internal/platform/contract"
)

func TestSessionCorrelatesByNonce(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.LoaderConfig{})
	ctx := context.Background()
	h := f.load(t, "even")
	sess := service.NewSession("s-1", h, nil, nil, nil)

	nonces := map[byte]string{}
	for i := range byte(4) {
		res, err := sess.Submit(ctx, jobHeader(i))
		require.NoError(t, err)
		require.EqualValues(t, contract.StatusOK, res.Status)
		nonces[i] = res.Nonce
	}
	res, err := sess.Submit(ctx, []byte{1, 2})
	require.NoError(t, err)
	assert.EqualValues(t, contract.StatusWrongSize, res.Status)

	stray := contract.Nonce{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	status, err := h.PushToInputQueue(ctx, jobHeader(6), stray)
	require.NoError(t, err)
	require.Equal(t, contract.StatusOK, status)

	status, err = sess.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, contract.StatusOK, status)

	var reports []dto.Report
	require.Eventually(t, func() bool {
		batch, err := sess.Poll(ctx)
		if err != nil {
			return false
		}
		reports = append(reports, batch...)
		return len(reports) == 3
	}, 3*time.Second, 5*time.Millisecond)

	for _, r := range reports {
		if !r.Correlated {
			assert.Equal(t, stray.String(), r.Nonce)
			assert.Nil(t, r.Header)
			continue
		}
		first := r.Header[0]
		assert.Equal(t, nonces[first], r.Nonce)
		assert.EqualValues(t, first, r.Cycle[0])
	}

	require.NoError(t, sess.Stop(ctx))
	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-1", snap.SessionID)
	assert.Equal(t, "even", snap.Plugin)
	assert.True(t, snap.Stopped)
	assert.Equal(t, 4, snap.Submitted)
	assert.Equal(t, 2, snap.Found)
	assert.Equal(t, 2, snap.Pending)
	assert.Equal(t, 1, snap.Uncorrelated)
	assert.Len(t, snap.Reports, 3)

	status, err = sess.Restart(ctx)
	require.NoError(t, err)
	assert.Equal(t, contract.StatusOK, status)

	require.NoError(t, sess.Close(ctx))
	require.ErrorIs(t, sess.Close(ctx), domain.ErrHandleUnloaded)
}

func TestSessionReturnsQueueFullVerbatim(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.LoaderConfig{})
	ctx := context.Background()
	sess := service.NewSession("s-1", f.load(t, "even"), nil, nil, nil)

	for i := range solversvc.DefaultInputCapacity {
		res, err := sess.Submit(ctx, jobHeader(byte(i)))
		require.NoError(t, err)
		require.EqualValues(t, contract.StatusOK, res.Status)
	}
	res, err := sess.Submit(ctx, jobHeader(1))
	require.NoError(t, err)
	assert.EqualValues(t, contract.StatusQueueFull, res.Status)

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, solversvc.DefaultInputCapacity, snap.Submitted)
	assert.Equal(t, solversvc.DefaultInputCapacity, snap.Pending)
}

func TestSessionClearForgetsPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.LoaderConfig{})
	ctx := context.Background()
	sess := service.NewSession("s-1", f.load(t, "even"), nil, nil, nil)

	_, err := sess.Submit(ctx, jobHeader(2))
	require.NoError(t, err)
	require.NoError(t, sess.Clear(ctx))
	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Pending)
	assert.Equal(t, 1, snap.Submitted)
}

func TestSessionStampsReportsWithClock(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.LoaderConfig{})
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewManual(start)
	sess := service.NewSession("s-1", f.load(t, "even"), nil, nil, clk)

	_, err := sess.Submit(ctx, jobHeader(4))
	require.NoError(t, err)
	clk.Advance(time.Minute)
	_, err = sess.Start(ctx)
	require.NoError(t, err)

	var reports []dto.Report
	require.Eventually(t, func() bool {
		batch, err := sess.Poll(ctx)
		if err != nil {
			return false
		}
		reports = append(reports, batch...)
		return len(reports) == 1
	}, 3*time.Second, 5*time.Millisecond)
	assert.Equal(t, start.Add(time.Minute), reports[0].FoundAt)
	require.NoError(t, sess.Close(ctx))
}

func TestSessionClearKeepsPendingWhileProcessing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, service.LoaderConfig{})
	ctx := context.Background()
	sess := service.NewSession("s-1", f.load(t, "even"), nil, nil, nil)

	_, err := sess.Start(ctx)
	require.NoError(t, err)
	_, err = sess.Submit(ctx, jobHeader(3))
	require.NoError(t, err)
	require.NoError(t, sess.Clear(ctx))
	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Pending)

	require.NoError(t, sess.Stop(ctx))
	require.NoError(t, sess.Clear(ctx))
	snap, err = sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Pending)
}
