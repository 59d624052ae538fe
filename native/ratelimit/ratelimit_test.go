package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swaptrade/native/tiers"
	"swaptrade/state"
	"swaptrade/storage"
)

func newLimiter(t *testing.T) (*Limiter, *int64) {
	t.Helper()
	now := int64(7_200)
	l := NewLimiter(state.NewManager(storage.NewMemDB()))
	l.SetClock(func() time.Time { return time.Unix(now, 0) })
	return l, &now
}

func TestQuotaPerTier(t *testing.T) {
	require.Equal(t, Quota{SwapsPerHour: 5, LPOpsPerDay: 10}, QuotaFor(tiers.TierNovice))
	require.Equal(t, Quota{SwapsPerHour: 20, LPOpsPerDay: 30}, QuotaFor(tiers.TierTrader))
	require.Equal(t, Quota{SwapsPerHour: 100, LPOpsPerDay: uint32(Unlimited)}, QuotaFor(tiers.TierExpert))
	require.Equal(t, Quota{SwapsPerHour: uint32(Unlimited), LPOpsPerDay: uint32(Unlimited)}, QuotaFor(tiers.TierWhale))
}

func TestWindowAlignment(t *testing.T) {
	w := windowFor(7_250, 3_600)
	require.Equal(t, int64(7_200), w.Start)
	require.Equal(t, int64(3_600), w.Duration)

	require.Equal(t, uint64(3_600_000), w.CooldownMillis(7_200))
	require.Equal(t, uint64(1_800_000), w.CooldownMillis(9_000))
	require.Zero(t, w.CooldownMillis(10_800))
	require.Zero(t, w.CooldownMillis(99_999))
}

func TestNoviceSwapBoundary(t *testing.T) {
	l, now := newLimiter(t)

	// Exactly five swaps pass inside the window.
	for i := 0; i < 5; i++ {
		status, err := l.Check("alice", ClassSwap, tiers.TierNovice)
		require.NoError(t, err)
		require.Equal(t, uint32(i), status.Used)
		require.NoError(t, l.Record("alice", ClassSwap, *now))
	}

	// The sixth is rejected with used == limit == 5.
	status, err := l.Check("alice", ClassSwap, tiers.TierNovice)
	require.ErrorIs(t, err, ErrLimitExceeded)
	require.Equal(t, uint32(5), status.Used)
	require.Equal(t, uint32(5), status.Limit)
	require.Equal(t, uint64(3_600_000), status.CooldownMillis)

	// Once the clock enters the next window the account may swap again.
	*now = 10_800
	status, err = l.Check("alice", ClassSwap, tiers.TierNovice)
	require.NoError(t, err)
	require.Zero(t, status.Used)
}

func TestCheckNeverConsumesQuota(t *testing.T) {
	l, _ := newLimiter(t)
	for i := 0; i < 20; i++ {
		_, err := l.Check("alice", ClassSwap, tiers.TierNovice)
		require.NoError(t, err)
	}
	status, err := l.Usage("alice", ClassSwap, tiers.TierNovice)
	require.NoError(t, err)
	require.Zero(t, status.Used)
}

func TestUnlimitedSentinelSkipsCounter(t *testing.T) {
	l, now := newLimiter(t)
	for i := 0; i < 1_000; i++ {
		_, err := l.Check("whale", ClassSwap, tiers.TierWhale)
		require.NoError(t, err)
		require.NoError(t, l.Record("whale", ClassSwap, *now))
	}
	_, err := l.Check("whale", ClassSwap, tiers.TierWhale)
	require.NoError(t, err)
}

func TestClassesCountIndependently(t *testing.T) {
	l, now := newLimiter(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record("alice", ClassSwap, *now))
	}
	_, err := l.Check("alice", ClassSwap, tiers.TierNovice)
	require.ErrorIs(t, err, ErrLimitExceeded)

	// LP operations use their own counter and window.
	status, err := l.Check("alice", ClassLiquidity, tiers.TierNovice)
	require.NoError(t, err)
	require.Zero(t, status.Used)
	require.Equal(t, uint32(10), status.Limit)
}

func TestAccountsCountIndependently(t *testing.T) {
	l, now := newLimiter(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record("alice", ClassSwap, *now))
	}
	status, err := l.Check("bob", ClassSwap, tiers.TierNovice)
	require.NoError(t, err)
	require.Zero(t, status.Used)
}

func TestStaleWindowCountersBecomeInert(t *testing.T) {
	l, now := newLimiter(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record("alice", ClassSwap, *now))
	}
	// Counters for past windows are never deleted, merely ignored.
	*now = 7_200 + 3_600
	status, err := l.Check("alice", ClassSwap, tiers.TierNovice)
	require.NoError(t, err)
	require.Zero(t, status.Used)
}
