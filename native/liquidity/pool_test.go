package liquidity

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swaptrade/native/ledger"
	"swaptrade/native/ratelimit"
	"swaptrade/native/tiers"
	"swaptrade/state"
	"swaptrade/storage"
)

const (
	assetBase  ledger.Asset = "XLM"
	assetQuote ledger.Asset = "USDC"
)

type fixture struct {
	pool   *Pool
	ledger *ledger.Ledger
	state  *state.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	l := ledger.NewLedger(mgr)
	p := NewPool(mgr, l, assetBase, assetQuote)
	return &fixture{pool: p, ledger: l, state: mgr}
}

func (f *fixture) fund(t *testing.T, account string, base, quote int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(account, assetBase, big.NewInt(base)))
	require.NoError(t, f.ledger.Mint(account, assetQuote, big.NewInt(quote)))
}

func TestIsqrt(t *testing.T) {
	require.Equal(t, int64(100), isqrt(big.NewInt(10_000)).Int64())
	require.Equal(t, int64(99), isqrt(big.NewInt(9_999)).Int64())
	require.Equal(t, int64(1), isqrt(big.NewInt(0)).Int64())
	require.Equal(t, int64(1), isqrt(big.NewInt(-5)).Int64())
	require.Equal(t, int64(1), isqrt(big.NewInt(1)).Int64())

	big1e18 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	require.Zero(t, isqrt(new(big.Int).Mul(big1e18, big1e18)).Cmp(big1e18))
}

func TestFirstProviderMintsSqrtShares(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1_000, 1_000)

	minted, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, int64(100), minted.Int64())

	base, quote, err := f.pool.Reserves()
	require.NoError(t, err)
	require.Equal(t, int64(100), base.Int64())
	require.Equal(t, int64(100), quote.Int64())

	balance, err := f.ledger.BalanceOf("alice", assetBase)
	require.NoError(t, err)
	require.Equal(t, int64(900), balance.Int64())
}

func TestSecondProviderMintsProportionally(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1_000, 1_000)
	f.fund(t, "bob", 1_000, 1_000)

	_, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.NoError(t, err)

	minted, err := f.pool.AddLiquidity("bob", big.NewInt(50), big.NewInt(50))
	require.NoError(t, err)
	require.Equal(t, int64(50), minted.Int64())

	total, err := f.pool.TotalShares()
	require.NoError(t, err)
	require.Equal(t, int64(150), total.Int64())
}

func TestUnbalancedDepositMintsMinimum(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1_000, 1_000)
	f.fund(t, "bob", 1_000, 1_000)

	_, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.NoError(t, err)

	// Bob deposits off-ratio; the smaller proportional share wins.
	minted, err := f.pool.AddLiquidity("bob", big.NewInt(100), big.NewInt(10))
	require.NoError(t, err)
	require.Equal(t, int64(10), minted.Int64())
}

func TestAddLiquidityInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 50, 1_000)

	_, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// Nothing was debited.
	balance, err := f.ledger.BalanceOf("alice", assetQuote)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), balance.Int64())
}

func TestAddLiquidityValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.pool.AddLiquidity("alice", big.NewInt(0), big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.pool.AddLiquidity("", big.NewInt(1), big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestDustDepositMintsNoShares(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1_000_000, 10)
	f.fund(t, "bob", 1_000, 10)

	// isqrt(1_000_000·1) = 1000 shares against a 1_000_000 base reserve, so a
	// 100-unit base deposit floors to zero on the base leg.
	_, err := f.pool.AddLiquidity("alice", big.NewInt(1_000_000), big.NewInt(1))
	require.NoError(t, err)

	_, err = f.pool.AddLiquidity("bob", big.NewInt(100), big.NewInt(1))
	require.ErrorIs(t, err, ErrMintTooSmall)

	// Nothing was debited on rejection.
	balance, err := f.ledger.BalanceOf("bob", assetBase)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), balance.Int64())
}

func TestRoundTripWithdrawal(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1_000, 1_000)

	minted, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.NoError(t, err)

	outBase, outQuote, err := f.pool.RemoveLiquidity("alice", minted)
	require.NoError(t, err)
	require.InDelta(t, 100, outBase.Int64(), 1)
	require.InDelta(t, 100, outQuote.Int64(), 1)

	balance, err := f.ledger.BalanceOf("alice", assetBase)
	require.NoError(t, err)
	require.InDelta(t, 1_000, balance.Int64(), 1)

	// The drained position stays on record at zero shares.
	pos, err := f.pool.PositionOf("alice")
	require.NoError(t, err)
	require.Zero(t, pos.Shares.Sign())
	require.Equal(t, int64(100), pos.DepositedBase.Int64())
}

func TestRemoveMoreSharesThanHeld(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 1_000, 1_000)

	minted, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.NoError(t, err)

	_, _, err = f.pool.RemoveLiquidity("alice", new(big.Int).Add(minted, big.NewInt(1)))
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestRemoveFromEmptyPool(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.pool.RemoveLiquidity("alice", big.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientShares)
}

func TestWithdrawalToleranceGuard(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 10_000, 10_000)

	minted, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.NoError(t, err)

	// Swapping fees into the pool inflates the reserves past the provider's
	// contribution; withdrawing everything would now exceed deposit × 1.01.
	require.NoError(t, f.pool.ApplyTrade(true, big.NewInt(10), big.NewInt(0), nil))

	_, _, err = f.pool.RemoveLiquidity("alice", minted)
	require.ErrorIs(t, err, ErrWithdrawTooLarge)
}

func TestApplyTradeMovesReservesAndAccruesFees(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 10_000, 10_000)
	_, err := f.pool.AddLiquidity("alice", big.NewInt(1_000), big.NewInt(1_000))
	require.NoError(t, err)

	require.NoError(t, f.pool.ApplyTrade(true, big.NewInt(199), big.NewInt(165), big.NewInt(1)))

	base, quote, err := f.pool.Reserves()
	require.NoError(t, err)
	require.Equal(t, int64(1_199), base.Int64())
	require.Equal(t, int64(835), quote.Int64())

	fees, err := f.pool.FeesAccrued()
	require.NoError(t, err)
	require.Equal(t, int64(1), fees.Int64())
}

func TestApplyTradeRefusesToDrainReserve(t *testing.T) {
	f := newFixture(t)
	require.ErrorIs(t, f.pool.ApplyTrade(true, big.NewInt(10), big.NewInt(1), nil), ErrPoolDrained)
}

func TestLPOperationsAreRateLimited(t *testing.T) {
	f := newFixture(t)
	limiter := ratelimit.NewLimiter(f.state)
	now := int64(100_000)
	limiter.SetClock(func() time.Time { return time.Unix(now, 0) })
	f.pool.SetLimiter(limiter, tiers.NewBook(f.state))
	f.pool.SetClock(func() time.Time { return time.Unix(now, 0) })

	f.fund(t, "alice", 1_000_000, 1_000_000)

	// Novice quota is ten LP operations per day-window.
	for i := 0; i < 10; i++ {
		_, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
		require.NoError(t, err)
	}
	_, err := f.pool.AddLiquidity("alice", big.NewInt(100), big.NewInt(100))
	require.ErrorIs(t, err, ratelimit.ErrLimitExceeded)

	// Withdrawals share the same quota class.
	_, _, err = f.pool.RemoveLiquidity("alice", big.NewInt(1))
	require.ErrorIs(t, err, ratelimit.ErrLimitExceeded)
}
