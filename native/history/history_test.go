package history

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"swaptrade/native/ledger"
	"swaptrade/state"
	"swaptrade/storage"
)

const (
	assetBase  ledger.Asset = "XLM"
	assetQuote ledger.Asset = "USDC"
)

func newLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(state.NewManager(storage.NewMemDB()))
}

func TestRecordStoresRate(t *testing.T) {
	g := newLog(t)

	err := g.RecordSwap("alice", assetBase, assetQuote,
		big.NewInt(100_000_000), big.NewInt(98_000_000), big.NewInt(1), 42)
	require.NoError(t, err)

	entries, err := g.Of("alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(42), entries[0].Timestamp)
	require.Equal(t, assetBase, entries[0].FromAsset)
	// 0.98 at seven decimals.
	require.Equal(t, int64(9_800_000), entries[0].Rate.Int64())
}

func TestLogCapsAtHundredEntries(t *testing.T) {
	g := newLog(t)

	for i := 0; i < 110; i++ {
		err := g.RecordSwap("alice", assetBase, assetQuote,
			big.NewInt(int64(i+1)), big.NewInt(1), nil, int64(i))
		require.NoError(t, err)
	}

	entries, err := g.Of("alice")
	require.NoError(t, err)
	require.Len(t, entries, MaxEntries)
	// The oldest ten were dropped; the survivors start at the eleventh.
	require.Equal(t, int64(11), entries[0].AmountIn.Int64())
	require.Equal(t, int64(110), entries[MaxEntries-1].AmountIn.Int64())
}

func TestUnknownAccountHasNoHistory(t *testing.T) {
	g := newLog(t)
	entries, err := g.Of("nobody")
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = g.Of("")
	require.ErrorIs(t, err, ErrInvalidAccount)
}

func TestTotalsCountUniqueUsers(t *testing.T) {
	g := newLog(t)

	totals, err := g.Totals()
	require.NoError(t, err)
	require.Zero(t, totals.TotalUsers)
	require.Zero(t, totals.TotalVolume.Sign())

	for i := 0; i < 3; i++ {
		require.NoError(t, g.RecordSwap("alice", assetBase, assetQuote,
			big.NewInt(100), big.NewInt(99), big.NewInt(1), int64(i)))
	}
	require.NoError(t, g.RecordSwap("bob", assetQuote, assetBase,
		big.NewInt(50), big.NewInt(49), big.NewInt(1), 10))

	totals, err = g.Totals()
	require.NoError(t, err)
	require.Equal(t, uint32(2), totals.TotalUsers)
	require.Equal(t, int64(350), totals.TotalVolume.Int64())
	require.Equal(t, int64(4), totals.TotalFees.Int64())
}

func TestZeroInputYieldsZeroRate(t *testing.T) {
	g := newLog(t)
	require.NoError(t, g.RecordSwap("alice", assetBase, assetQuote,
		big.NewInt(1), big.NewInt(0), nil, 1))

	entries, err := g.Of("alice")
	require.NoError(t, err)
	require.Zero(t, entries[0].Rate.Sign())
}

func TestManyAccountsStayIsolated(t *testing.T) {
	g := newLog(t)
	for i := 0; i < 5; i++ {
		account := fmt.Sprintf("user-%d", i)
		require.NoError(t, g.RecordSwap(account, assetBase, assetQuote,
			big.NewInt(10), big.NewInt(9), nil, int64(i)))
	}
	entries, err := g.Of("user-3")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	totals, err := g.Totals()
	require.NoError(t, err)
	require.Equal(t, uint32(5), totals.TotalUsers)
}
