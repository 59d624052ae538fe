package oracle

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"swaptrade/native/ledger"
	"swaptrade/state"
	"swaptrade/storage"
)

const (
	assetBase  ledger.Asset = "XLM"
	assetQuote ledger.Asset = "USDC"
)

func newOracle(t *testing.T, now int64) *Oracle {
	t.Helper()
	o := NewOracle(state.NewManager(storage.NewMemDB()))
	o.SetClock(func() time.Time { return time.Unix(now, 0) })
	return o
}

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Precision)
}

func TestSetAndGetPrice(t *testing.T) {
	o := newOracle(t, 1_000)
	require.NoError(t, o.SetPrice(assetBase, assetQuote, scaled(2), big.NewInt(5_000)))

	quote, err := o.GetPrice(assetBase, assetQuote)
	require.NoError(t, err)
	require.Zero(t, quote.Price.Cmp(scaled(2)))
	require.Equal(t, int64(5_000), quote.Liquidity.Int64())
	require.Equal(t, int64(1_000), quote.Timestamp)
}

func TestGetPriceMissingPair(t *testing.T) {
	o := newOracle(t, 1_000)
	_, err := o.GetPrice(assetBase, assetQuote)
	require.ErrorIs(t, err, ErrPriceNotSet)
}

func TestInverseQuoteDerivedFromReversePair(t *testing.T) {
	o := newOracle(t, 1_000)
	// 1 base = 2 quote, so 1 quote = 0.5 base.
	require.NoError(t, o.SetPrice(assetBase, assetQuote, scaled(2), big.NewInt(5_000)))

	quote, err := o.GetPrice(assetQuote, assetBase)
	require.NoError(t, err)
	half := new(big.Int).Div(Precision, big.NewInt(2))
	require.Zero(t, quote.Price.Cmp(half))
	require.Equal(t, int64(5_000), quote.Liquidity.Int64())
}

func TestInverseQuoteTruncates(t *testing.T) {
	o := newOracle(t, 1_000)
	// price = 3.0: the inverse is 0.333... and must floor.
	require.NoError(t, o.SetPrice(assetBase, assetQuote, scaled(3), big.NewInt(0)))

	quote, err := o.GetPrice(assetQuote, assetBase)
	require.NoError(t, err)
	want := new(big.Int).Div(new(big.Int).Mul(Precision, Precision), scaled(3))
	require.Zero(t, quote.Price.Cmp(want))
}

func TestStaleQuoteRejected(t *testing.T) {
	o := newOracle(t, 1_000)
	require.NoError(t, o.SetPrice(assetBase, assetQuote, scaled(1), big.NewInt(0)))

	// Exactly at the threshold the quote is still valid.
	o.SetClock(func() time.Time { return time.Unix(1_600, 0) })
	_, err := o.GetPrice(assetBase, assetQuote)
	require.NoError(t, err)

	// One second past the threshold it is stale, in both directions.
	o.SetClock(func() time.Time { return time.Unix(1_601, 0) })
	_, err = o.GetPrice(assetBase, assetQuote)
	require.ErrorIs(t, err, ErrStalePrice)
	_, err = o.GetPrice(assetQuote, assetBase)
	require.ErrorIs(t, err, ErrStalePrice)
}

func TestSetPriceRefreshesTimestamp(t *testing.T) {
	o := newOracle(t, 1_000)
	require.NoError(t, o.SetPrice(assetBase, assetQuote, scaled(1), big.NewInt(0)))

	o.SetClock(func() time.Time { return time.Unix(2_000, 0) })
	require.NoError(t, o.SetPrice(assetBase, assetQuote, scaled(4), big.NewInt(0)))

	price, err := o.CurrentPrice(assetBase, assetQuote)
	require.NoError(t, err)
	require.Zero(t, price.Cmp(scaled(4)))
}

func TestSetPriceValidation(t *testing.T) {
	o := newOracle(t, 1_000)
	require.ErrorIs(t, o.SetPrice(assetBase, assetQuote, big.NewInt(0), big.NewInt(0)), ErrInvalidPrice)
	require.ErrorIs(t, o.SetPrice(assetBase, assetQuote, nil, big.NewInt(0)), ErrInvalidPrice)
	require.ErrorIs(t, o.SetPrice(assetBase, assetQuote, scaled(1), big.NewInt(-1)), ErrInvalidLiquidity)
}
