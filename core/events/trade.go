package events

import (
	"math/big"
	"strconv"
)

const (
	// TypeSwapExecuted is emitted after a swap settles against the ledger.
	TypeSwapExecuted = "trade.swap_executed"
	// TypeTierChanged is emitted when a trade moves an account between tiers.
	TypeTierChanged = "trade.tier_changed"
	// TypePriceUpdated is emitted when the oracle records a fresh quote.
	TypePriceUpdated = "oracle.price_updated"
	// TypeLiquidityAdded is emitted after a provider deposit mints pool shares.
	TypeLiquidityAdded = "liquidity.added"
	// TypeLiquidityRemoved is emitted after a provider burn pays out reserves.
	TypeLiquidityRemoved = "liquidity.removed"
	// TypeBatchSettled is emitted once per batch with its aggregate outcome.
	TypeBatchSettled = "batch.settled"
)

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// SwapExecuted carries the settled amounts for a single swap. Source names the
// pricing branch that produced the output: "pool", "oracle", or "parity" for
// the legacy 1:1 fallback.
type SwapExecuted struct {
	Account   string
	FromAsset string
	ToAsset   string
	AmountIn  *big.Int
	AmountOut *big.Int
	Fee       *big.Int
	Source    string
}

func (SwapExecuted) EventType() string { return TypeSwapExecuted }

func (e SwapExecuted) Attributes() map[string]string {
	return map[string]string{
		"account":   e.Account,
		"fromAsset": e.FromAsset,
		"toAsset":   e.ToAsset,
		"amountIn":  bigString(e.AmountIn),
		"amountOut": bigString(e.AmountOut),
		"fee":       bigString(e.Fee),
		"source":    e.Source,
	}
}

// TierChanged records a tier transition for an account.
type TierChanged struct {
	Account string
	From    string
	To      string
}

func (TierChanged) EventType() string { return TypeTierChanged }

func (e TierChanged) Attributes() map[string]string {
	return map[string]string{"account": e.Account, "from": e.From, "to": e.To}
}

// PriceUpdated records a fresh oracle quote for a pair.
type PriceUpdated struct {
	FromAsset string
	ToAsset   string
	Price     *big.Int
	Liquidity *big.Int
}

func (PriceUpdated) EventType() string { return TypePriceUpdated }

func (e PriceUpdated) Attributes() map[string]string {
	return map[string]string{
		"fromAsset": e.FromAsset,
		"toAsset":   e.ToAsset,
		"price":     bigString(e.Price),
		"liquidity": bigString(e.Liquidity),
	}
}

// LiquidityAdded records a deposit into the pool.
type LiquidityAdded struct {
	Account     string
	AmountBase  *big.Int
	AmountQuote *big.Int
	Shares      *big.Int
}

func (LiquidityAdded) EventType() string { return TypeLiquidityAdded }

func (e LiquidityAdded) Attributes() map[string]string {
	return map[string]string{
		"account":     e.Account,
		"amountBase":  bigString(e.AmountBase),
		"amountQuote": bigString(e.AmountQuote),
		"shares":      bigString(e.Shares),
	}
}

// LiquidityRemoved records a proportional withdrawal from the pool.
type LiquidityRemoved struct {
	Account     string
	Shares      *big.Int
	AmountBase  *big.Int
	AmountQuote *big.Int
}

func (LiquidityRemoved) EventType() string { return TypeLiquidityRemoved }

func (e LiquidityRemoved) Attributes() map[string]string {
	return map[string]string{
		"account":     e.Account,
		"shares":      bigString(e.Shares),
		"amountBase":  bigString(e.AmountBase),
		"amountQuote": bigString(e.AmountQuote),
	}
}

// BatchSettled summarises a batch run.
type BatchSettled struct {
	BatchID  string
	Mode     string
	Executed uint32
	Failed   uint32
}

func (BatchSettled) EventType() string { return TypeBatchSettled }

func (e BatchSettled) Attributes() map[string]string {
	return map[string]string{
		"batchId":  e.BatchID,
		"mode":     e.Mode,
		"executed": strconv.FormatUint(uint64(e.Executed), 10),
		"failed":   strconv.FormatUint(uint64(e.Failed), 10),
	}
}
