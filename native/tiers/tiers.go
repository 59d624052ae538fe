package tiers

import "math/big"

// Tier classifies an account by its trading history. Higher tiers pay lower
// fees and receive looser rate limits.
type Tier uint8

const (
	TierNovice Tier = iota
	TierTrader
	TierExpert
	TierWhale
)

// String renders the canonical lower-case tier name.
func (t Tier) String() string {
	switch t {
	case TierWhale:
		return "whale"
	case TierExpert:
		return "expert"
	case TierTrader:
		return "trader"
	default:
		return "novice"
	}
}

const basisPoints = 10_000

var (
	volumeTrader = big.NewInt(100)
	volumeExpert = big.NewInt(1_000)
	volumeWhale  = big.NewInt(10_000)
)

// TierFor derives the tier from trade count and cumulative volume. It is a
// pure function: the tier is never stored, only recomputed, so it can never
// disagree with the stats that define it.
func TierFor(tradeCount uint64, volume *big.Int) Tier {
	if volume == nil {
		volume = big.NewInt(0)
	}
	switch {
	case tradeCount >= 200 && volume.Cmp(volumeWhale) >= 0:
		return TierWhale
	case tradeCount >= 50 && volume.Cmp(volumeExpert) >= 0:
		return TierExpert
	case tradeCount >= 10 || volume.Cmp(volumeTrader) >= 0:
		return TierTrader
	default:
		return TierNovice
	}
}

// FeeBps returns the tier's fee rate in basis points.
func (t Tier) FeeBps() uint32 {
	switch t {
	case TierWhale:
		return 15
	case TierExpert:
		return 20
	case TierTrader:
		return 25
	default:
		return 30
	}
}

// FeeAmount computes floor(amount·bps/10000). The division truncates toward
// zero on purpose: rounding would leak value across many small trades.
func (t Tier) FeeAmount(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(t.FeeBps())))
	return fee.Quo(fee, big.NewInt(basisPoints))
}
