package history

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"swaptrade/native/ledger"
)

// ErrInvalidAccount indicates an empty account identifier.
var ErrInvalidAccount = errors.New("history: invalid account")

// MaxEntries caps the per-account log; the oldest entry is dropped first.
const MaxEntries = 100

// RateScale is the fixed-point scale of the achieved rate, 10^-7 units.
var RateScale = big.NewInt(10_000_000)

// Entry is one settled swap in an account's transaction log.
type Entry struct {
	Timestamp int64
	FromAsset ledger.Asset
	ToAsset   ledger.Asset
	AmountIn  *big.Int
	AmountOut *big.Int
	// Rate is amountOut/amountIn at RateScale precision, zero when the input
	// was zero.
	Rate *big.Int
}

type storedEntry struct {
	Timestamp uint64
	FromAsset string
	ToAsset   string
	AmountIn  string
	AmountOut string
	Rate      string
}

type storedLog struct {
	Entries []storedEntry
}

type storedAggregate struct {
	TotalUsers  uint32
	TotalVolume string
	TotalFees   string
}

type storedFlag struct {
	Seen bool
}

// Aggregate is the dashboard view of engine-wide totals. All three values are
// O(1) counters, not scans.
type Aggregate struct {
	TotalUsers  uint32
	TotalVolume *big.Int
	TotalFees   *big.Int
}

// Storage exposes the subset of state access required by the log.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Log keeps a capped per-account record of settled swaps plus the aggregate
// totals the admin surface reads.
type Log struct {
	store Storage
}

// NewLog constructs a log backed by the provided storage.
func NewLog(store Storage) *Log {
	return &Log{store: store}
}

func parseAmount(raw, what string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("history: corrupt %s record", what)
	}
	return v, nil
}

// RecordSwap appends a settled swap to the account's log and folds it into the
// aggregate totals. The caller has already committed the swap; this never
// rejects on business grounds.
func (g *Log) RecordSwap(account string, from, to ledger.Asset, amountIn, amountOut, fee *big.Int, ts int64) error {
	if strings.TrimSpace(account) == "" {
		return ErrInvalidAccount
	}
	rate := big.NewInt(0)
	if amountIn != nil && amountIn.Sign() > 0 && amountOut != nil {
		rate = new(big.Int).Mul(amountOut, RateScale)
		rate.Quo(rate, amountIn)
	}

	var stored storedLog
	if _, err := g.store.KVGet(logKey(account), &stored); err != nil {
		return err
	}
	stored.Entries = append(stored.Entries, storedEntry{
		Timestamp: uint64(ts),
		FromAsset: string(from),
		ToAsset:   string(to),
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
		Rate:      rate.String(),
	})
	if len(stored.Entries) > MaxEntries {
		stored.Entries = stored.Entries[len(stored.Entries)-MaxEntries:]
	}
	if err := g.store.KVPut(logKey(account), &stored); err != nil {
		return err
	}
	return g.fold(account, amountIn, fee)
}

// fold updates the aggregate counters, counting the account once ever.
func (g *Log) fold(account string, volume, fee *big.Int) error {
	agg, err := g.Totals()
	if err != nil {
		return err
	}
	var seen storedFlag
	ok, err := g.store.KVGet(seenKey(account), &seen)
	if err != nil {
		return err
	}
	if !ok || !seen.Seen {
		agg.TotalUsers++
		if err := g.store.KVPut(seenKey(account), &storedFlag{Seen: true}); err != nil {
			return err
		}
	}
	if volume != nil && volume.Sign() > 0 {
		agg.TotalVolume = new(big.Int).Add(agg.TotalVolume, volume)
	}
	if fee != nil && fee.Sign() > 0 {
		agg.TotalFees = new(big.Int).Add(agg.TotalFees, fee)
	}
	return g.store.KVPut(aggregateKey, &storedAggregate{
		TotalUsers:  agg.TotalUsers,
		TotalVolume: agg.TotalVolume.String(),
		TotalFees:   agg.TotalFees.String(),
	})
}

// Of returns the account's log, most recent entry last, empty for accounts
// that never traded.
func (g *Log) Of(account string) ([]Entry, error) {
	if strings.TrimSpace(account) == "" {
		return nil, ErrInvalidAccount
	}
	var stored storedLog
	ok, err := g.store.KVGet(logKey(account), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	entries := make([]Entry, 0, len(stored.Entries))
	for _, raw := range stored.Entries {
		amountIn, err := parseAmount(raw.AmountIn, "transaction")
		if err != nil {
			return nil, err
		}
		amountOut, err := parseAmount(raw.AmountOut, "transaction")
		if err != nil {
			return nil, err
		}
		rate, err := parseAmount(raw.Rate, "transaction")
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Timestamp: int64(raw.Timestamp),
			FromAsset: ledger.Asset(raw.FromAsset),
			ToAsset:   ledger.Asset(raw.ToAsset),
			AmountIn:  amountIn,
			AmountOut: amountOut,
			Rate:      rate,
		})
	}
	return entries, nil
}

// Totals returns the aggregate counters, zero-valued before the first swap.
func (g *Log) Totals() (Aggregate, error) {
	var stored storedAggregate
	ok, err := g.store.KVGet(aggregateKey, &stored)
	if err != nil {
		return Aggregate{}, err
	}
	if !ok {
		return Aggregate{TotalVolume: big.NewInt(0), TotalFees: big.NewInt(0)}, nil
	}
	volume, err := parseAmount(stored.TotalVolume, "aggregate")
	if err != nil {
		return Aggregate{}, err
	}
	fees, err := parseAmount(stored.TotalFees, "aggregate")
	if err != nil {
		return Aggregate{}, err
	}
	return Aggregate{TotalUsers: stored.TotalUsers, TotalVolume: volume, TotalFees: fees}, nil
}
