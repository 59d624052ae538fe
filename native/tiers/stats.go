package tiers

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrInvalidAccount indicates an empty account identifier.
	ErrInvalidAccount = errors.New("tiers: invalid account")
	// ErrInvalidVolume indicates a nil or negative trade volume.
	ErrInvalidVolume = errors.New("tiers: volume must be non-negative")
)

var statsPrefix = []byte("tiers/stats/")

func statsKey(account string) []byte {
	trimmed := strings.TrimSpace(account)
	buf := make([]byte, 0, len(statsPrefix)+len(trimmed))
	buf = append(buf, statsPrefix...)
	buf = append(buf, trimmed...)
	return buf
}

// Stats captures the per-account trading history the tier derives from.
type Stats struct {
	TradeCount uint64
	Volume     *big.Int
}

// Tier recomputes the account's tier from the stats.
func (s Stats) Tier() Tier {
	return TierFor(s.TradeCount, s.Volume)
}

// Storage exposes the subset of state access required by the stats book.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedStats struct {
	TradeCount uint64
	Volume     string
}

// Book persists per-account trading stats. The stored record holds only trade
// count and cumulative volume; tier is a derived value and is intentionally
// absent from storage.
type Book struct {
	store Storage
}

// NewBook constructs a stats book backed by the provided storage.
func NewBook(store Storage) *Book {
	return &Book{store: store}
}

// StatsOf returns the account's stats, zero-valued for unknown accounts.
func (b *Book) StatsOf(account string) (Stats, error) {
	if strings.TrimSpace(account) == "" {
		return Stats{}, ErrInvalidAccount
	}
	var stored storedStats
	ok, err := b.store.KVGet(statsKey(account), &stored)
	if err != nil {
		return Stats{}, err
	}
	if !ok {
		return Stats{Volume: big.NewInt(0)}, nil
	}
	volume, parsed := new(big.Int).SetString(stored.Volume, 10)
	if !parsed {
		return Stats{}, fmt.Errorf("tiers: corrupt stats record for %s", account)
	}
	return Stats{TradeCount: stored.TradeCount, Volume: volume}, nil
}

// TierOf recomputes the account's current tier.
func (b *Book) TierOf(account string) (Tier, error) {
	stats, err := b.StatsOf(account)
	if err != nil {
		return TierNovice, err
	}
	return stats.Tier(), nil
}

// RecordTrade increments the trade count and adds volume, returning the tiers
// before and after so callers can emit a change event.
func (b *Book) RecordTrade(account string, volume *big.Int) (before, after Tier, err error) {
	if strings.TrimSpace(account) == "" {
		return TierNovice, TierNovice, ErrInvalidAccount
	}
	if volume == nil || volume.Sign() < 0 {
		return TierNovice, TierNovice, ErrInvalidVolume
	}
	stats, err := b.StatsOf(account)
	if err != nil {
		return TierNovice, TierNovice, err
	}
	before = stats.Tier()
	stats.TradeCount++
	stats.Volume = new(big.Int).Add(stats.Volume, volume)
	after = stats.Tier()
	stored := &storedStats{TradeCount: stats.TradeCount, Volume: stats.Volume.String()}
	if err := b.store.KVPut(statsKey(account), stored); err != nil {
		return TierNovice, TierNovice, err
	}
	return before, after, nil
}
