package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"swaptrade/core/events"
	"swaptrade/native/ledger"
)

var (
	// ErrPriceNotSet indicates no quote was ever recorded for the pair, in
	// either direction.
	ErrPriceNotSet = errors.New("oracle: price not set")
	// ErrStalePrice indicates the stored quote is older than the staleness window.
	ErrStalePrice = errors.New("oracle: price is stale")
	// ErrInvalidPrice indicates a non-positive or out-of-range price.
	ErrInvalidPrice = errors.New("oracle: invalid price")
	// ErrInvalidLiquidity indicates a negative virtual liquidity figure.
	ErrInvalidLiquidity = errors.New("oracle: invalid liquidity")
)

// Precision is the fixed-point scale for quoted prices: a price of 1.0 is
// stored as 10^18.
var Precision = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// precisionSquared is Precision² kept in a wide unsigned integer so the
// inverse-quote division never loses the intermediate.
var precisionSquared = func() *uint256.Int {
	v, overflow := uint256.FromBig(new(big.Int).Mul(Precision, Precision))
	if overflow {
		panic("oracle: precision squared overflows uint256")
	}
	return v
}()

// DefaultStaleThreshold is the maximum quote age before GetPrice rejects it.
const DefaultStaleThreshold = 600 * time.Second

// Quote is a stored price observation for an asset pair.
type Quote struct {
	// Price is fixed point at 18 decimals.
	Price *big.Int
	// Liquidity is the virtual depth used for price-impact estimates when no
	// pooled reserves exist.
	Liquidity *big.Int
	// Timestamp is the clock reading at the moment the quote was set.
	Timestamp int64
}

// Clone returns a deep copy of the quote to prevent accidental mutations.
func (q Quote) Clone() Quote {
	clone := Quote{Timestamp: q.Timestamp}
	if q.Price != nil {
		clone.Price = new(big.Int).Set(q.Price)
	}
	if q.Liquidity != nil {
		clone.Liquidity = new(big.Int).Set(q.Liquidity)
	}
	return clone
}

// Storage exposes the subset of state access required by the oracle.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedQuote struct {
	Price     string
	Liquidity string
	Timestamp uint64
}

// Oracle stores one quote per directed asset pair and answers reads with a
// staleness guard. When only the reverse pair was recorded the quote is
// derived as Precision²/price with truncating division, preserving symmetry
// without duplicate storage.
type Oracle struct {
	store      Storage
	staleAfter time.Duration
	now        func() time.Time
	emitter    events.Emitter
}

// NewOracle constructs an oracle with the default staleness window.
func NewOracle(store Storage) *Oracle {
	return &Oracle{
		store:      store,
		staleAfter: DefaultStaleThreshold,
		now:        time.Now,
		emitter:    events.NoopEmitter{},
	}
}

// SetClock overrides the oracle clock, primarily for deterministic testing.
func (o *Oracle) SetClock(now func() time.Time) {
	if now == nil {
		o.now = time.Now
		return
	}
	o.now = now
}

// SetStaleThreshold overrides the staleness window. Non-positive values reset
// the default.
func (o *Oracle) SetStaleThreshold(d time.Duration) {
	if d <= 0 {
		o.staleAfter = DefaultStaleThreshold
		return
	}
	o.staleAfter = d
}

// SetEmitter configures the event emitter. Passing nil resets the no-op.
func (o *Oracle) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		o.emitter = events.NoopEmitter{}
		return
	}
	o.emitter = emitter
}

// SetPrice records a quote for the directed pair, stamped with the current
// clock time.
func (o *Oracle) SetPrice(from, to ledger.Asset, price, liquidity *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if liquidity == nil || liquidity.Sign() < 0 {
		return ErrInvalidLiquidity
	}
	stored := &storedQuote{
		Price:     price.String(),
		Liquidity: liquidity.String(),
		Timestamp: uint64(o.now().Unix()),
	}
	if err := o.store.KVPut(quoteKey(from, to), stored); err != nil {
		return err
	}
	o.emitter.Emit(events.PriceUpdated{
		FromAsset: string(from),
		ToAsset:   string(to),
		Price:     new(big.Int).Set(price),
		Liquidity: new(big.Int).Set(liquidity),
	})
	return nil
}

func (o *Oracle) lookup(from, to ledger.Asset) (Quote, bool, error) {
	var stored storedQuote
	ok, err := o.store.KVGet(quoteKey(from, to), &stored)
	if err != nil || !ok {
		return Quote{}, false, err
	}
	price, parsed := new(big.Int).SetString(stored.Price, 10)
	if !parsed {
		return Quote{}, false, fmt.Errorf("oracle: corrupt price record for %s/%s", from, to)
	}
	liquidity, parsed := new(big.Int).SetString(stored.Liquidity, 10)
	if !parsed {
		return Quote{}, false, fmt.Errorf("oracle: corrupt liquidity record for %s/%s", from, to)
	}
	return Quote{Price: price, Liquidity: liquidity, Timestamp: int64(stored.Timestamp)}, true, nil
}

// GetPrice returns the quote for the directed pair, deriving the inverse when
// only the reverse direction was recorded. Quotes older than the staleness
// window fail hard with ErrStalePrice rather than silently falling back.
func (o *Oracle) GetPrice(from, to ledger.Asset) (Quote, error) {
	quote, ok, err := o.lookup(from, to)
	if err != nil {
		return Quote{}, err
	}
	if !ok {
		reverse, found, err := o.lookup(to, from)
		if err != nil {
			return Quote{}, err
		}
		if !found {
			return Quote{}, ErrPriceNotSet
		}
		inverted, err := invertPrice(reverse.Price)
		if err != nil {
			return Quote{}, err
		}
		quote = Quote{Price: inverted, Liquidity: reverse.Liquidity, Timestamp: reverse.Timestamp}
	}
	age := o.now().Unix() - quote.Timestamp
	if age > int64(o.staleAfter/time.Second) {
		return Quote{}, ErrStalePrice
	}
	return quote, nil
}

// CurrentPrice is a convenience accessor returning only the fixed-point price.
func (o *Oracle) CurrentPrice(from, to ledger.Asset) (*big.Int, error) {
	quote, err := o.GetPrice(from, to)
	if err != nil {
		return nil, err
	}
	return quote.Price, nil
}

// invertPrice computes Precision²/price. The division truncates toward zero,
// so round-tripping a pair of inverse quotes can lose at most one unit in the
// last place.
func invertPrice(price *big.Int) (*big.Int, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	p, overflow := uint256.FromBig(price)
	if overflow {
		return nil, ErrInvalidPrice
	}
	inverted := new(uint256.Int).Div(precisionSquared, p)
	return inverted.ToBig(), nil
}
