package liquidity

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"swaptrade/core/events"
	"swaptrade/native/ledger"
	"swaptrade/native/ratelimit"
	"swaptrade/native/tiers"
)

var (
	// ErrInvalidAccount indicates an empty account identifier.
	ErrInvalidAccount = errors.New("liquidity: invalid account")
	// ErrInvalidAmount indicates a nil or non-positive deposit amount.
	ErrInvalidAmount = errors.New("liquidity: amounts must be positive")
	// ErrMintTooSmall indicates the deposit would mint zero shares.
	ErrMintTooSmall = errors.New("liquidity: deposit mints no shares")
	// ErrInsufficientShares indicates a withdrawal of more shares than held.
	ErrInsufficientShares = errors.New("liquidity: insufficient shares")
	// ErrNoLiquidity indicates the pool holds no shares to withdraw against.
	ErrNoLiquidity = errors.New("liquidity: pool is empty")
	// ErrWithdrawTooLarge indicates a withdrawal exceeding the deposited
	// amounts beyond the 1% rounding tolerance.
	ErrWithdrawTooLarge = errors.New("liquidity: withdrawal exceeds deposit")
	// ErrPoolDrained indicates a reserve update that would go negative. It is
	// a numerical-safety failure, never silently clamped.
	ErrPoolDrained = errors.New("liquidity: reserves exhausted")
)

// Storage exposes the subset of state access required by the pool.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedReserves struct {
	Base  string
	Quote string
}

type storedAmount struct {
	Amount string
}

type storedPosition struct {
	DepositedBase  string
	DepositedQuote string
	Shares         string
}

// Position records a provider's cumulative deposits and minted shares. The
// deposited amounts are a lifetime record and do not shrink on withdrawal;
// only the share count does.
type Position struct {
	DepositedBase  *big.Int
	DepositedQuote *big.Int
	Shares         *big.Int
}

// Pool tracks the two pooled reserves, the global share supply, and each
// provider's position. The product of the reserves is the AMM's pricing curve
// and only ever grows through the fee accrual the swap engine applies.
type Pool struct {
	store      Storage
	ledger     *ledger.Ledger
	baseAsset  ledger.Asset
	quoteAsset ledger.Asset
	limiter    *ratelimit.Limiter
	book       *tiers.Book
	emitter    events.Emitter
	now        func() time.Time
}

// NewPool constructs a pool for the configured asset pair.
func NewPool(store Storage, l *ledger.Ledger, base, quote ledger.Asset) *Pool {
	return &Pool{
		store:      store,
		ledger:     l,
		baseAsset:  base,
		quoteAsset: quote,
		emitter:    events.NoopEmitter{},
		now:        time.Now,
	}
}

// SetLimiter wires the rate limiter and the stats book used to resolve the
// account tier. Leaving either nil disables LP rate limiting.
func (p *Pool) SetLimiter(limiter *ratelimit.Limiter, book *tiers.Book) {
	p.limiter = limiter
	p.book = book
}

// SetEmitter configures the event emitter. Passing nil resets the no-op.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetClock overrides the pool clock, primarily for deterministic testing.
func (p *Pool) SetClock(now func() time.Time) {
	if now == nil {
		p.now = time.Now
		return
	}
	p.now = now
}

// Assets returns the configured (base, quote) pair.
func (p *Pool) Assets() (ledger.Asset, ledger.Asset) {
	return p.baseAsset, p.quoteAsset
}

func parseAmount(raw, what string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("liquidity: corrupt %s record", what)
	}
	return v, nil
}

// Reserves returns the pooled quantities of (base, quote), zero before the
// first deposit.
func (p *Pool) Reserves() (*big.Int, *big.Int, error) {
	var stored storedReserves
	ok, err := p.store.KVGet(reservesKey, &stored)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return big.NewInt(0), big.NewInt(0), nil
	}
	base, err := parseAmount(stored.Base, "reserve")
	if err != nil {
		return nil, nil, err
	}
	quote, err := parseAmount(stored.Quote, "reserve")
	if err != nil {
		return nil, nil, err
	}
	return base, quote, nil
}

func (p *Pool) putReserves(base, quote *big.Int) error {
	return p.store.KVPut(reservesKey, &storedReserves{Base: base.String(), Quote: quote.String()})
}

// TotalShares returns the global share supply.
func (p *Pool) TotalShares() (*big.Int, error) {
	var stored storedAmount
	ok, err := p.store.KVGet(totalSharesKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(stored.Amount, "share supply")
}

func (p *Pool) putTotalShares(total *big.Int) error {
	return p.store.KVPut(totalSharesKey, &storedAmount{Amount: total.String()})
}

// FeesAccrued returns the fee pool balance awaiting distribution.
func (p *Pool) FeesAccrued() (*big.Int, error) {
	var stored storedAmount
	ok, err := p.store.KVGet(feePoolKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(stored.Amount, "fee pool")
}

// PositionOf returns the provider's position, zero-valued when the account has
// never deposited. Fully withdrawn positions remain at zero shares.
func (p *Pool) PositionOf(account string) (Position, error) {
	if strings.TrimSpace(account) == "" {
		return Position{}, ErrInvalidAccount
	}
	var stored storedPosition
	ok, err := p.store.KVGet(positionKey(account), &stored)
	if err != nil {
		return Position{}, err
	}
	if !ok {
		return Position{
			DepositedBase:  big.NewInt(0),
			DepositedQuote: big.NewInt(0),
			Shares:         big.NewInt(0),
		}, nil
	}
	base, err := parseAmount(stored.DepositedBase, "position")
	if err != nil {
		return Position{}, err
	}
	quote, err := parseAmount(stored.DepositedQuote, "position")
	if err != nil {
		return Position{}, err
	}
	shares, err := parseAmount(stored.Shares, "position")
	if err != nil {
		return Position{}, err
	}
	return Position{DepositedBase: base, DepositedQuote: quote, Shares: shares}, nil
}

func (p *Pool) putPosition(account string, pos Position) error {
	return p.store.KVPut(positionKey(account), &storedPosition{
		DepositedBase:  pos.DepositedBase.String(),
		DepositedQuote: pos.DepositedQuote.String(),
		Shares:         pos.Shares.String(),
	})
}

func (p *Pool) checkLimit(account string) (tiers.Tier, error) {
	if p.limiter == nil || p.book == nil {
		return tiers.TierNovice, nil
	}
	tier, err := p.book.TierOf(account)
	if err != nil {
		return tiers.TierNovice, err
	}
	if _, err := p.limiter.Check(account, ratelimit.ClassLiquidity, tier); err != nil {
		return tier, err
	}
	return tier, nil
}

func (p *Pool) recordLimit(account string) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Record(account, ratelimit.ClassLiquidity, p.now().Unix())
}

// AddLiquidity deposits both assets and mints shares. The first provider
// receives isqrt(amountBase·amountQuote); later providers receive the minimum
// of the two proportional entitlements, which penalises deposits away from
// the pool's current ratio. All checks precede any mutation.
func (p *Pool) AddLiquidity(account string, amountBase, amountQuote *big.Int) (*big.Int, error) {
	if strings.TrimSpace(account) == "" {
		return nil, ErrInvalidAccount
	}
	if amountBase == nil || amountBase.Sign() <= 0 || amountQuote == nil || amountQuote.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := p.checkLimit(account); err != nil {
		return nil, err
	}

	baseBalance, err := p.ledger.BalanceOf(account, p.baseAsset)
	if err != nil {
		return nil, err
	}
	quoteBalance, err := p.ledger.BalanceOf(account, p.quoteAsset)
	if err != nil {
		return nil, err
	}
	if baseBalance.Cmp(amountBase) < 0 || quoteBalance.Cmp(amountQuote) < 0 {
		return nil, ledger.ErrInsufficientFunds
	}

	reserveBase, reserveQuote, err := p.Reserves()
	if err != nil {
		return nil, err
	}
	total, err := p.TotalShares()
	if err != nil {
		return nil, err
	}

	var minted *big.Int
	if total.Sign() == 0 {
		minted = isqrt(new(big.Int).Mul(amountBase, amountQuote))
	} else {
		if reserveBase.Sign() == 0 || reserveQuote.Sign() == 0 {
			return nil, ErrPoolDrained
		}
		// Both divisions truncate toward zero.
		byBase := new(big.Int).Mul(amountBase, total)
		byBase.Quo(byBase, reserveBase)
		byQuote := new(big.Int).Mul(amountQuote, total)
		byQuote.Quo(byQuote, reserveQuote)
		minted = minBig(byBase, byQuote)
	}
	if minted.Sign() <= 0 {
		return nil, ErrMintTooSmall
	}

	if err := p.ledger.Debit(account, p.baseAsset, amountBase); err != nil {
		return nil, err
	}
	if err := p.ledger.Debit(account, p.quoteAsset, amountQuote); err != nil {
		return nil, err
	}
	if err := p.putReserves(new(big.Int).Add(reserveBase, amountBase), new(big.Int).Add(reserveQuote, amountQuote)); err != nil {
		return nil, err
	}
	if err := p.putTotalShares(new(big.Int).Add(total, minted)); err != nil {
		return nil, err
	}
	pos, err := p.PositionOf(account)
	if err != nil {
		return nil, err
	}
	pos.DepositedBase = new(big.Int).Add(pos.DepositedBase, amountBase)
	pos.DepositedQuote = new(big.Int).Add(pos.DepositedQuote, amountQuote)
	pos.Shares = new(big.Int).Add(pos.Shares, minted)
	if err := p.putPosition(account, pos); err != nil {
		return nil, err
	}
	if err := p.recordLimit(account); err != nil {
		return nil, err
	}
	p.emitter.Emit(events.LiquidityAdded{
		Account:     account,
		AmountBase:  new(big.Int).Set(amountBase),
		AmountQuote: new(big.Int).Set(amountQuote),
		Shares:      new(big.Int).Set(minted),
	})
	return minted, nil
}

// RemoveLiquidity burns shares and pays out the proportional slice of each
// reserve. A withdrawal that would exceed the provider's deposited amounts by
// more than 1% is rejected as a rounding-guard against value extraction.
func (p *Pool) RemoveLiquidity(account string, shares *big.Int) (*big.Int, *big.Int, error) {
	if strings.TrimSpace(account) == "" {
		return nil, nil, ErrInvalidAccount
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if _, err := p.checkLimit(account); err != nil {
		return nil, nil, err
	}

	pos, err := p.PositionOf(account)
	if err != nil {
		return nil, nil, err
	}
	if pos.Shares.Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientShares
	}
	total, err := p.TotalShares()
	if err != nil {
		return nil, nil, err
	}
	if total.Sign() == 0 {
		return nil, nil, ErrNoLiquidity
	}
	reserveBase, reserveQuote, err := p.Reserves()
	if err != nil {
		return nil, nil, err
	}

	// Proportional withdrawal, truncating toward zero.
	outBase := new(big.Int).Mul(shares, reserveBase)
	outBase.Quo(outBase, total)
	outQuote := new(big.Int).Mul(shares, reserveQuote)
	outQuote.Quo(outQuote, total)

	// Guard: out ≤ deposited × 1.01, compared as out·100 ≤ deposited·101 to
	// stay in integers.
	if exceedsTolerance(outBase, pos.DepositedBase) || exceedsTolerance(outQuote, pos.DepositedQuote) {
		return nil, nil, ErrWithdrawTooLarge
	}

	if err := p.ledger.Credit(account, p.baseAsset, outBase); err != nil {
		return nil, nil, err
	}
	if err := p.ledger.Credit(account, p.quoteAsset, outQuote); err != nil {
		return nil, nil, err
	}
	if err := p.putReserves(new(big.Int).Sub(reserveBase, outBase), new(big.Int).Sub(reserveQuote, outQuote)); err != nil {
		return nil, nil, err
	}
	if err := p.putTotalShares(new(big.Int).Sub(total, shares)); err != nil {
		return nil, nil, err
	}
	pos.Shares = new(big.Int).Sub(pos.Shares, shares)
	if err := p.putPosition(account, pos); err != nil {
		return nil, nil, err
	}
	if err := p.recordLimit(account); err != nil {
		return nil, nil, err
	}
	p.emitter.Emit(events.LiquidityRemoved{
		Account:     account,
		Shares:      new(big.Int).Set(shares),
		AmountBase:  new(big.Int).Set(outBase),
		AmountQuote: new(big.Int).Set(outQuote),
	})
	return outBase, outQuote, nil
}

func exceedsTolerance(out, deposited *big.Int) bool {
	lhs := new(big.Int).Mul(out, big.NewInt(100))
	rhs := new(big.Int).Mul(deposited, big.NewInt(101))
	return lhs.Cmp(rhs) > 0
}

// ApplyTrade settles a swap against the reserves: the post-fee input joins
// the inbound reserve, the computed output leaves the outbound reserve, and
// the fee accrues to the fee pool. The swap engine has already validated the
// amounts; a negative resulting reserve still fails hard.
func (p *Pool) ApplyTrade(inputIsBase bool, amountInAfterFee, amountOut, fee *big.Int) error {
	reserveBase, reserveQuote, err := p.Reserves()
	if err != nil {
		return err
	}
	if inputIsBase {
		reserveBase = new(big.Int).Add(reserveBase, amountInAfterFee)
		reserveQuote = new(big.Int).Sub(reserveQuote, amountOut)
	} else {
		reserveQuote = new(big.Int).Add(reserveQuote, amountInAfterFee)
		reserveBase = new(big.Int).Sub(reserveBase, amountOut)
	}
	if reserveBase.Sign() < 0 || reserveQuote.Sign() < 0 {
		return ErrPoolDrained
	}
	if err := p.putReserves(reserveBase, reserveQuote); err != nil {
		return err
	}
	return p.AccrueFees(fee)
}

// AccrueFees adds the withheld fee to the fee pool counter. Swaps that price
// off the oracle rather than the reserves still route their fee through here.
func (p *Pool) AccrueFees(fee *big.Int) error {
	if fee == nil || fee.Sign() <= 0 {
		return nil
	}
	accrued, err := p.FeesAccrued()
	if err != nil {
		return err
	}
	return p.store.KVPut(feePoolKey, &storedAmount{Amount: new(big.Int).Add(accrued, fee).String()})
}
