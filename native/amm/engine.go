package amm

import (
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"swaptrade/core/events"
	"swaptrade/native/common"
	"swaptrade/native/history"
	"swaptrade/native/ledger"
	"swaptrade/native/liquidity"
	"swaptrade/native/oracle"
	"swaptrade/native/ratelimit"
	"swaptrade/native/tiers"
	"swaptrade/observability/logging"
	"swaptrade/observability/metrics"
)

var (
	// ErrInvalidAccount indicates an empty account identifier.
	ErrInvalidAccount = errors.New("amm: invalid account")
	// ErrInvalidAmount indicates a nil or non-positive swap amount.
	ErrInvalidAmount = errors.New("amm: amount must be positive")
	// ErrSameAsset indicates a swap between an asset and itself.
	ErrSameAsset = errors.New("amm: identical input and output assets")
	// ErrUnknownAsset indicates an asset outside the configured pair.
	ErrUnknownAsset = errors.New("amm: asset is not traded here")
	// ErrSlippageExceeded indicates the gap between theoretical and actual
	// output breached the configured cap.
	ErrSlippageExceeded = errors.New("amm: slippage exceeds configured maximum")
)

// Pricing sources reported on SwapExecuted events and metrics.
const (
	SourcePool   = "pool"
	SourceOracle = "oracle"
	SourceParity = "parity"
)

const basisPoints = 10_000

// Result carries the settled outcome of a single swap.
type Result struct {
	// AmountOut is the credited output, already floored. Zero is a legal
	// outcome: the floor is deliberate and the engine does not special-case
	// dust trades.
	AmountOut *big.Int
	// Fee is the input-leg amount withheld for the fee pool.
	Fee *big.Int
	// Tier is the fee tier the account held when the swap priced.
	Tier tiers.Tier
	// Source names the pricing branch that produced AmountOut.
	Source string
}

// Engine executes swaps for the configured asset pair. Pricing prefers pooled
// reserves (constant product with the fee on the input leg), falls back to the
// oracle quote with a virtual-liquidity impact, and finally to an implicit 1:1
// rate when no price exists at all. Every check runs before the first state
// mutation, so a rejected swap leaves no trace.
type Engine struct {
	ledger  *ledger.Ledger
	oracle  *oracle.Oracle
	pool    *liquidity.Pool
	book    *tiers.Book
	limiter *ratelimit.Limiter

	pauses  common.PauseView
	freezes common.FreezeView
	history *history.Log
	emitter events.Emitter
	metrics *metrics.TradeMetrics
	log     *slog.Logger
	now     func() time.Time

	// maxSlippageBps caps (theoretical - actual) relative slippage. Zero
	// leaves the swap unrestricted.
	maxSlippageBps uint32
}

// NewEngine wires the engine over its collaborating ledgers. Gate, emitter,
// metrics and clock are optional and configured through setters.
func NewEngine(l *ledger.Ledger, o *oracle.Oracle, pool *liquidity.Pool, book *tiers.Book, limiter *ratelimit.Limiter) *Engine {
	return &Engine{
		ledger:  l,
		oracle:  o,
		pool:    pool,
		book:    book,
		limiter: limiter,
		emitter: events.NoopEmitter{},
		log:     slog.Default(),
		now:     time.Now,
	}
}

// SetGate wires the administrative pause and freeze views. Nil views pass.
func (e *Engine) SetGate(p common.PauseView, f common.FreezeView) {
	e.pauses = p
	e.freezes = f
}

// SetHistory wires the transaction log. Nil disables recording.
func (e *Engine) SetHistory(log *history.Log) {
	e.history = log
}

// SetEmitter configures the event emitter. Passing nil resets the no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetMetrics wires the prometheus counters. A nil receiver disables them.
func (e *Engine) SetMetrics(m *metrics.TradeMetrics) {
	e.metrics = m
}

// SetLogger overrides the engine logger. Passing nil resets slog.Default.
func (e *Engine) SetLogger(log *slog.Logger) {
	if log == nil {
		e.log = slog.Default()
		return
	}
	e.log = log
}

// SetClock overrides the engine clock, primarily for deterministic testing.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		e.now = time.Now
		return
	}
	e.now = now
}

// SetMaxSlippage configures the slippage cap in basis points. Zero disables
// the check.
func (e *Engine) SetMaxSlippage(bps uint32) {
	e.maxSlippageBps = bps
}

func (e *Engine) validateAssets(from, to ledger.Asset) error {
	base, quote := e.pool.Assets()
	if from == to {
		return ErrSameAsset
	}
	if from != base && from != quote {
		return ErrUnknownAsset
	}
	if to != base && to != quote {
		return ErrUnknownAsset
	}
	return nil
}

// quotePool prices against pooled reserves with the fee taken on the input
// leg. Every division truncates toward zero.
func quotePool(afterFee, amountIn, reserveIn, reserveOut *big.Int) (out, theoretical *big.Int) {
	denom := new(big.Int).Add(reserveIn, afterFee)
	out = new(big.Int).Mul(reserveOut, afterFee)
	out.Quo(out, denom)
	// Theoretical is the zero-impact spot output at reserveOut/reserveIn.
	theoretical = new(big.Int).Mul(amountIn, reserveOut)
	theoretical.Quo(theoretical, reserveIn)
	return out, theoretical
}

// quoteOracle prices at the fixed-point oracle rate and discounts the output
// by the price impact implied by the quote's virtual liquidity. An impact of
// 100% or more floors the output to zero rather than going negative.
func quoteOracle(afterFee, amountIn *big.Int, q oracle.Quote) (out, theoretical *big.Int) {
	theoretical = new(big.Int).Mul(amountIn, q.Price)
	theoretical.Quo(theoretical, oracle.Precision)
	out = new(big.Int).Mul(afterFee, q.Price)
	out.Quo(out, oracle.Precision)
	if q.Liquidity == nil || q.Liquidity.Sign() <= 0 {
		return out, theoretical
	}
	impact := new(big.Int).Mul(theoretical, big.NewInt(basisPoints))
	impact.Quo(impact, q.Liquidity)
	if impact.Cmp(big.NewInt(basisPoints)) >= 0 {
		return big.NewInt(0), theoretical
	}
	out.Mul(out, new(big.Int).Sub(big.NewInt(basisPoints), impact))
	out.Quo(out, big.NewInt(basisPoints))
	return out, theoretical
}

func slippageBps(theoretical, actual *big.Int) *big.Int {
	if theoretical.Sign() <= 0 {
		return big.NewInt(0)
	}
	gap := new(big.Int).Sub(theoretical, actual)
	if gap.Sign() <= 0 {
		return big.NewInt(0)
	}
	gap.Mul(gap, big.NewInt(basisPoints))
	return gap.Quo(gap, theoretical)
}

func (e *Engine) reject(reason string, err error) (Result, error) {
	e.metrics.ObserveSwapRejected(reason)
	return Result{}, err
}

// Swap prices and settles a single trade. The whole swap is evaluated before
// any state is written; any rejection leaves balances, reserves and counters
// untouched.
func (e *Engine) Swap(account string, from, to ledger.Asset, amountIn *big.Int) (Result, error) {
	if strings.TrimSpace(account) == "" {
		return e.reject("invalid_account", ErrInvalidAccount)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return e.reject("invalid_amount", ErrInvalidAmount)
	}
	if err := e.validateAssets(from, to); err != nil {
		return e.reject("invalid_asset", err)
	}
	if err := common.Guard(e.pauses, e.freezes, account); err != nil {
		return e.reject("gated", err)
	}

	tier, err := e.book.TierOf(account)
	if err != nil {
		return Result{}, err
	}
	if _, err := e.limiter.Check(account, ratelimit.ClassSwap, tier); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			return e.reject("rate_limited", err)
		}
		return Result{}, err
	}

	balance, err := e.ledger.BalanceOf(account, from)
	if err != nil {
		return Result{}, err
	}
	if balance.Cmp(amountIn) < 0 {
		return e.reject("insufficient_funds", ledger.ErrInsufficientFunds)
	}

	// The fee is taken on the input leg as amount·(10000-bps)/10000 with
	// truncation, and the withheld fee is the exact complement so the input
	// splits into afterFee + fee with no remainder.
	afterFee := new(big.Int).Mul(amountIn, big.NewInt(int64(basisPoints-tier.FeeBps())))
	afterFee.Quo(afterFee, big.NewInt(basisPoints))
	fee := new(big.Int).Sub(amountIn, afterFee)

	base, _ := e.pool.Assets()
	inputIsBase := from == base
	reserveBase, reserveQuote, err := e.pool.Reserves()
	if err != nil {
		return Result{}, err
	}
	reserveIn, reserveOut := reserveBase, reserveQuote
	if !inputIsBase {
		reserveIn, reserveOut = reserveQuote, reserveBase
	}

	var (
		amountOut   *big.Int
		theoretical *big.Int
		source      string
	)
	switch {
	case reserveIn.Sign() > 0 && reserveOut.Sign() > 0:
		amountOut, theoretical = quotePool(afterFee, amountIn, reserveIn, reserveOut)
		source = SourcePool
	default:
		quote, err := e.oracle.GetPrice(from, to)
		switch {
		case err == nil:
			amountOut, theoretical = quoteOracle(afterFee, amountIn, quote)
			source = SourceOracle
		case errors.Is(err, oracle.ErrPriceNotSet):
			// Legacy default: no pool and no quote settles at parity.
			amountOut = new(big.Int).Set(afterFee)
			theoretical = new(big.Int).Set(amountIn)
			source = SourceParity
			e.log.Warn("no price available, settling at parity",
				logging.MaskField("account", account),
				slog.String("fromAsset", string(from)),
				slog.String("toAsset", string(to)),
				slog.String("amountIn", amountIn.String()),
			)
		default:
			return e.reject("oracle", err)
		}
	}

	if e.maxSlippageBps > 0 {
		if slip := slippageBps(theoretical, amountOut); slip.Cmp(big.NewInt(int64(e.maxSlippageBps))) > 0 {
			return e.reject("slippage", ErrSlippageExceeded)
		}
	}

	// Commit phase. The full input leaves the account, the post-fee input
	// joins the inbound reserve, the fee accrues to the fee pool.
	if err := e.ledger.Transfer(account, from, to, amountIn, amountOut); err != nil {
		return Result{}, err
	}
	if source == SourcePool {
		if err := e.pool.ApplyTrade(inputIsBase, afterFee, amountOut, fee); err != nil {
			return Result{}, err
		}
	} else if err := e.pool.AccrueFees(fee); err != nil {
		return Result{}, err
	}
	before, after, err := e.book.RecordTrade(account, amountIn)
	if err != nil {
		return Result{}, err
	}
	if err := e.limiter.Record(account, ratelimit.ClassSwap, e.now().Unix()); err != nil {
		return Result{}, err
	}
	if e.history != nil {
		if err := e.history.RecordSwap(account, from, to, amountIn, amountOut, fee, e.now().Unix()); err != nil {
			return Result{}, err
		}
	}

	if before != after {
		e.metrics.ObserveTierChange()
		e.emitter.Emit(events.TierChanged{Account: account, From: before.String(), To: after.String()})
	}
	e.emitter.Emit(events.SwapExecuted{
		Account:   account,
		FromAsset: string(from),
		ToAsset:   string(to),
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: new(big.Int).Set(amountOut),
		Fee:       new(big.Int).Set(fee),
		Source:    source,
	})
	fee64, _ := new(big.Float).SetInt(fee).Float64()
	e.metrics.ObserveSwap(source, fee64)

	return Result{AmountOut: amountOut, Fee: fee, Tier: tier, Source: source}, nil
}
