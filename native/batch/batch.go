package batch

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"swaptrade/core/events"
	"swaptrade/native/amm"
	"swaptrade/native/ledger"
	"swaptrade/native/liquidity"
	"swaptrade/observability/metrics"
	"swaptrade/state"
)

var (
	// ErrEmptyBatch indicates a batch with no operations.
	ErrEmptyBatch = errors.New("batch: empty operation sequence")
	// ErrTooManyOperations indicates a batch over the size cap.
	ErrTooManyOperations = errors.New("batch: too many operations")
	// ErrUnknownKind indicates an operation with an unrecognised kind tag.
	ErrUnknownKind = errors.New("batch: unknown operation kind")
	// ErrInvalidOperation indicates an operation that failed static validation.
	ErrInvalidOperation = errors.New("batch: invalid operation")
	// ErrBatchAborted indicates an atomic batch rolled back after a runtime
	// failure. The wrapped cause names the failing operation.
	ErrBatchAborted = errors.New("batch: atomic batch aborted")
)

// MaxOperations caps the batch length.
const MaxOperations = 10

// OpKind tags the operation variant. The zero value is invalid so an
// uninitialised Operation can never pass validation.
type OpKind uint8

const (
	OpSwap OpKind = iota + 1
	OpAddLiquidity
	OpRemoveLiquidity
	OpMint
)

// String renders the canonical operation name.
func (k OpKind) String() string {
	switch k {
	case OpSwap:
		return "swap"
	case OpAddLiquidity:
		return "add_liquidity"
	case OpRemoveLiquidity:
		return "remove_liquidity"
	case OpMint:
		return "mint"
	default:
		return "unknown"
	}
}

// Mode selects the batch failure semantics.
type Mode string

const (
	// ModeAtomic rolls the whole batch back on the first runtime failure.
	ModeAtomic Mode = "atomic"
	// ModeBestEffort records per-operation failures and keeps going.
	ModeBestEffort Mode = "best_effort"
)

// Operation is a tagged value describing one step of a batch. Construct it
// through the New* helpers; only the fields the kind uses are set.
type Operation struct {
	Kind    OpKind
	Account string

	// Swap fields.
	FromAsset ledger.Asset
	ToAsset   ledger.Asset

	// Mint fields.
	Asset ledger.Asset

	// Amount is the swap input or the minted quantity.
	Amount *big.Int

	// Liquidity fields, for both the deposit and the withdrawal shapes.
	AmountBase  *big.Int
	AmountQuote *big.Int
}

// NewSwap builds a swap operation.
func NewSwap(account string, from, to ledger.Asset, amount *big.Int) Operation {
	return Operation{Kind: OpSwap, Account: account, FromAsset: from, ToAsset: to, Amount: amount}
}

// NewAddLiquidity builds a deposit operation.
func NewAddLiquidity(account string, amountBase, amountQuote *big.Int) Operation {
	return Operation{Kind: OpAddLiquidity, Account: account, AmountBase: amountBase, AmountQuote: amountQuote}
}

// NewRemoveLiquidity builds a withdrawal operation expressed in asset amounts.
// The executor converts the base-side amount into shares at the pool's current
// ratio before burning.
func NewRemoveLiquidity(account string, amountBase, amountQuote *big.Int) Operation {
	return Operation{Kind: OpRemoveLiquidity, Account: account, AmountBase: amountBase, AmountQuote: amountQuote}
}

// NewMint builds a mint operation.
func NewMint(account string, asset ledger.Asset, amount *big.Int) Operation {
	return Operation{Kind: OpMint, Account: account, Asset: asset, Amount: amount}
}

// OpResult is the outcome of one operation. Exactly one of Err or the value
// fields is meaningful.
type OpResult struct {
	Kind OpKind
	Err  error

	// Value carries the swap output, the minted share count, or the minted
	// amount, depending on the kind.
	Value *big.Int

	// ValueBase and ValueQuote carry a withdrawal's two payouts.
	ValueBase  *big.Int
	ValueQuote *big.Int
}

// Report summarises a settled batch.
type Report struct {
	BatchID  string
	Mode     Mode
	Results  []OpResult
	Executed uint32
	Failed   uint32
}

// Executor runs operation sequences against the engine with either
// all-or-nothing or best-effort semantics. Atomic mode snapshots the state
// manager before the first operation; the snapshot is the only rollback
// mechanism in the system and restores balances, reserves, shares and
// counters together.
type Executor struct {
	state   *state.Manager
	engine  *amm.Engine
	ledger  *ledger.Ledger
	pool    *liquidity.Pool
	emitter events.Emitter
	metrics *metrics.TradeMetrics
	log     *slog.Logger
}

// NewExecutor wires the executor over the shared state manager and engines.
func NewExecutor(mgr *state.Manager, engine *amm.Engine, l *ledger.Ledger, pool *liquidity.Pool) *Executor {
	return &Executor{
		state:   mgr,
		engine:  engine,
		ledger:  l,
		pool:    pool,
		emitter: events.NoopEmitter{},
		log:     slog.Default(),
	}
}

// SetEmitter configures the event emitter. Passing nil resets the no-op.
func (x *Executor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		x.emitter = events.NoopEmitter{}
		return
	}
	x.emitter = emitter
}

// SetMetrics wires the prometheus counters. A nil receiver disables them.
func (x *Executor) SetMetrics(m *metrics.TradeMetrics) {
	x.metrics = m
}

// SetLogger overrides the executor logger. Passing nil resets slog.Default.
func (x *Executor) SetLogger(log *slog.Logger) {
	if log == nil {
		x.log = slog.Default()
		return
	}
	x.log = log
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// validate checks an operation's static shape. Runtime conditions such as
// balances are deliberately not inspected here.
func (x *Executor) validate(op Operation) error {
	if strings.TrimSpace(op.Account) == "" {
		return fmt.Errorf("%w: empty account", ErrInvalidOperation)
	}
	base, quote := x.pool.Assets()
	recognized := func(a ledger.Asset) bool { return a == base || a == quote }
	switch op.Kind {
	case OpSwap:
		if !positive(op.Amount) {
			return fmt.Errorf("%w: non-positive swap amount", ErrInvalidOperation)
		}
		if op.FromAsset == op.ToAsset {
			return fmt.Errorf("%w: identical swap assets", ErrInvalidOperation)
		}
		if !recognized(op.FromAsset) || !recognized(op.ToAsset) {
			return fmt.Errorf("%w: unrecognised swap asset", ErrInvalidOperation)
		}
	case OpAddLiquidity, OpRemoveLiquidity:
		if !positive(op.AmountBase) || !positive(op.AmountQuote) {
			return fmt.Errorf("%w: non-positive liquidity amount", ErrInvalidOperation)
		}
	case OpMint:
		if !positive(op.Amount) {
			return fmt.Errorf("%w: non-positive mint amount", ErrInvalidOperation)
		}
		if !recognized(op.Asset) {
			return fmt.Errorf("%w: unrecognised mint asset", ErrInvalidOperation)
		}
	default:
		return ErrUnknownKind
	}
	return nil
}

func (x *Executor) validateAll(ops []Operation) error {
	if len(ops) == 0 {
		return ErrEmptyBatch
	}
	if len(ops) > MaxOperations {
		return fmt.Errorf("%w: %d over the cap of %d", ErrTooManyOperations, len(ops), MaxOperations)
	}
	for i, op := range ops {
		if err := x.validate(op); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

// sharesForWithdrawal converts a withdrawal expressed in asset amounts into a
// share count at the pool's current ratio, preferring the base side.
func (x *Executor) sharesForWithdrawal(op Operation) (*big.Int, error) {
	total, err := x.pool.TotalShares()
	if err != nil {
		return nil, err
	}
	reserveBase, reserveQuote, err := x.pool.Reserves()
	if err != nil {
		return nil, err
	}
	switch {
	case reserveBase.Sign() > 0:
		shares := new(big.Int).Mul(op.AmountBase, total)
		return shares.Quo(shares, reserveBase), nil
	case reserveQuote.Sign() > 0:
		shares := new(big.Int).Mul(op.AmountQuote, total)
		return shares.Quo(shares, reserveQuote), nil
	default:
		return nil, liquidity.ErrNoLiquidity
	}
}

// run executes one already-validated operation.
func (x *Executor) run(op Operation) OpResult {
	result := OpResult{Kind: op.Kind}
	switch op.Kind {
	case OpSwap:
		res, err := x.engine.Swap(op.Account, op.FromAsset, op.ToAsset, op.Amount)
		if err != nil {
			result.Err = err
			return result
		}
		result.Value = res.AmountOut
	case OpAddLiquidity:
		minted, err := x.pool.AddLiquidity(op.Account, op.AmountBase, op.AmountQuote)
		if err != nil {
			result.Err = err
			return result
		}
		result.Value = minted
	case OpRemoveLiquidity:
		shares, err := x.sharesForWithdrawal(op)
		if err != nil {
			result.Err = err
			return result
		}
		outBase, outQuote, err := x.pool.RemoveLiquidity(op.Account, shares)
		if err != nil {
			result.Err = err
			return result
		}
		result.ValueBase = outBase
		result.ValueQuote = outQuote
	case OpMint:
		if err := x.ledger.Mint(op.Account, op.Asset, op.Amount); err != nil {
			result.Err = err
			return result
		}
		result.Value = new(big.Int).Set(op.Amount)
	}
	return result
}

func (x *Executor) settle(id string, mode Mode, executed, failed uint32, outcome string) {
	x.emitter.Emit(events.BatchSettled{BatchID: id, Mode: string(mode), Executed: executed, Failed: failed})
	x.metrics.ObserveBatch(string(mode), outcome, failed)
}

// ExecuteAtomic runs the batch all-or-nothing: the first runtime failure
// rolls every mutation back and the report carries no partial results.
func (x *Executor) ExecuteAtomic(ops []Operation) (Report, error) {
	if err := x.validateAll(ops); err != nil {
		return Report{}, err
	}
	id := uuid.NewString()
	report := Report{BatchID: id, Mode: ModeAtomic}

	if err := x.state.Begin(); err != nil {
		return Report{}, err
	}
	for i, op := range ops {
		result := x.run(op)
		if result.Err != nil {
			if rbErr := x.state.Rollback(); rbErr != nil {
				return Report{}, rbErr
			}
			x.log.Info("atomic batch rolled back",
				"batchId", id,
				"operation", i,
				"kind", op.Kind.String(),
				"error", result.Err.Error(),
			)
			report.Failed = uint32(len(ops))
			x.settle(id, ModeAtomic, 0, report.Failed, "aborted")
			return report, fmt.Errorf("%w: operation %d (%s): %w", ErrBatchAborted, i, op.Kind, result.Err)
		}
		report.Results = append(report.Results, result)
	}
	if err := x.state.Commit(); err != nil {
		return Report{}, err
	}
	report.Executed = uint32(len(ops))
	x.settle(id, ModeAtomic, report.Executed, 0, "settled")
	return report, nil
}

// ExecuteBestEffort runs the batch keeping every operation that individually
// succeeds; failures are recorded per operation and execution continues.
func (x *Executor) ExecuteBestEffort(ops []Operation) (Report, error) {
	if err := x.validateAll(ops); err != nil {
		return Report{}, err
	}
	id := uuid.NewString()
	report := Report{BatchID: id, Mode: ModeBestEffort}

	for _, op := range ops {
		result := x.run(op)
		report.Results = append(report.Results, result)
		if result.Err != nil {
			report.Failed++
			continue
		}
		report.Executed++
	}
	outcome := "settled"
	if report.Failed > 0 {
		outcome = "partial"
	}
	x.settle(id, ModeBestEffort, report.Executed, report.Failed, outcome)
	return report, nil
}
