package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	// ErrInvalidAccount indicates an empty account identifier.
	ErrInvalidAccount = errors.New("ledger: invalid account")
	// ErrInvalidAsset indicates an empty asset symbol.
	ErrInvalidAsset = errors.New("ledger: invalid asset")
	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = errors.New("ledger: amount must be non-negative")
	// ErrInsufficientFunds indicates a debit larger than the current balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// Asset identifies a tradable asset by its canonical upper-case symbol.
type Asset string

// NormalizeAsset canonicalises asset symbols for consistent lookups.
func NormalizeAsset(symbol string) Asset {
	return Asset(strings.ToUpper(strings.TrimSpace(symbol)))
}

// Storage exposes the subset of state access required by the balance ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type storedBalance struct {
	Amount string
}

// Ledger is the ground truth for all account holdings. Balances are integer
// quantities in the smallest unit and never go negative: every debit check
// happens before any mutation.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger backed by the provided storage.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

func validate(account string, asset Asset) error {
	if strings.TrimSpace(account) == "" {
		return ErrInvalidAccount
	}
	if strings.TrimSpace(string(asset)) == "" {
		return ErrInvalidAsset
	}
	return nil
}

// BalanceOf returns the balance for (account, asset), defaulting to zero for
// keys that have never been written.
func (l *Ledger) BalanceOf(account string, asset Asset) (*big.Int, error) {
	if err := validate(account, asset); err != nil {
		return nil, err
	}
	var stored storedBalance
	ok, err := l.store.KVGet(balanceKey(account, asset), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(stored.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("ledger: corrupt balance record for %s/%s", account, asset)
	}
	return amount, nil
}

func (l *Ledger) putBalance(account string, asset Asset, amount *big.Int) error {
	return l.store.KVPut(balanceKey(account, asset), &storedBalance{Amount: amount.String()})
}

// Credit adds amount to (account, asset). Amount must be non-negative.
func (l *Ledger) Credit(account string, asset Asset, amount *big.Int) error {
	if err := validate(account, asset); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := l.BalanceOf(account, asset)
	if err != nil {
		return err
	}
	return l.putBalance(account, asset, new(big.Int).Add(current, amount))
}

// Mint credits newly issued units to (account, asset). It is the entry-point
// surface's name for a credit and shares its semantics.
func (l *Ledger) Mint(account string, asset Asset, amount *big.Int) error {
	return l.Credit(account, asset, amount)
}

// Debit subtracts amount from (account, asset), failing with
// ErrInsufficientFunds before any mutation when the balance is too low.
func (l *Ledger) Debit(account string, asset Asset, amount *big.Int) error {
	if err := validate(account, asset); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := l.BalanceOf(account, asset)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	return l.putBalance(account, asset, new(big.Int).Sub(current, amount))
}

// Transfer debits debitAmount of fromAsset and credits creditAmount of toAsset
// as one unit. The two amounts may differ, which is how a swap settles its
// post-slippage output. The debit check runs before either side mutates.
func (l *Ledger) Transfer(account string, fromAsset, toAsset Asset, debitAmount, creditAmount *big.Int) error {
	if err := validate(account, fromAsset); err != nil {
		return err
	}
	if err := validate(account, toAsset); err != nil {
		return err
	}
	if debitAmount == nil || debitAmount.Sign() < 0 || creditAmount == nil || creditAmount.Sign() < 0 {
		return ErrInvalidAmount
	}
	current, err := l.BalanceOf(account, fromAsset)
	if err != nil {
		return err
	}
	if current.Cmp(debitAmount) < 0 {
		return ErrInsufficientFunds
	}
	if err := l.putBalance(account, fromAsset, new(big.Int).Sub(current, debitAmount)); err != nil {
		return err
	}
	target, err := l.BalanceOf(account, toAsset)
	if err != nil {
		return err
	}
	return l.putBalance(account, toAsset, new(big.Int).Add(target, creditAmount))
}
