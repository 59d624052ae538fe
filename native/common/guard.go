package common

import "errors"

var (
	// ErrPaused indicates the engine is administratively halted.
	ErrPaused = errors.New("engine paused")
	// ErrAccountFrozen indicates the acting account is administratively frozen.
	ErrAccountFrozen = errors.New("account frozen")
)

// PauseView reports whether the engine as a whole is halted.
type PauseView interface {
	IsPaused() (bool, error)
}

// FreezeView reports whether a specific account is barred from trading.
type FreezeView interface {
	IsFrozen(account string) (bool, error)
}

// Guard short-circuits an operation when the engine is paused or the account
// is frozen. Nil views pass, so components can leave the gate unconfigured.
func Guard(p PauseView, f FreezeView, account string) error {
	if p != nil {
		paused, err := p.IsPaused()
		if err != nil {
			return err
		}
		if paused {
			return ErrPaused
		}
	}
	if f != nil {
		frozen, err := f.IsFrozen(account)
		if err != nil {
			return err
		}
		if frozen {
			return ErrAccountFrozen
		}
	}
	return nil
}
