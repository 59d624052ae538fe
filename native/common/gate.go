package common

import (
	"errors"
	"strings"
)

// ErrInvalidAccount indicates an empty account identifier.
var ErrInvalidAccount = errors.New("gate: invalid account")

// Storage exposes the subset of state access required by the gate.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	pausedKey    = []byte("gate/paused")
	frozenPrefix = []byte("gate/frozen/")
)

func frozenKey(account string) []byte {
	trimmed := strings.TrimSpace(account)
	buf := make([]byte, 0, len(frozenPrefix)+len(trimmed))
	buf = append(buf, frozenPrefix...)
	buf = append(buf, trimmed...)
	return buf
}

// Gate is the state-backed pause and freeze switchboard. Authorisation of who
// may flip the switches is handled by the host, not here.
type Gate struct {
	store Storage
}

// NewGate constructs a gate backed by the provided storage.
func NewGate(store Storage) *Gate {
	return &Gate{store: store}
}

// Pause halts all trading until Resume.
func (g *Gate) Pause() error {
	return g.store.KVPut(pausedKey, true)
}

// Resume lifts a pause.
func (g *Gate) Resume() error {
	return g.store.KVPut(pausedKey, false)
}

// IsPaused implements PauseView.
func (g *Gate) IsPaused() (bool, error) {
	var paused bool
	ok, err := g.store.KVGet(pausedKey, &paused)
	if err != nil || !ok {
		return false, err
	}
	return paused, nil
}

// Freeze bars the account from trading until Unfreeze.
func (g *Gate) Freeze(account string) error {
	if strings.TrimSpace(account) == "" {
		return ErrInvalidAccount
	}
	return g.store.KVPut(frozenKey(account), true)
}

// Unfreeze lifts a freeze.
func (g *Gate) Unfreeze(account string) error {
	if strings.TrimSpace(account) == "" {
		return ErrInvalidAccount
	}
	return g.store.KVPut(frozenKey(account), false)
}

// IsFrozen implements FreezeView.
func (g *Gate) IsFrozen(account string) (bool, error) {
	var frozen bool
	ok, err := g.store.KVGet(frozenKey(account), &frozen)
	if err != nil || !ok {
		return false, err
	}
	return frozen, nil
}
