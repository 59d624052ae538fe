package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"swaptrade/storage"
)

var (
	// ErrSnapshotActive indicates Begin was called while a snapshot is already open.
	ErrSnapshotActive = errors.New("state: snapshot already active")
	// ErrNoSnapshot indicates Commit or Rollback was called with no open snapshot.
	ErrNoSnapshot = errors.New("state: no active snapshot")
)

type journalEntry struct {
	value   []byte
	existed bool
}

// Manager mediates every read and write the engines perform against the
// underlying key-value store. Values are RLP encoded. A write journal captures
// the prior value of every key touched between Begin and Commit/Rollback so the
// batch executor can restore the entire state wholesale on failure.
type Manager struct {
	db       storage.Database
	journal  map[string]journalEntry
	snapshot bool
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the value stored at key into out. Missing keys report
// (false, nil) so callers can substitute zero-valued defaults.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	encoded, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value and stores it at key. While a snapshot is active the
// prior value (or its absence) is journalled exactly once per key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	if m.snapshot {
		if _, seen := m.journal[string(key)]; !seen {
			prior, err := m.db.Get(key)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				m.journal[string(key)] = journalEntry{}
			case err != nil:
				return err
			default:
				m.journal[string(key)] = journalEntry{value: prior, existed: true}
			}
		}
	}
	return m.db.Put(key, encoded)
}

// Begin opens a snapshot. Every subsequent KVPut records the key's prior state
// until Commit discards the journal or Rollback replays it.
func (m *Manager) Begin() error {
	if m.snapshot {
		return ErrSnapshotActive
	}
	m.journal = make(map[string]journalEntry)
	m.snapshot = true
	return nil
}

// Commit closes the snapshot, keeping all writes performed since Begin.
func (m *Manager) Commit() error {
	if !m.snapshot {
		return ErrNoSnapshot
	}
	m.journal = nil
	m.snapshot = false
	return nil
}

// Rollback restores every key mutated since Begin to its pre-snapshot state,
// deleting keys that did not exist. A partial restore would be a correctness
// bug, so the first replay error aborts and is surfaced to the caller.
func (m *Manager) Rollback() error {
	if !m.snapshot {
		return ErrNoSnapshot
	}
	for key, entry := range m.journal {
		if entry.existed {
			if err := m.db.Put([]byte(key), entry.value); err != nil {
				return err
			}
			continue
		}
		if err := m.db.Delete([]byte(key)); err != nil {
			return err
		}
	}
	m.journal = nil
	m.snapshot = false
	return nil
}
