package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swaptrade/storage"
)

type record struct {
	Amount string
	Count  uint64
}

func TestManagerRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.KVPut([]byte("a"), &record{Amount: "100", Count: 3}))

	var got record
	ok, err := m.KVGet([]byte("a"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "100", got.Amount)
	require.Equal(t, uint64(3), got.Count)
}

func TestManagerMissingKeyReportsZeroValue(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	var got record
	ok, err := m.KVGet([]byte("missing"), &got)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, record{}, got)
}

func TestManagerRollbackRestoresPriorValues(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.KVPut([]byte("a"), &record{Amount: "1"}))

	require.NoError(t, m.Begin())
	require.NoError(t, m.KVPut([]byte("a"), &record{Amount: "2"}))
	require.NoError(t, m.KVPut([]byte("a"), &record{Amount: "3"}))
	require.NoError(t, m.KVPut([]byte("b"), &record{Amount: "9"}))
	require.NoError(t, m.Rollback())

	var a record
	ok, err := m.KVGet([]byte("a"), &a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", a.Amount)

	ok, err = m.KVGet([]byte("b"), nil)
	require.NoError(t, err)
	require.False(t, ok, "key written during the snapshot should be deleted")
}

func TestManagerCommitKeepsWrites(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.Begin())
	require.NoError(t, m.KVPut([]byte("a"), &record{Amount: "7"}))
	require.NoError(t, m.Commit())

	var a record
	ok, err := m.KVGet([]byte("a"), &a)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "7", a.Amount)
}

func TestManagerSnapshotLifecycleErrors(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.ErrorIs(t, m.Commit(), ErrNoSnapshot)
	require.ErrorIs(t, m.Rollback(), ErrNoSnapshot)
	require.NoError(t, m.Begin())
	require.ErrorIs(t, m.Begin(), ErrSnapshotActive)
	require.NoError(t, m.Commit())
}
