package common

import (
	"testing"

	"github.com/stretchr/testify/require"

	"swaptrade/state"
	"swaptrade/storage"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	return NewGate(state.NewManager(storage.NewMemDB()))
}

func TestGateDefaultsOpen(t *testing.T) {
	g := newGate(t)
	require.NoError(t, Guard(g, g, "alice"))
}

func TestPauseAndResume(t *testing.T) {
	g := newGate(t)
	require.NoError(t, g.Pause())
	require.ErrorIs(t, Guard(g, g, "alice"), ErrPaused)

	require.NoError(t, g.Resume())
	require.NoError(t, Guard(g, g, "alice"))
}

func TestFreezeTargetsSingleAccount(t *testing.T) {
	g := newGate(t)
	require.NoError(t, g.Freeze("alice"))
	require.ErrorIs(t, Guard(g, g, "alice"), ErrAccountFrozen)
	require.NoError(t, Guard(g, g, "bob"))

	require.NoError(t, g.Unfreeze("alice"))
	require.NoError(t, Guard(g, g, "alice"))
}

func TestGuardWithNilViewsPasses(t *testing.T) {
	require.NoError(t, Guard(nil, nil, "alice"))
}
