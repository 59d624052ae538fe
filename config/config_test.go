package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaptrade.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "XLM", cfg.BaseAsset)
	require.Equal(t, "USDC", cfg.QuoteAsset)
	require.Equal(t, int64(600), cfg.StaleThresholdSeconds)
	require.FileExists(t, path)

	// Reloading the written file round-trips cleanly.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadNormalisesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swaptrade.toml")
	require.NoError(t, os.WriteFile(path, []byte("BaseAsset = \"eth\"\nMaxSlippageBps = 500\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "ETH", cfg.BaseAsset)
	require.Equal(t, "USDC", cfg.QuoteAsset)
	require.Equal(t, uint32(500), cfg.MaxSlippageBps)
	require.Equal(t, int64(3_600), cfg.SwapWindowSeconds)
	require.Equal(t, int64(86_400), cfg.LPWindowSeconds)
}

func TestNormaliseRejectsIdenticalPair(t *testing.T) {
	cfg := &Config{BaseAsset: "xlm", QuoteAsset: "XLM "}
	require.Error(t, cfg.Normalise())
}

func TestNormaliseRejectsNegativeWindows(t *testing.T) {
	cfg := Default()
	cfg.SwapWindowSeconds = -1
	require.Error(t, cfg.Normalise())

	cfg = Default()
	cfg.StaleThresholdSeconds = -5
	require.Error(t, cfg.Normalise())
}
