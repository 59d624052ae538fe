package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the engine's runtime settings.
type Config struct {
	DataDir    string `toml:"DataDir"`
	BaseAsset  string `toml:"BaseAsset"`
	QuoteAsset string `toml:"QuoteAsset"`
	Env        string `toml:"Env"`

	// StaleThresholdSeconds is the maximum oracle quote age.
	StaleThresholdSeconds int64 `toml:"StaleThresholdSeconds"`
	// MaxSlippageBps caps swap slippage. Zero leaves swaps unrestricted.
	MaxSlippageBps uint32 `toml:"MaxSlippageBps"`
	// SwapWindowSeconds and LPWindowSeconds size the rate-limit windows.
	SwapWindowSeconds int64 `toml:"SwapWindowSeconds"`
	LPWindowSeconds   int64 `toml:"LPWindowSeconds"`
}

// Default returns the configuration the engine ships with.
func Default() *Config {
	return &Config{
		DataDir:               "./swaptrade-data",
		BaseAsset:             "XLM",
		QuoteAsset:            "USDC",
		Env:                   "local",
		StaleThresholdSeconds: 600,
		MaxSlippageBps:        0,
		SwapWindowSeconds:     3_600,
		LPWindowSeconds:       86_400,
	}
}

// Load reads the configuration at path, creating it with defaults when the
// file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalise(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Normalise fills unset fields with defaults and rejects contradictory
// settings.
func (c *Config) Normalise() error {
	defaults := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaults.DataDir
	}
	c.BaseAsset = strings.ToUpper(strings.TrimSpace(c.BaseAsset))
	c.QuoteAsset = strings.ToUpper(strings.TrimSpace(c.QuoteAsset))
	if c.BaseAsset == "" {
		c.BaseAsset = defaults.BaseAsset
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = defaults.QuoteAsset
	}
	if c.BaseAsset == c.QuoteAsset {
		return fmt.Errorf("base and quote assets must differ, both are %s", c.BaseAsset)
	}
	if c.StaleThresholdSeconds < 0 {
		return fmt.Errorf("StaleThresholdSeconds must be non-negative, got %d", c.StaleThresholdSeconds)
	}
	if c.StaleThresholdSeconds == 0 {
		c.StaleThresholdSeconds = defaults.StaleThresholdSeconds
	}
	if c.SwapWindowSeconds < 0 || c.LPWindowSeconds < 0 {
		return fmt.Errorf("rate-limit windows must be non-negative")
	}
	if c.SwapWindowSeconds == 0 {
		c.SwapWindowSeconds = defaults.SwapWindowSeconds
	}
	if c.LPWindowSeconds == 0 {
		c.LPWindowSeconds = defaults.LPWindowSeconds
	}
	return nil
}

// createDefault writes the default configuration to path and returns it.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
