package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vivianchibueze694-alt/bridegeescrow/native/escrow"
)

// Config carries the service configuration decoded from TOML.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	// Owner is the administrative principal, hex encoded.
	Owner string `toml:"Owner"`
	// Treasury receives the protocol fee, hex encoded.
	Treasury string `toml:"Treasury"`

	MinEscrowAmount uint64 `toml:"MinEscrowAmount"`
	MaxEscrowAmount uint64 `toml:"MaxEscrowAmount"`

	Escrow EscrowConfig `toml:"Escrow"`
}

// EscrowConfig mirrors escrow.Params in TOML form. Zero values fall back to
// the engine defaults.
type EscrowConfig struct {
	MaxMilestones      uint32 `toml:"MaxMilestones"`
	MaxOpenEscrows     uint32 `toml:"MaxOpenEscrows"`
	DeliveryTimeout    uint64 `toml:"DeliveryTimeout"`
	DisputeTimeout     uint64 `toml:"DisputeTimeout"`
	ChallengeWindow    uint64 `toml:"ChallengeWindow"`
	RateLimitWindow    uint64 `toml:"RateLimitWindow"`
	RateLimitMax       uint32 `toml:"RateLimitMax"`
	MinArbitratorStake uint64 `toml:"MinArbitratorStake"`
	TreasuryBps        uint32 `toml:"TreasuryBps"`
	ArbitratorBps      uint32 `toml:"ArbitratorBps"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8681"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./data"
	}
	if c.MinEscrowAmount == 0 {
		c.MinEscrowAmount = 1000
	}
	if c.MaxEscrowAmount == 0 {
		c.MaxEscrowAmount = 1_000_000_000_000
	}
	defaults := escrow.DefaultParams()
	if c.Escrow.MaxMilestones == 0 {
		c.Escrow.MaxMilestones = defaults.MaxMilestones
	}
	if c.Escrow.MaxOpenEscrows == 0 {
		c.Escrow.MaxOpenEscrows = defaults.MaxOpenEscrows
	}
	if c.Escrow.DeliveryTimeout == 0 {
		c.Escrow.DeliveryTimeout = defaults.DeliveryTimeout
	}
	if c.Escrow.DisputeTimeout == 0 {
		c.Escrow.DisputeTimeout = defaults.DisputeTimeout
	}
	if c.Escrow.ChallengeWindow == 0 {
		c.Escrow.ChallengeWindow = defaults.ChallengeWindow
	}
	if c.Escrow.RateLimitWindow == 0 {
		c.Escrow.RateLimitWindow = defaults.RateLimitWindow
	}
	if c.Escrow.RateLimitMax == 0 {
		c.Escrow.RateLimitMax = defaults.RateLimitMax
	}
	if c.Escrow.MinArbitratorStake == 0 {
		c.Escrow.MinArbitratorStake = defaults.MinArbitratorStake
	}
	if c.Escrow.TreasuryBps == 0 {
		c.Escrow.TreasuryBps = defaults.TreasuryBps
	}
	if c.Escrow.ArbitratorBps == 0 {
		c.Escrow.ArbitratorBps = defaults.ArbitratorBps
	}
}

// Validate checks the invariants the engine depends on.
func (c *Config) Validate() error {
	if c.MinEscrowAmount == 0 || c.MinEscrowAmount >= c.MaxEscrowAmount {
		return fmt.Errorf("config: escrow limits require 0 < min < max")
	}
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("config: Owner is required")
	}
	if strings.TrimSpace(c.Treasury) == "" {
		return fmt.Errorf("config: Treasury is required")
	}
	return c.Params().Validate()
}

// Params converts the escrow section into engine parameters.
func (c *Config) Params() escrow.Params {
	return escrow.Params{
		MaxMilestones:      c.Escrow.MaxMilestones,
		MaxOpenEscrows:     c.Escrow.MaxOpenEscrows,
		DeliveryTimeout:    c.Escrow.DeliveryTimeout,
		DisputeTimeout:     c.Escrow.DisputeTimeout,
		ChallengeWindow:    c.Escrow.ChallengeWindow,
		RateLimitWindow:    c.Escrow.RateLimitWindow,
		RateLimitMax:       c.Escrow.RateLimitMax,
		MinArbitratorStake: c.Escrow.MinArbitratorStake,
		TreasuryBps:        c.Escrow.TreasuryBps,
		ArbitratorBps:      c.Escrow.ArbitratorBps,
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
