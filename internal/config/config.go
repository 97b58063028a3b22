// Package config loads the raffle service configuration from a TOML file.
package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"raffle/internal/models"
)

// Config is the top-level service configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Raffle RaffleConfig `toml:"raffle"`
	VRF    VRFConfig    `toml:"vrf"`
	Payout PayoutConfig `toml:"payout"`
	Keeper KeeperConfig `toml:"keeper"`
	Store  StoreConfig  `toml:"store"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RaffleConfig holds the raffle parameters. The entrance fee is a decimal
// string in wei; it is fixed for the life of the instance.
type RaffleConfig struct {
	EntranceFeeWei  string `toml:"entrance_fee_wei"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// VRFConfig configures the randomness provider. Mode "http" talks to a
// remote coordinator at URL; mode "local" runs the in-process dev provider.
type VRFConfig struct {
	Mode                 string `toml:"mode"`
	URL                  string `toml:"url"`
	KeyHash              string `toml:"key_hash"`
	SubscriptionID       uint64 `toml:"subscription_id"`
	RequestConfirmations uint16 `toml:"request_confirmations"`
	CallbackGasLimit     uint32 `toml:"callback_gas_limit"`
	NumWords             uint32 `toml:"num_words"`
	LocalDelaySeconds    int    `toml:"local_delay_seconds"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// PayoutConfig configures the payment rail. Mode "http" posts transfers to
// the settlement service at URL; mode "log" only records them.
type PayoutConfig struct {
	Mode           string `toml:"mode"`
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// KeeperConfig configures the in-process upkeep poller.
type KeeperConfig struct {
	Enabled     bool `toml:"enabled"`
	PollSeconds int  `toml:"poll_seconds"`
}

// StoreConfig configures the notification log. When disabled the log is
// kept in memory only.
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Raffle.IntervalSeconds == 0 {
		c.Raffle.IntervalSeconds = 300
	}
	if c.VRF.Mode == "" {
		c.VRF.Mode = "local"
	}
	if c.VRF.RequestConfirmations == 0 {
		c.VRF.RequestConfirmations = 3
	}
	if c.VRF.CallbackGasLimit == 0 {
		c.VRF.CallbackGasLimit = 500000
	}
	if c.VRF.NumWords == 0 {
		c.VRF.NumWords = 1
	}
	if c.VRF.LocalDelaySeconds == 0 {
		c.VRF.LocalDelaySeconds = 2
	}
	if c.VRF.TimeoutSeconds == 0 {
		c.VRF.TimeoutSeconds = 10
	}
	if c.Payout.Mode == "" {
		c.Payout.Mode = "log"
	}
	if c.Payout.TimeoutSeconds == 0 {
		c.Payout.TimeoutSeconds = 10
	}
	if c.Keeper.PollSeconds == 0 {
		c.Keeper.PollSeconds = 15
	}
	if c.Store.Path == "" {
		c.Store.Path = "raffle_events.sqlite3"
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	fee, ok := new(big.Int).SetString(c.Raffle.EntranceFeeWei, 10)
	if !ok || fee.Sign() <= 0 {
		return fmt.Errorf("raffle.entrance_fee_wei must be a positive decimal wei amount, got %q", c.Raffle.EntranceFeeWei)
	}
	if c.Raffle.IntervalSeconds <= 0 {
		return fmt.Errorf("raffle.interval_seconds must be positive, got %d", c.Raffle.IntervalSeconds)
	}

	switch c.VRF.Mode {
	case "local":
	case "http":
		if c.VRF.URL == "" {
			return fmt.Errorf("vrf.url is required when vrf.mode is %q", c.VRF.Mode)
		}
	default:
		return fmt.Errorf("vrf.mode must be \"local\" or \"http\", got %q", c.VRF.Mode)
	}
	if c.VRF.KeyHash != "" && len(common.FromHex(c.VRF.KeyHash)) != common.HashLength {
		return fmt.Errorf("vrf.key_hash must be a 32-byte hex value, got %q", c.VRF.KeyHash)
	}

	switch c.Payout.Mode {
	case "log":
	case "http":
		if c.Payout.URL == "" {
			return fmt.Errorf("payout.url is required when payout.mode is %q", c.Payout.Mode)
		}
	default:
		return fmt.Errorf("payout.mode must be \"log\" or \"http\", got %q", c.Payout.Mode)
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the event store is enabled")
	}
	return nil
}

// DrawSettings builds the immutable raffle settings from the configuration.
// Call after Validate.
func (c *Config) DrawSettings() models.DrawSettings {
	fee, _ := new(big.Int).SetString(c.Raffle.EntranceFeeWei, 10)
	return models.DrawSettings{
		EntranceFee:          fee,
		Interval:             time.Duration(c.Raffle.IntervalSeconds) * time.Second,
		KeyHash:              common.HexToHash(c.VRF.KeyHash),
		SubscriptionID:       c.VRF.SubscriptionID,
		RequestConfirmations: c.VRF.RequestConfirmations,
		CallbackGasLimit:     c.VRF.CallbackGasLimit,
		NumWords:             c.VRF.NumWords,
	}
}
