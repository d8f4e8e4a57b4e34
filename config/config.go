package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config is the node configuration, persisted as TOML.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Owner          string `toml:"Owner"`
	ModuleAccount  string `toml:"ModuleAccount"`
	FeePercent     uint64 `toml:"FeePercent"`
	RewardRate     uint64 `toml:"RewardRate"`
	MaxSupply      string `toml:"MaxSupply"`
}

// Load reads the configuration from path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses, rate bounds, and the supply cap.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress is required")
	}
	if _, err := c.OwnerAddress(); err != nil {
		return err
	}
	if _, err := c.ModuleAddress(); err != nil {
		return err
	}
	if c.FeePercent > 100 || c.RewardRate > 100 {
		return fmt.Errorf("config: FeePercent and RewardRate must be within 0-100")
	}
	if _, err := c.MaxSupplyAmount(); err != nil {
		return err
	}
	return nil
}

// OwnerAddress parses the configured owner address.
func (c *Config) OwnerAddress() ([20]byte, error) {
	return parseAddress("Owner", c.Owner)
}

// ModuleAddress parses the configured module holding account.
func (c *Config) ModuleAddress() ([20]byte, error) {
	return parseAddress("ModuleAccount", c.ModuleAccount)
}

// MaxSupplyAmount parses the configured supply cap. Empty disables the cap.
func (c *Config) MaxSupplyAmount() (*big.Int, error) {
	trimmed := strings.TrimSpace(c.MaxSupply)
	if trimmed == "" {
		return nil, nil
	}
	supply, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || supply.Sign() < 0 {
		return nil, fmt.Errorf("config: invalid MaxSupply %q", c.MaxSupply)
	}
	return supply, nil
}

func parseAddress(field, value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("config: %s must be a hex address, got %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8080",
		MetricsAddress: ":9090",
		DataDir:        "./kuma-data",
		Owner:          common.Address{}.Hex(),
		ModuleAccount:  common.HexToAddress("0x01").Hex(),
		FeePercent:     5,
		RewardRate:     5,
		MaxSupply:      "1000000000000",
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
