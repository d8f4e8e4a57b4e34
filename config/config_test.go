package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected RPCAddress: %q", cfg.RPCAddress)
	}
	if cfg.FeePercent != 5 || cfg.RewardRate != 5 {
		t.Fatalf("unexpected default rates: %d/%d", cfg.FeePercent, cfg.RewardRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
RPCAddress = ":7000"
MetricsAddress = ":7001"
DataDir = "/tmp/kuma"
Owner = "0x00000000000000000000000000000000000000aa"
ModuleAccount = "0x00000000000000000000000000000000000000ff"
FeePercent = 2
RewardRate = 10
MaxSupply = "5000000"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":7000" {
		t.Fatalf("unexpected RPCAddress: %q", cfg.RPCAddress)
	}
	owner, err := cfg.OwnerAddress()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if owner[19] != 0xaa {
		t.Fatalf("unexpected owner: %x", owner)
	}
	supply, err := cfg.MaxSupplyAmount()
	if err != nil {
		t.Fatalf("max supply: %v", err)
	}
	if supply.String() != "5000000" {
		t.Fatalf("unexpected max supply: %s", supply)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := Config{
		RPCAddress:    ":8080",
		Owner:         "0x00000000000000000000000000000000000000aa",
		ModuleAccount: "0x0000000000000000000000000000000000000001",
		FeePercent:    5,
		RewardRate:    5,
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing rpc address", func(c *Config) { c.RPCAddress = " " }},
		{"bad owner", func(c *Config) { c.Owner = "not-an-address" }},
		{"bad module account", func(c *Config) { c.ModuleAccount = "0x123" }},
		{"fee out of range", func(c *Config) { c.FeePercent = 101 }},
		{"rate out of range", func(c *Config) { c.RewardRate = 101 }},
		{"bad max supply", func(c *Config) { c.MaxSupply = "twelve" }},
		{"negative max supply", func(c *Config) { c.MaxSupply = "-5" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEmptyMaxSupplyDisablesCap(t *testing.T) {
	cfg := Config{MaxSupply: "  "}
	supply, err := cfg.MaxSupplyAmount()
	if err != nil {
		t.Fatalf("max supply: %v", err)
	}
	if supply != nil {
		t.Fatalf("expected nil cap, got %s", supply)
	}
}
