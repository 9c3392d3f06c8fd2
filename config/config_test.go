package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrischabot/shardeum/core/types"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.NetworkAccount != types.DefaultNetworkAccountID {
		t.Fatalf("unexpected network account %q", cfg.NetworkAccount)
	}
	if cfg.Mode != ModeRelease {
		t.Fatalf("expected release mode, got %q", cfg.Mode)
	}
	if _, err := os.Stat(cfg.NodeKeystorePath); err != nil {
		t.Fatalf("expected keystore to be created: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.NodeKeystorePath != cfg.NodeKeystorePath {
		t.Fatalf("keystore path changed across reload: %q vs %q", reloaded.NodeKeystorePath, cfg.NodeKeystorePath)
	}
	if reloaded.Bootstrap.PollInterval != time.Second {
		t.Fatalf("expected default poll interval, got %s", reloaded.Bootstrap.PollInterval)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "127.0.0.1:9100"
DataDir = "./data"
FirstSeed = true
Mode = "debug"
Version = "1.1.3"

[network]
TransactionFee = "10"
StakeRequiredUsd = "500"
StabilityScaleMul = 2
StabilityScaleDiv = 1
MaintenanceFee = 0.25
MaintenanceInterval = 1000

[bootstrap]
InitialGrace = "1s"
PollInterval = "250ms"

[flags]
txNoncePreCheck = false
ChainID = 1337
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.FirstSeed || cfg.Mode != ModeDebug {
		t.Fatalf("unexpected seed/mode: %v %q", cfg.FirstSeed, cfg.Mode)
	}
	if cfg.Bootstrap.InitialGrace != time.Second || cfg.Bootstrap.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected bootstrap waits: %+v", cfg.Bootstrap)
	}
	if cfg.Bootstrap.NetworkGrace != 10*time.Second {
		t.Fatalf("expected default network grace, got %s", cfg.Bootstrap.NetworkGrace)
	}

	params, err := cfg.Network.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.TransactionFee.Int64() != 10 || params.StakeRequiredUsd.Int64() != 500 {
		t.Fatalf("unexpected params: %+v", params)
	}

	flags, err := cfg.ResolveFlags()
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if flags.TxNoncePreCheck {
		t.Fatalf("expected txNoncePreCheck override to apply")
	}
	if flags.ChainID != 1337 {
		t.Fatalf("expected chain id 1337, got %d", flags.ChainID)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("DataDir = \"./data\"\nBogus = 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "Bogus") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsBadFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("DataDir = \"./data\"\n[flags]\ntxNoncePreCheck = \"yes\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected type mismatch to fail")
	}
}

func TestValidateConfig(t *testing.T) {
	cfg := &Config{Mode: ModeRelease, DataDir: "d", Network: defaultNetwork(), Bootstrap: defaultBootstrap()}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	bad := *cfg
	bad.Mode = "turbo"
	if err := ValidateConfig(&bad); err == nil {
		t.Fatalf("expected unknown mode to fail")
	}
	bad = *cfg
	bad.Network.StabilityScaleDiv = 0
	if err := ValidateConfig(&bad); err == nil {
		t.Fatalf("expected zero divisor to fail")
	}
	bad = *cfg
	bad.Network.TransactionFee = "-1"
	if err := ValidateConfig(&bad); err == nil {
		t.Fatalf("expected negative fee to fail")
	}
}
