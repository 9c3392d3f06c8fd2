package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
)

type Config struct {
	RPCAddress       string         `toml:"RPCAddress"`
	DataDir          string         `toml:"DataDir"`
	GenesisFile      string         `toml:"GenesisFile"`
	NodeKeystorePath string         `toml:"NodeKeystorePath"`
	NetworkAccount   string         `toml:"NetworkAccount"`
	FirstSeed        bool           `toml:"FirstSeed"`
	Mode             Mode           `toml:"Mode"`
	Version          string         `toml:"Version"`
	Logging          Logging        `toml:"logging"`
	Network          Network        `toml:"network"`
	Bootstrap        Bootstrap      `toml:"bootstrap"`
	Telemetry        Telemetry      `toml:"telemetry"`
	Flags            map[string]any `toml:"flags,omitempty"`
}

// Load loads the configuration from the given path, writing a default file
// and node keystore when none exists. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(cfg)
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.ResolveFlags(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveFlags builds the starting flag snapshot: defaults, then the
// migrations up to Version, then the [flags] overrides.
func (c *Config) ResolveFlags() (Flags, error) {
	flags := DefaultFlags()
	if c.Version != "" {
		flags = Migrate(flags, c.Version)
	}
	if len(c.Flags) == 0 {
		return flags, nil
	}
	return flags.WithOverrides(c.Flags)
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":9001"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./shardeum-data"
	}
	if strings.TrimSpace(cfg.NetworkAccount) == "" {
		cfg.NetworkAccount = types.DefaultNetworkAccountID
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeRelease
	}
	if cfg.Network == (Network{}) {
		cfg.Network = defaultNetwork()
	}
	defaults := defaultBootstrap()
	if cfg.Bootstrap.InitialGrace <= 0 {
		cfg.Bootstrap.InitialGrace = defaults.InitialGrace
	}
	if cfg.Bootstrap.NetworkGrace <= 0 {
		cfg.Bootstrap.NetworkGrace = defaults.NetworkGrace
	}
	if cfg.Bootstrap.ExistingWait <= 0 {
		cfg.Bootstrap.ExistingWait = defaults.ExistingWait
	}
	if cfg.Bootstrap.PollInterval <= 0 {
		cfg.Bootstrap.PollInterval = defaults.PollInterval
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.NodeKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.NodeKeystorePath != keystorePath {
		cfg.NodeKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:     ":9001",
		DataDir:        "./shardeum-data",
		NetworkAccount: types.DefaultNetworkAccountID,
		Mode:           ModeRelease,
		Network:        defaultNetwork(),
		Bootstrap:      defaultBootstrap(),
	}
	cfg.NodeKeystorePath = keystorePath

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

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "node.keystore")
}
