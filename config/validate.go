package config

import (
	"fmt"
	"strings"
)

// ValidateConfig rejects configurations the node cannot run with.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	switch cfg.Mode {
	case ModeRelease, ModeDebug:
	default:
		return fmt.Errorf("config: unknown Mode %q", cfg.Mode)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir is required")
	}
	if cfg.Network.StabilityScaleDiv == 0 {
		return fmt.Errorf("network: StabilityScaleDiv must be > 0")
	}
	if cfg.Network.MaintenanceFee < 0 || cfg.Network.MaintenanceFee > 1 {
		return fmt.Errorf("network: MaintenanceFee must be within [0,1]")
	}
	if _, err := cfg.Network.Params(); err != nil {
		return err
	}
	if cfg.Bootstrap.PollInterval <= 0 {
		return fmt.Errorf("bootstrap: PollInterval must be > 0")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0,1]")
	}
	return nil
}
