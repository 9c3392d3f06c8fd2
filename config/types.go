package config

import "time"

// Mode selects release or debug behaviour for genesis synthesis.
type Mode string

const (
	ModeRelease Mode = "release"
	ModeDebug   Mode = "debug"
)

// Network holds the default network parameters the InitNetwork transaction
// installs. Integer amounts are decimal strings in native units.
type Network struct {
	TransactionFee      string  `toml:"TransactionFee"`
	MaintenanceFee      float64 `toml:"MaintenanceFee"`
	MaintenanceInterval int64   `toml:"MaintenanceInterval"`
	StakeRequiredUsd    string  `toml:"StakeRequiredUsd"`
	NodePenaltyUsd      string  `toml:"NodePenaltyUsd"`
	NodeRewardAmountUsd string  `toml:"NodeRewardAmountUsd"`
	StabilityScaleMul   uint64  `toml:"StabilityScaleMul"`
	StabilityScaleDiv   uint64  `toml:"StabilityScaleDiv"`
	CertCycleDuration   uint64  `toml:"CertCycleDuration"`
}

// Bootstrap tunes the waits of the genesis sequence.
type Bootstrap struct {
	InitialGrace time.Duration `toml:"InitialGrace"`
	NetworkGrace time.Duration `toml:"NetworkGrace"`
	ExistingWait time.Duration `toml:"ExistingWait"`
	PollInterval time.Duration `toml:"PollInterval"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Logging configures the log sink.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

func defaultNetwork() Network {
	return Network{
		TransactionFee:      "1000000000000000",
		MaintenanceFee:      0,
		MaintenanceInterval: 86400000,
		StakeRequiredUsd:    "10000000000000000000",
		NodePenaltyUsd:      "10000000000000000000",
		NodeRewardAmountUsd: "1000000000000000000",
		StabilityScaleMul:   1000,
		StabilityScaleDiv:   1000,
		CertCycleDuration:   10,
	}
}

func defaultBootstrap() Bootstrap {
	return Bootstrap{
		InitialGrace: 5 * time.Second,
		NetworkGrace: 10 * time.Second,
		ExistingWait: 5 * time.Second,
		PollInterval: time.Second,
	}
}
