package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/chrischabot/shardeum/core/types"
)

// Params parses the configured network section into runtime parameters.
func (n Network) Params() (types.NetworkParameters, error) {
	params := types.NetworkParameters{
		MaintenanceFee:      n.MaintenanceFee,
		MaintenanceInterval: n.MaintenanceInterval,
		StabilityScaleMul:   n.StabilityScaleMul,
		StabilityScaleDiv:   n.StabilityScaleDiv,
		CertCycleDuration:   n.CertCycleDuration,
	}
	var err error
	if params.TransactionFee, err = parseUintAmount(n.TransactionFee); err != nil {
		return params, fmt.Errorf("invalid network.TransactionFee: %w", err)
	}
	if params.StakeRequiredUsd, err = parseUintAmount(n.StakeRequiredUsd); err != nil {
		return params, fmt.Errorf("invalid network.StakeRequiredUsd: %w", err)
	}
	if params.NodePenaltyUsd, err = parseUintAmount(n.NodePenaltyUsd); err != nil {
		return params, fmt.Errorf("invalid network.NodePenaltyUsd: %w", err)
	}
	if params.NodeRewardAmountUsd, err = parseUintAmount(n.NodeRewardAmountUsd); err != nil {
		return params, fmt.Errorf("invalid network.NodeRewardAmountUsd: %w", err)
	}
	return params, nil
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal integer: %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("must not be negative: %q", raw)
	}
	return value, nil
}
