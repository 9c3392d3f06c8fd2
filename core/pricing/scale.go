package pricing

import (
	"fmt"
	"math/big"

	"github.com/chrischabot/shardeum/core/types"
)

// Scaler converts USD-denominated amounts into native units using the current
// network parameters.
type Scaler interface {
	Scale(amountUsd *big.Int, params types.NetworkParameters) (*big.Int, error)
}

// StabilityScaler applies the network stability factor.
type StabilityScaler struct{}

func (StabilityScaler) Scale(amountUsd *big.Int, params types.NetworkParameters) (*big.Int, error) {
	return ScaleByStabilityFactor(amountUsd, params)
}

// ScaleByStabilityFactor returns amountUsd * StabilityScaleMul / StabilityScaleDiv.
func ScaleByStabilityFactor(amountUsd *big.Int, params types.NetworkParameters) (*big.Int, error) {
	if amountUsd == nil {
		return big.NewInt(0), nil
	}
	if params.StabilityScaleDiv == 0 {
		return nil, fmt.Errorf("pricing: stability scale divisor is zero")
	}
	scaled := new(big.Int).Mul(amountUsd, new(big.Int).SetUint64(params.StabilityScaleMul))
	return scaled.Quo(scaled, new(big.Int).SetUint64(params.StabilityScaleDiv)), nil
}
