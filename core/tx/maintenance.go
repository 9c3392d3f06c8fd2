package tx

import (
	"math"
	"math/big"

	"github.com/chrischabot/shardeum/core/types"
)

// MaintenanceAmount returns the upkeep charged against account for the time
// elapsed since its last maintenance:
//
//	balance * (1 - (1-maintenanceFee)^(elapsed/maintenanceInterval))
//
// Nothing is charged until a full interval has passed. When a charge applies
// the account's LastMaintenance moves to timestamp.
func MaintenanceAmount(timestamp int64, account *types.UserAccount, params types.NetworkParameters) *big.Int {
	if params.MaintenanceInterval <= 0 {
		return new(big.Int)
	}
	elapsed := timestamp - account.LastMaintenance
	if elapsed < params.MaintenanceInterval {
		return new(big.Int)
	}
	account.LastMaintenance = timestamp

	periods := float64(elapsed) / float64(params.MaintenanceInterval)
	factor := 1 - math.Pow(1-params.MaintenanceFee, periods)
	if factor <= 0 || math.IsNaN(factor) || account.Balance == nil || account.Balance.Sign() <= 0 {
		return new(big.Int)
	}
	amount, _ := new(big.Float).Mul(new(big.Float).SetInt(account.Balance), big.NewFloat(factor)).Int(nil)
	if amount.Sign() < 0 {
		return new(big.Int)
	}
	return amount
}
