package dispatch

import (
	"math/big"
	"strings"

	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/crypto"
)

const (
	reasonBadNominator       = "Invalid nominator address in stake coins tx"
	reasonBadNominee         = "Invalid nominee address in stake coins tx"
	reasonStakeValueMismatch = "Tx value and stake amount are different"
	reasonStakeBelowMinimum  = "Stake amount is less than minimum required stake amount"
	reasonNodeTaken          = "This node is already staked by another account!"
	reasonAlreadyNominating  = "This account has already staked to a different node."
	reasonSenderNotFound     = "This sender account is not found!"
	reasonNoNominator        = "No one has staked to this account!"
	reasonNoStakeLocked      = "There is no staked amount in this node!"
	reasonStakedByOther      = "This node is staked by another account. You can't unstake it!"
	reasonNodeActive         = "This node is still active in the network. You can unstake only after the node leaves the network!"
	reasonNoRewardEnd        = "No reward endTime set, can't unstake node yet"
	reasonNomineeNotFound    = "This nominee node is not found!"
)

// senderMatches compares a nominator address with the recovered sender in
// the lower-case hex form the sender is rendered in.
func senderMatches(nominator string, parsed *ParsedTx) bool {
	if nominator == "" || parsed == nil {
		return false
	}
	return strings.ToLower(nominator) == strings.ToLower(parsed.Sender.Hex())
}

// checkStake evaluates the staking rules in order and returns the first
// failing reason, or "" when the stake is admissible.
func (d *Dispatcher) checkStake(parsed *ParsedTx, app *AppData) (string, error) {
	stake := app.Stake
	if !senderMatches(stake.Nominator, parsed) {
		return reasonBadNominator, nil
	}
	if !crypto.IsAccountID(stake.Nominee) {
		return reasonBadNominee, nil
	}
	amount := big.NewInt(0)
	if stake.Stake != nil {
		amount = stake.Stake.ToInt()
	}
	if amount.Cmp(parsed.Value) != 0 {
		return reasonStakeValueMismatch, nil
	}

	minimum, err := d.minimumStake(app)
	if err != nil {
		return "", err
	}
	if amount.Cmp(minimum) < 0 && !d.topUpAllowed(app, amount) {
		return reasonStakeBelowMinimum, nil
	}

	if node := app.NomineeAccount; node != nil && node.Nominator != "" && node.Nominator != stake.Nominator {
		return reasonNodeTaken, nil
	}
	if nominator := app.NominatorAccount; nominator != nil && nominator.OperatorInfo != nil {
		if nominee := nominator.OperatorInfo.Nominee; nominee != "" && nominee != stake.Nominee {
			return reasonAlreadyNominating, nil
		}
	}
	return "", nil
}

// minimumStake reads the USD floor from the network account carried in the
// app data. A missing account or requirement is an error, never a zero floor.
func (d *Dispatcher) minimumStake(app *AppData) (*big.Int, error) {
	if app.NetworkAccount == nil {
		return nil, coreerrors.ErrNetworkAccountUnset
	}
	required := app.NetworkAccount.Current.StakeRequiredUsd
	if required == nil {
		return nil, coreerrors.ErrStakeRequiredUnset
	}
	params, err := d.networkParams()
	if err != nil {
		return nil, err
	}
	return d.scaler.Scale(required, params)
}

// topUpAllowed reports whether an under-minimum stake may proceed because
// the nominator already holds a nonzero stake.
func (d *Dispatcher) topUpAllowed(app *AppData, amount *big.Int) bool {
	if !d.flags.FixExtraStakeLessThanMin || amount.Sign() <= 0 {
		return false
	}
	nominator := app.NominatorAccount
	if nominator == nil || nominator.OperatorInfo == nil {
		return false
	}
	return nominator.OperatorInfo.StakeAmount().Sign() != 0
}

// checkUnstake evaluates the unstaking rules in order and returns the first
// failing reason, or "" when the unstake is admissible.
func (d *Dispatcher) checkUnstake(parsed *ParsedTx, app *AppData) string {
	unstake := app.Unstake
	if !senderMatches(unstake.Nominator, parsed) {
		return reasonBadNominator
	}
	if unstake.Nominee == "" {
		return reasonBadNominee
	}
	if app.NominatorAccount == nil {
		return reasonSenderNotFound
	}
	node := app.NomineeAccount
	if node == nil {
		return reasonNomineeNotFound
	}
	forced := unstake.Force && d.flags.AllowForceUnstake
	switch {
	case node.Nominator == "":
		return reasonNoNominator
	case node.LockedStake().Sign() == 0:
		return reasonNoStakeLocked
	case node.Nominator != unstake.Nominator:
		return reasonStakedByOther
	case d.nodes.IsNodeActiveByPubKey(unstake.Nominee) && !forced:
		return reasonNodeActive
	case node.RewardEndTime == 0 && node.RewardStartTime > 0 && !forced:
		return reasonNoRewardEnd
	}
	return ""
}
