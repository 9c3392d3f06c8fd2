package tx

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
)

// The dedicated internal validators below are field and signature checks
// only; state-dependent rules for these kinds run when the host applies them.

// ValidateSetCertTime checks a certificate-time renewal issued by a node.
func ValidateSetCertTime(tx *types.SetCertTime) types.ValidationResult {
	switch {
	case tx == nil:
		return types.Reject("SetCertTime tx is missing", 0)
	case !crypto.IsAccountID(tx.Nominee):
		return types.Reject("Invalid nominee address in setCertTime tx", 0)
	case !common.IsHexAddress(tx.Nominator):
		return types.Reject("Invalid nominator address in setCertTime tx", 0)
	case tx.Duration == 0:
		return types.Reject("Duration in setCertTime tx must be > 0", 0)
	case !crypto.Verify(tx, tx.Nominee):
		return types.Reject("Invalid signature for SetCertTime tx", 0)
	}
	return types.Accept("valid", 0)
}

// ValidateInitRewardTimes checks the reward-period start announcement for a
// node that just became active.
func ValidateInitRewardTimes(tx *types.InitRewardTimes) types.ValidationResult {
	switch {
	case tx == nil:
		return types.Reject("InitRewardTimes tx is missing", 0)
	case !crypto.IsAccountID(tx.Nominee):
		return types.Reject("Invalid nominee address in initRewardTimes tx", 0)
	case tx.NodeActivatedTime <= 0:
		return types.Reject("nodeActivatedTime must be > 0", 0)
	case !crypto.Verify(tx, ""):
		return types.Reject("Invalid signature for initRewardTimes tx", 0)
	}
	return types.Accept("valid", 0)
}

// ValidateClaimReward checks a reward claim for a node that left the network.
func ValidateClaimReward(tx *types.ClaimReward) types.ValidationResult {
	switch {
	case tx == nil:
		return types.Reject("ClaimReward tx is missing", 0)
	case !crypto.IsAccountID(tx.Nominee):
		return types.Reject("Invalid nominee address in claimReward tx", 0)
	case !common.IsHexAddress(tx.NominatorAddress):
		return types.Reject("Invalid nominator address in claimReward tx", 0)
	case tx.DeactivatedNodeID == "":
		return types.Reject("Invalid deactivatedNodeId in claimReward tx", 0)
	case tx.NodeDeactivatedTime <= 0:
		return types.Reject("nodeDeactivatedTime must be > 0", 0)
	case !crypto.Verify(tx, tx.Nominee):
		return types.Reject("Invalid signature for ClaimReward tx", 0)
	}
	return types.Accept("valid", 0)
}

// ValidatePenalty checks a penalty report against a misbehaving node.
func ValidatePenalty(tx *types.Penalty) types.ValidationResult {
	switch {
	case tx == nil:
		return types.Reject("Penalty tx is missing", 0)
	case tx.ReportedNodeID == "":
		return types.Reject("Invalid reportedNodeId in penalty tx", 0)
	case !crypto.IsAccountID(tx.ReportedNodePublicKey):
		return types.Reject("Invalid reportedNodePublickKey in penalty tx", 0)
	case !common.IsHexAddress(tx.OperatorEVMAddress):
		return types.Reject("Invalid operatorEVMAddress in penalty tx", 0)
	case !tx.Violation.Valid():
		return types.Reject("Invalid violationType in penalty tx", 0)
	case !crypto.Verify(tx, ""):
		return types.Reject("Invalid signature for Penalty tx", 0)
	}
	return types.Accept("valid", 0)
}
