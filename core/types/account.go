package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AccountType tags the variant held in a WrappedAccount.
type AccountType int

const (
	AccountTypeUser    AccountType = 0
	AccountTypeNetwork AccountType = 1
	AccountTypeNode    AccountType = 2
	AccountTypeDev     AccountType = 3
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeUser:
		return "user"
	case AccountTypeNetwork:
		return "network"
	case AccountTypeNode:
		return "node"
	case AccountTypeDev:
		return "dev"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// AccountData is the sum type over account kinds. Only the variants declared
// in this package implement it.
type AccountData interface {
	AccountType() AccountType
	isAccountData()
}

// OperatorInfo records the stake an account has delegated to a node.
type OperatorInfo struct {
	Stake   *hexutil.Big `json:"stake"`
	Nominee string       `json:"nominee"`
	CertExp int64        `json:"certExp"`
}

// StakeAmount returns the recorded stake or zero.
func (o *OperatorInfo) StakeAmount() *big.Int {
	if o == nil || o.Stake == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(o.Stake.ToInt())
}

// UserAccount is an externally owned account. Balances are in the ledger's
// native integer units.
type UserAccount struct {
	EthAddress      string            `json:"ethAddress,omitempty"`
	Balance         *big.Int          `json:"balance"`
	Nonce           uint64            `json:"nonce"`
	Friends         map[string]string `json:"friends"`
	ClaimedSnapshot bool              `json:"claimedSnapshot"`
	LastMaintenance int64             `json:"lastMaintenance"`
	StorageRoot     common.Hash       `json:"storageRoot"`
	CodeHash        common.Hash       `json:"codeHash"`
	OperatorInfo    *OperatorInfo     `json:"operatorAccountInfo,omitempty"`
}

func (*UserAccount) AccountType() AccountType { return AccountTypeUser }
func (*UserAccount) isAccountData()           {}

// NewUserAccount returns an account with a zero balance and no friends.
func NewUserAccount() *UserAccount {
	return &UserAccount{Balance: big.NewInt(0), Friends: map[string]string{}}
}

// NetworkParameters are the live network-wide economic settings.
type NetworkParameters struct {
	TransactionFee      *big.Int `json:"transactionFee" toml:"TransactionFee"`
	MaintenanceFee      float64  `json:"maintenanceFee" toml:"MaintenanceFee"`
	MaintenanceInterval int64    `json:"maintenanceInterval" toml:"MaintenanceInterval"`
	StakeRequiredUsd    *big.Int `json:"stakeRequiredUsd" toml:"StakeRequiredUsd"`
	NodePenaltyUsd      *big.Int `json:"nodePenaltyUsd" toml:"NodePenaltyUsd"`
	NodeRewardAmountUsd *big.Int `json:"nodeRewardAmountUsd" toml:"NodeRewardAmountUsd"`
	StabilityScaleMul   uint64   `json:"stabilityScaleMul" toml:"StabilityScaleMul"`
	StabilityScaleDiv   uint64   `json:"stabilityScaleDiv" toml:"StabilityScaleDiv"`
	CertCycleDuration   uint64   `json:"certCycleDuration" toml:"CertCycleDuration"`
}

// NetworkAccount holds the current network parameters. There is exactly one
// per network, stored under the well-known network account id.
type NetworkAccount struct {
	Current NetworkParameters `json:"current"`
}

func (*NetworkAccount) AccountType() AccountType { return AccountTypeNetwork }
func (*NetworkAccount) isAccountData()           {}

// NodeAccount tracks the stake locked against a validator node.
type NodeAccount struct {
	Nominator       string       `json:"nominator,omitempty"`
	StakeLock       *hexutil.Big `json:"stakeLock"`
	Penalty         *hexutil.Big `json:"penalty,omitempty"`
	RewardStartTime int64        `json:"rewardStartTime"`
	RewardEndTime   int64        `json:"rewardEndTime"`
	StakeTimestamp  int64        `json:"stakeTimestamp"`
}

func (*NodeAccount) AccountType() AccountType { return AccountTypeNode }
func (*NodeAccount) isAccountData()           {}

// LockedStake returns the locked stake or zero.
func (n *NodeAccount) LockedStake() *big.Int {
	if n == nil || n.StakeLock == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(n.StakeLock.ToInt())
}

// DevAccount marks the operator key allowed to sign configuration changes.
type DevAccount struct{}

func (*DevAccount) AccountType() AccountType { return AccountTypeDev }
func (*DevAccount) isAccountData()           {}

func newAccountData(t AccountType) (AccountData, error) {
	switch t {
	case AccountTypeUser:
		return NewUserAccount(), nil
	case AccountTypeNetwork:
		return &NetworkAccount{}, nil
	case AccountTypeNode:
		return &NodeAccount{}, nil
	case AccountTypeDev:
		return &DevAccount{}, nil
	default:
		return nil, fmt.Errorf("unknown account type %d", int(t))
	}
}
