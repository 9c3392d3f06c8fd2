package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/chrischabot/shardeum/crypto"
)

// Signature is the signature object carried by non-EVM transactions.
type Signature = crypto.Signature

// TxKind names the top-level transaction variant.
type TxKind string

const (
	KindFriend        TxKind = "friend"
	KindSnapshotClaim TxKind = "snapshot_claim"
	KindSetCertTime   TxKind = "set_cert_time"
	KindInternal      TxKind = "internal"
	KindEVM           TxKind = "evm"
)

// Transaction is the sum type over inbound transactions. The variants are the
// exported structs of this file; external packages cannot add more.
type Transaction interface {
	Kind() TxKind
	TxTimestamp() int64
	isTransaction()
}

// InternalTxType enumerates the internal transaction kinds.
type InternalTxType int

const (
	InternalSetGlobalCodeBytes InternalTxType = 0
	InternalInitNetwork        InternalTxType = 1
	InternalNodeReward         InternalTxType = 2
	InternalChangeConfig       InternalTxType = 3
	InternalApplyChangeConfig  InternalTxType = 4
	InternalSetCertTime        InternalTxType = 5
	InternalStake              InternalTxType = 6
	InternalUnstake            InternalTxType = 7
	InternalInitRewardTimes    InternalTxType = 8
	InternalClaimReward        InternalTxType = 9
	InternalChangeNetworkParam InternalTxType = 10
	InternalApplyNetworkParam  InternalTxType = 11
	InternalPenalty            InternalTxType = 12
)

var internalTxTypeNames = map[InternalTxType]string{
	InternalSetGlobalCodeBytes: "SetGlobalCodeBytes",
	InternalInitNetwork:        "InitNetwork",
	InternalNodeReward:         "NodeReward",
	InternalChangeConfig:       "ChangeConfig",
	InternalApplyChangeConfig:  "ApplyChangeConfig",
	InternalSetCertTime:        "SetCertTime",
	InternalStake:              "Stake",
	InternalUnstake:            "Unstake",
	InternalInitRewardTimes:    "InitRewardTimes",
	InternalClaimReward:        "ClaimReward",
	InternalChangeNetworkParam: "ChangeNetworkParam",
	InternalApplyNetworkParam:  "ApplyNetworkParam",
	InternalPenalty:            "Penalty",
}

func (t InternalTxType) String() string {
	if name, ok := internalTxTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("InternalTxType(%d)", int(t))
}

// IsGlobal reports whether the internal kind is replicated through the
// host's global-transaction path.
func (t InternalTxType) IsGlobal() bool {
	switch t {
	case InternalSetGlobalCodeBytes, InternalApplyChangeConfig, InternalInitNetwork, InternalApplyNetworkParam:
		return true
	default:
		return false
	}
}

// InternalTx is implemented by every internal transaction variant.
type InternalTx interface {
	Transaction
	crypto.Signed
	InternalType() InternalTxType
}

// --- user transactions ---

// Friend records an alias for another account in the sender's friend list.
type Friend struct {
	Type      TxKind     `json:"type"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	Alias     string     `json:"alias"`
	Timestamp int64      `json:"timestamp"`
	Sign      *Signature `json:"sign,omitempty"`
}

func (*Friend) Kind() TxKind             { return KindFriend }
func (tx *Friend) TxTimestamp() int64    { return tx.Timestamp }
func (tx *Friend) Signature() *Signature { return tx.Sign }
func (*Friend) isTransaction()           {}

// SnapshotClaim marks the sender as having claimed its snapshot allocation.
type SnapshotClaim struct {
	Type      TxKind     `json:"type"`
	From      string     `json:"from"`
	Timestamp int64      `json:"timestamp"`
	Sign      *Signature `json:"sign,omitempty"`
}

func (*SnapshotClaim) Kind() TxKind             { return KindSnapshotClaim }
func (tx *SnapshotClaim) TxTimestamp() int64    { return tx.Timestamp }
func (tx *SnapshotClaim) Signature() *Signature { return tx.Sign }
func (*SnapshotClaim) isTransaction()           {}

// EVMTx carries a serialized Ethereum transaction envelope.
type EVMTx struct {
	Raw       hexutil.Bytes `json:"raw"`
	Timestamp int64         `json:"timestamp"`
}

func (*EVMTx) Kind() TxKind          { return KindEVM }
func (tx *EVMTx) TxTimestamp() int64 { return tx.Timestamp }
func (*EVMTx) isTransaction()        {}

// --- internal transactions ---

// InternalBase holds the fields shared by all internal transactions.
type InternalBase struct {
	IsInternalTx   bool           `json:"isInternalTx"`
	InternalTXType InternalTxType `json:"internalTXType"`
	Timestamp      int64          `json:"timestamp"`
	Sign           *Signature     `json:"sign,omitempty"`
}

func NewInternalBase(t InternalTxType, timestamp int64) InternalBase {
	return InternalBase{IsInternalTx: true, InternalTXType: t, Timestamp: timestamp}
}

func (*InternalBase) Kind() TxKind                   { return KindInternal }
func (b *InternalBase) TxTimestamp() int64           { return b.Timestamp }
func (b *InternalBase) Signature() *Signature        { return b.Sign }
func (b *InternalBase) InternalType() InternalTxType { return b.InternalTXType }
func (*InternalBase) isTransaction()                 {}

// SetCertTime renews the stake certificate time of a node. It travels as an
// internal transaction but is validated on its own lane.
type SetCertTime struct {
	InternalBase
	Nominee   string `json:"nominee"`
	Nominator string `json:"nominator"`
	Duration  uint64 `json:"duration"`
}

func (*SetCertTime) Kind() TxKind { return KindSetCertTime }

type InitNetwork struct {
	InternalBase
	Network string `json:"network"`
}

type SetGlobalCodeBytes struct {
	InternalBase
	From            string        `json:"from"`
	ContractAddress string        `json:"contractAddress"`
	CodeBytes       hexutil.Bytes `json:"codeBytes"`
}

type NodeReward struct {
	InternalBase
	PublicKey string `json:"publicKey"`
	NodeID    string `json:"nodeId"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// ChangeConfig proposes flag overrides; Config is a JSON object.
type ChangeConfig struct {
	InternalBase
	From   string `json:"from"`
	Cycle  int64  `json:"cycle"`
	Config string `json:"config"`
}

type ApplyChangeConfig struct {
	InternalBase
	Network string       `json:"network"`
	Change  ConfigChange `json:"change"`
}

type ChangeNetworkParam struct {
	InternalBase
	From   string `json:"from"`
	Cycle  int64  `json:"cycle"`
	Config string `json:"config"`
}

type ApplyNetworkParam struct {
	InternalBase
	Network string       `json:"network"`
	Change  ConfigChange `json:"change"`
}

// ConfigChange is a change scheduled for a cycle.
type ConfigChange struct {
	Cycle  int64           `json:"cycle"`
	Change json.RawMessage `json:"change"`
}

type InitRewardTimes struct {
	InternalBase
	Nominee           string `json:"nominee"`
	NodeActivatedTime int64  `json:"nodeActivatedTime"`
}

type ClaimReward struct {
	InternalBase
	Nominee             string `json:"nominee"`
	NominatorAddress    string `json:"nominator"`
	DeactivatedNodeID   string `json:"deactivatedNodeId"`
	NodeDeactivatedTime int64  `json:"nodeDeactivatedTime"`
	Cycle               int64  `json:"cycle"`
}

// ViolationType enumerates the node offences a Penalty may report.
type ViolationType int

const (
	ViolationLeftNetworkEarly ViolationType = 1000 + iota
	ViolationSyncingTooLong
	ViolationDoubleVote
)

func (v ViolationType) Valid() bool {
	return v >= ViolationLeftNetworkEarly && v <= ViolationDoubleVote
}

type Penalty struct {
	InternalBase
	ReportedNodeID        string        `json:"reportedNodeId"`
	ReportedNodePublicKey string        `json:"reportedNodePublickKey"`
	OperatorEVMAddress    string        `json:"operatorEVMAddress"`
	Violation             ViolationType `json:"violationType"`
	Cycle                 int64         `json:"cycle"`
}

// StakeCoins is the internal payload of a staking EVM transaction.
type StakeCoins struct {
	InternalBase
	Nominator string       `json:"nominator"`
	Nominee   string       `json:"nominee"`
	Stake     *hexutil.Big `json:"stake"`
}

// UnstakeCoins is the internal payload of an unstaking EVM transaction.
type UnstakeCoins struct {
	InternalBase
	Nominator string `json:"nominator"`
	Nominee   string `json:"nominee"`
	Force     bool   `json:"force"`
}

// TimestampReceipt is the network-agreed timestamp attached to a transaction.
type TimestampReceipt struct {
	TxID      string     `json:"txId"`
	Cycle     int64      `json:"cycleCounter"`
	Timestamp int64      `json:"timestamp"`
	Sign      *Signature `json:"sign,omitempty"`
}

// TimestampedTx is the unit handed to the dispatcher.
type TimestampedTx struct {
	Tx      Transaction       `json:"tx"`
	Receipt *TimestampReceipt `json:"timestampReceipt,omitempty"`
}

func (t *TimestampedTx) UnmarshalJSON(b []byte) error {
	var raw struct {
		Tx      json.RawMessage   `json:"tx"`
		Receipt *TimestampReceipt `json:"timestampReceipt"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	tx, err := DecodeTransaction(raw.Tx)
	if err != nil {
		return err
	}
	t.Tx = tx
	t.Receipt = raw.Receipt
	return nil
}

var ErrUnknownTransaction = errors.New("unknown transaction kind")

// DecodeTransaction decodes a JSON transaction into its variant by probing the
// raw, isInternalTx, internalTXType and type fields in that order.
func DecodeTransaction(data []byte) (Transaction, error) {
	var probe struct {
		Type           TxKind          `json:"type"`
		IsInternalTx   bool            `json:"isInternalTx"`
		InternalTXType *InternalTxType `json:"internalTXType"`
		Raw            json.RawMessage `json:"raw"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	var tx Transaction
	switch {
	case len(probe.Raw) > 0:
		tx = new(EVMTx)
	case probe.IsInternalTx:
		if probe.InternalTXType == nil {
			return nil, fmt.Errorf("%w: internal transaction without internalTXType", ErrUnknownTransaction)
		}
		internal, err := newInternalTx(*probe.InternalTXType)
		if err != nil {
			return nil, err
		}
		tx = internal
	case probe.Type == KindFriend:
		tx = new(Friend)
	case probe.Type == KindSnapshotClaim:
		tx = new(SnapshotClaim)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransaction, probe.Type)
	}
	if err := json.Unmarshal(data, tx); err != nil {
		return nil, fmt.Errorf("decode %s transaction: %w", tx.Kind(), err)
	}
	return tx, nil
}

func newInternalTx(t InternalTxType) (InternalTx, error) {
	switch t {
	case InternalSetGlobalCodeBytes:
		return new(SetGlobalCodeBytes), nil
	case InternalInitNetwork:
		return new(InitNetwork), nil
	case InternalNodeReward:
		return new(NodeReward), nil
	case InternalChangeConfig:
		return new(ChangeConfig), nil
	case InternalApplyChangeConfig:
		return new(ApplyChangeConfig), nil
	case InternalSetCertTime:
		return new(SetCertTime), nil
	case InternalStake:
		return new(StakeCoins), nil
	case InternalUnstake:
		return new(UnstakeCoins), nil
	case InternalInitRewardTimes:
		return new(InitRewardTimes), nil
	case InternalClaimReward:
		return new(ClaimReward), nil
	case InternalChangeNetworkParam:
		return new(ChangeNetworkParam), nil
	case InternalApplyNetworkParam:
		return new(ApplyNetworkParam), nil
	case InternalPenalty:
		return new(Penalty), nil
	default:
		return nil, fmt.Errorf("%w: internal type %d", ErrUnknownTransaction, int(t))
	}
}
