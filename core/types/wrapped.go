package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DefaultNetworkAccountID is the well-known id of the network account.
const DefaultNetworkAccountID = "1000000000000000000000000000000000000000000000000000000000000001"

// WrappedAccount is the envelope exchanged with the host: account data plus
// its hash and the timestamp of the last mutation. Hash is a pure function of
// Data and must be refreshed with UpdateHash after every mutation.
type WrappedAccount struct {
	ID        string
	Data      AccountData
	Hash      string
	Timestamp int64
}

// NewWrappedAccount wraps data and computes its hash.
func NewWrappedAccount(id string, data AccountData, timestamp int64) (*WrappedAccount, error) {
	w := &WrappedAccount{ID: id, Data: data, Timestamp: timestamp}
	if err := w.UpdateHash(); err != nil {
		return nil, err
	}
	return w, nil
}

// AccountHash returns the hex keccak256 digest of the account data tagged
// with its type.
func AccountHash(data AccountData) (string, error) {
	if data == nil {
		return "", errors.New("account data must not be nil")
	}
	encoded, err := json.Marshal(struct {
		Type AccountType `json:"accountType"`
		Data AccountData `json:"data"`
	}{data.AccountType(), data})
	if err != nil {
		return "", fmt.Errorf("encode %s account: %w", data.AccountType(), err)
	}
	return hex.EncodeToString(ethcrypto.Keccak256(encoded)), nil
}

// UpdateHash recomputes Hash from Data.
func (w *WrappedAccount) UpdateHash() error {
	hash, err := AccountHash(w.Data)
	if err != nil {
		return err
	}
	w.Hash = hash
	return nil
}

// User returns the user account variant, if that is what w holds.
func (w *WrappedAccount) User() (*UserAccount, bool) {
	if w == nil {
		return nil, false
	}
	acc, ok := w.Data.(*UserAccount)
	return acc, ok
}

// Network returns the network account variant, if that is what w holds.
func (w *WrappedAccount) Network() (*NetworkAccount, bool) {
	if w == nil {
		return nil, false
	}
	acc, ok := w.Data.(*NetworkAccount)
	return acc, ok
}

// Node returns the node account variant, if that is what w holds.
func (w *WrappedAccount) Node() (*NodeAccount, bool) {
	if w == nil {
		return nil, false
	}
	acc, ok := w.Data.(*NodeAccount)
	return acc, ok
}

type wrappedAccountJSON struct {
	ID          string          `json:"id"`
	AccountType AccountType     `json:"accountType"`
	Data        json.RawMessage `json:"data"`
	Hash        string          `json:"hash"`
	Timestamp   int64           `json:"timestamp"`
}

func (w WrappedAccount) MarshalJSON() ([]byte, error) {
	if w.Data == nil {
		return nil, errors.New("wrapped account has no data")
	}
	data, err := json.Marshal(w.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wrappedAccountJSON{
		ID:          w.ID,
		AccountType: w.Data.AccountType(),
		Data:        data,
		Hash:        w.Hash,
		Timestamp:   w.Timestamp,
	})
}

func (w *WrappedAccount) UnmarshalJSON(b []byte) error {
	var raw wrappedAccountJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := newAccountData(raw.AccountType)
	if err != nil {
		return err
	}
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			return fmt.Errorf("decode %s account %s: %w", raw.AccountType, raw.ID, err)
		}
	}
	*w = WrappedAccount{ID: raw.ID, Data: data, Hash: raw.Hash, Timestamp: raw.Timestamp}
	return nil
}

// AccountCopy is a wrapped account tagged with the cycle it was produced in,
// the unit committed to storage and forwarded for replication.
type AccountCopy struct {
	CycleNumber uint64          `json:"cycleNumber"`
	AccountID   string          `json:"accountId"`
	Data        *WrappedAccount `json:"data"`
	Hash        string          `json:"hash"`
	IsGlobal    bool            `json:"isGlobal"`
	Timestamp   int64           `json:"timestamp"`
}

// NewAccountCopy builds a copy from a wrapped account.
func NewAccountCopy(cycle uint64, account *WrappedAccount, global bool) AccountCopy {
	return AccountCopy{
		CycleNumber: cycle,
		AccountID:   account.ID,
		Data:        account,
		Hash:        account.Hash,
		IsGlobal:    global,
		Timestamp:   account.Timestamp,
	}
}

// ToAccountID maps an EVM address to its shard account id: the lower-case hex
// address padded with 24 zeros.
func ToAccountID(addr common.Address) string {
	return strings.ToLower(hex.EncodeToString(addr.Bytes())) + strings.Repeat("0", 24)
}

// WrappedResponse is the replication envelope produced for the host when it
// needs a canonical snapshot of an account.
type WrappedResponse struct {
	AccountID      string          `json:"accountId"`
	AccountCreated bool            `json:"accountCreated"`
	IsPartial      bool            `json:"isPartial"`
	StateID        string          `json:"stateId"`
	Timestamp      int64           `json:"timestamp"`
	Data           *WrappedAccount `json:"data"`
}

// NewWrappedResponse wraps account for replication under id.
func NewWrappedResponse(id string, created bool, account *WrappedAccount) *WrappedResponse {
	return &WrappedResponse{
		AccountID:      id,
		AccountCreated: created,
		StateID:        account.Hash,
		Timestamp:      account.Timestamp,
		Data:           account,
	}
}
