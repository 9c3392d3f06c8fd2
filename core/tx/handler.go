package tx

import (
	"fmt"

	"github.com/chrischabot/shardeum/core/state"
	"github.com/chrischabot/shardeum/core/types"
)

// Handler is the hook set the host invokes for one transaction kind.
//
// ValidateFields reports structural problems through a *errors.FieldError;
// the result it returns alongside is already marked failed. Validate and Keys
// are pure functions of their inputs. Apply mutates exactly the accounts
// named by Keys and refreshes their hashes.
type Handler interface {
	ValidateFields(tx types.Transaction) (types.ValidationResult, error)
	Validate(tx types.Transaction, lookup state.Lookup) types.ValidationResult
	Keys(tx types.Transaction) types.TransactionKeys
	Apply(tx types.Transaction, timestamp int64, lookup state.Lookup) error
	CreateRelevantAccount(account *types.WrappedAccount, id string, created bool) (*types.WrappedResponse, error)
}

// Registry resolves the handler for a user transaction.
type Registry struct {
	friend   *FriendHandler
	snapshot *SnapshotClaimHandler
}

// NewRegistry builds the handlers bound to networkID.
func NewRegistry(networkID string) *Registry {
	if networkID == "" {
		networkID = types.DefaultNetworkAccountID
	}
	return &Registry{
		friend:   &FriendHandler{NetworkID: networkID},
		snapshot: &SnapshotClaimHandler{NetworkID: networkID},
	}
}

// For returns the handler for tx. Internal and EVM transactions are validated
// by the dispatcher and have no user handler.
func (r *Registry) For(tx types.Transaction) (Handler, error) {
	switch tx.(type) {
	case *types.Friend:
		return r.friend, nil
	case *types.SnapshotClaim:
		return r.snapshot, nil
	default:
		return nil, fmt.Errorf("%w: no handler for %T", types.ErrUnknownTransaction, tx)
	}
}

func unexpected(handler string, tx types.Transaction) error {
	return fmt.Errorf("%s handler: unexpected transaction %T", handler, tx)
}
