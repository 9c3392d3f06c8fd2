package tx

import (
	"fmt"

	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/core/state"
	"github.com/chrischabot/shardeum/core/types"
)

// SnapshotClaimHandler marks an account as having claimed its snapshot
// allocation. The claim is bookkeeping only: no tokens move.
type SnapshotClaimHandler struct {
	NetworkID string
}

func (h *SnapshotClaimHandler) cast(tx types.Transaction) (*types.SnapshotClaim, error) {
	claim, ok := tx.(*types.SnapshotClaim)
	if !ok || claim == nil {
		return nil, unexpected("snapshot_claim", tx)
	}
	return claim, nil
}

func (h *SnapshotClaimHandler) ValidateFields(tx types.Transaction) (types.ValidationResult, error) {
	claim, err := h.cast(tx)
	if err != nil {
		return types.Reject(err.Error(), 0), err
	}
	if claim.From == "" {
		fe := coreerrors.NewFieldError("from", "string")
		return types.Reject(fe.Reason, 0), fe
	}
	return types.Accept("", 0), nil
}

func (h *SnapshotClaimHandler) Validate(tx types.Transaction, lookup state.Lookup) types.ValidationResult {
	claim, err := h.cast(tx)
	if err != nil {
		return types.Reject(err.Error(), 0)
	}
	from, reason := checkSigner(lookup, claim.From, claim, "from account doesn't exist")
	if reason != "" {
		return types.Reject(reason, 0)
	}
	if from.ClaimedSnapshot {
		return types.Reject("Already claimed tokens from the snapshot", 0)
	}
	if _, _, ok := networkParams(lookup, h.NetworkID); !ok {
		return types.Reject(`Snapshot account does not exist yet, OR wrong snapshot address provided in the "to" field`, 0)
	}
	return types.Accept(reasonValid, 0)
}

func (h *SnapshotClaimHandler) Keys(tx types.Transaction) types.TransactionKeys {
	claim, err := h.cast(tx)
	if err != nil {
		return types.NewTransactionKeys(nil, nil)
	}
	return types.NewTransactionKeys([]string{claim.From}, []string{h.NetworkID})
}

func (h *SnapshotClaimHandler) Apply(tx types.Transaction, timestamp int64, lookup state.Lookup) error {
	claim, err := h.cast(tx)
	if err != nil {
		return err
	}
	wrapped, ok := lookup.Get(claim.From)
	if !ok {
		return fmt.Errorf("snapshot_claim: %w: %s", coreerrors.ErrAccountNotFound, claim.From)
	}
	from, ok := wrapped.User()
	if !ok {
		return fmt.Errorf("snapshot_claim: account %s is a %s account", claim.From, wrapped.Data.AccountType())
	}
	networkWrapped, _, ok := networkParams(lookup, h.NetworkID)
	if !ok {
		return fmt.Errorf("snapshot_claim: %w", coreerrors.ErrNetworkAccountUnset)
	}

	// Balance is left untouched; snapshot allocations are no longer paid out.
	from.ClaimedSnapshot = true
	wrapped.Timestamp = timestamp
	networkWrapped.Timestamp = timestamp
	if err := wrapped.UpdateHash(); err != nil {
		return err
	}
	return networkWrapped.UpdateHash()
}

func (h *SnapshotClaimHandler) CreateRelevantAccount(account *types.WrappedAccount, id string, created bool) (*types.WrappedResponse, error) {
	if account == nil {
		return nil, fmt.Errorf("%w: Account must already exist for the snapshot_claim transaction", coreerrors.ErrAccountRequired)
	}
	return types.NewWrappedResponse(id, created, account), nil
}
