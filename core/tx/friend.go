package tx

import (
	"fmt"
	"math/big"

	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/core/state"
	"github.com/chrischabot/shardeum/core/types"
)

// FriendHandler implements the friend transaction: the sender records an
// alias for another account and pays the network fee plus any maintenance
// that has accrued.
type FriendHandler struct {
	NetworkID string
}

func (h *FriendHandler) cast(tx types.Transaction) (*types.Friend, error) {
	friend, ok := tx.(*types.Friend)
	if !ok || friend == nil {
		return nil, unexpected("friend", tx)
	}
	return friend, nil
}

func (h *FriendHandler) ValidateFields(tx types.Transaction) (types.ValidationResult, error) {
	friend, err := h.cast(tx)
	if err != nil {
		return types.Reject(err.Error(), 0), err
	}
	for _, field := range []struct{ name, value string }{
		{"from", friend.From},
		{"to", friend.To},
		{"alias", friend.Alias},
	} {
		if field.value == "" {
			fe := coreerrors.NewFieldError(field.name, "string")
			return types.Reject(fe.Reason, 0), fe
		}
	}
	return types.Accept("", 0), nil
}

func (h *FriendHandler) Validate(tx types.Transaction, lookup state.Lookup) types.ValidationResult {
	friend, err := h.cast(tx)
	if err != nil {
		return types.Reject(err.Error(), 0)
	}
	from, reason := checkSigner(lookup, friend.From, friend, "from account does not exist")
	if reason != "" {
		return types.Reject(reason, 0)
	}
	_, network, ok := networkParams(lookup, h.NetworkID)
	if !ok {
		return types.Reject(reasonNetworkMissing, 0)
	}
	fee := network.Current.TransactionFee
	if fee != nil && (from.Balance == nil || from.Balance.Cmp(fee) < 0) {
		return types.Reject("From account doesn't have enough tokens to cover the transaction fee", 0)
	}
	return types.Accept(reasonValid, 0)
}

func (h *FriendHandler) Keys(tx types.Transaction) types.TransactionKeys {
	friend, err := h.cast(tx)
	if err != nil {
		return types.NewTransactionKeys(nil, nil)
	}
	return types.NewTransactionKeys([]string{friend.From}, []string{h.NetworkID})
}

func (h *FriendHandler) Apply(tx types.Transaction, timestamp int64, lookup state.Lookup) error {
	friend, err := h.cast(tx)
	if err != nil {
		return err
	}
	wrapped, ok := lookup.Get(friend.From)
	if !ok {
		return fmt.Errorf("friend: %w: %s", coreerrors.ErrAccountNotFound, friend.From)
	}
	from, ok := wrapped.User()
	if !ok {
		return fmt.Errorf("friend: account %s is a %s account", friend.From, wrapped.Data.AccountType())
	}
	_, network, ok := networkParams(lookup, h.NetworkID)
	if !ok {
		return fmt.Errorf("friend: %w", coreerrors.ErrNetworkAccountUnset)
	}

	if from.Balance == nil {
		from.Balance = new(big.Int)
	}
	if fee := network.Current.TransactionFee; fee != nil {
		from.Balance.Sub(from.Balance, fee)
	}
	from.Balance.Sub(from.Balance, MaintenanceAmount(timestamp, from, network.Current))
	if from.Friends == nil {
		from.Friends = make(map[string]string)
	}
	from.Friends[friend.To] = friend.Alias
	wrapped.Timestamp = timestamp
	return wrapped.UpdateHash()
}

func (h *FriendHandler) CreateRelevantAccount(account *types.WrappedAccount, id string, created bool) (*types.WrappedResponse, error) {
	if account == nil {
		return nil, fmt.Errorf("%w: Account must exist in order to send a friend transaction", coreerrors.ErrAccountRequired)
	}
	return types.NewWrappedResponse(id, created, account), nil
}
