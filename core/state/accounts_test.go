package state

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/storage"
)

func newUser(t *testing.T, id string, balance int64) *types.WrappedAccount {
	t.Helper()
	acc := types.NewUserAccount()
	acc.Balance = big.NewInt(balance)
	wrapped, err := types.NewWrappedAccount(id, acc, 1)
	require.NoError(t, err)
	return wrapped
}

func TestManagerSetAndGet(t *testing.T) {
	m := NewManager(storage.NewMemDB(), "")
	require.Equal(t, types.DefaultNetworkAccountID, m.NetworkAccountID())

	_, err := m.GetAccount("missing")
	require.ErrorIs(t, err, coreerrors.ErrAccountNotFound)
	got, err := m.GetLocalOrRemote(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, m.SetAccount(newUser(t, "alice", 42)))
	loaded, ok := m.Get("alice")
	require.True(t, ok)
	user, ok := loaded.User()
	require.True(t, ok)
	require.Equal(t, int64(42), user.Balance.Int64())
}

func TestCommitAccountCopiesIsBatched(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db, "net")
	network, err := types.NewWrappedAccount("net", &types.NetworkAccount{Current: types.NetworkParameters{TransactionFee: big.NewInt(3)}}, 1)
	require.NoError(t, err)

	copies := []types.AccountCopy{
		types.NewAccountCopy(1, newUser(t, "a", 1), false),
		types.NewAccountCopy(1, network, true),
	}
	require.NoError(t, m.CommitAccountCopies(copies))

	states := m.Snapshot("a", "net", "absent")
	require.Len(t, states, 2)
	_, ok := states.Get("absent")
	require.False(t, ok)

	cached, ok := m.NetworkAccount()
	require.True(t, ok)
	require.Equal(t, int64(3), cached.Current.TransactionFee.Int64())

	var ids []string
	require.NoError(t, m.ForEach(func(acc *types.WrappedAccount) error {
		ids = append(ids, acc.ID)
		return nil
	}))
	require.Equal(t, []string{"a", "net"}, ids)
}

func TestCommitAccountCopiesRejectsMismatchedID(t *testing.T) {
	m := NewManager(storage.NewMemDB(), "net")
	bad := types.NewAccountCopy(1, newUser(t, "a", 1), false)
	bad.AccountID = "b"
	require.Error(t, m.CommitAccountCopies([]types.AccountCopy{bad}))
	_, ok := m.Get("a")
	require.False(t, ok)
}

func TestNetworkAccountLoadsFromStorage(t *testing.T) {
	db := storage.NewMemDB()
	writer := NewManager(db, "net")
	network, err := types.NewWrappedAccount("net", &types.NetworkAccount{}, 1)
	require.NoError(t, err)
	require.NoError(t, writer.SetAccount(network))

	reader := NewManager(db, "net")
	_, ok := reader.NetworkAccount()
	require.True(t, ok)
}
