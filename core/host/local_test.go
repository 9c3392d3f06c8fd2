package host

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/chrischabot/shardeum/config"
	"github.com/chrischabot/shardeum/core/bootstrap"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
	"github.com/chrischabot/shardeum/storage"
)

func testParams() types.NetworkParameters {
	return types.NetworkParameters{
		TransactionFee:      big.NewInt(10),
		StakeRequiredUsd:    big.NewInt(0),
		NodePenaltyUsd:      big.NewInt(0),
		NodeRewardAmountUsd: big.NewInt(0),
		StabilityScaleMul:   1,
		StabilityScaleDiv:   1,
	}
}

func newTestHost(t *testing.T, now time.Time) *LocalHost {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	h, err := New(storage.NewMemDB(), Options{
		NodeKey:       key,
		FirstSeed:     true,
		Flags:         config.DefaultFlags(),
		Params:        testParams(),
		CycleDuration: time.Minute,
		Clock:         func() time.Time { return now },
	})
	require.NoError(t, err)
	return h
}

func initNetwork(t *testing.T, h *LocalHost) {
	t.Helper()
	networkID := h.Accounts().NetworkAccountID()
	initTx := &types.InitNetwork{InternalBase: types.NewInternalBase(types.InternalInitNetwork, 1), Network: networkID}
	require.NoError(t, h.SetGlobal(context.Background(), networkID, initTx, 1, networkID))
}

func fundedUser(t *testing.T, h *LocalHost, balance int64) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	user := types.NewUserAccount()
	user.Balance = big.NewInt(balance)
	wrapped, err := types.NewWrappedAccount(key.PubKey().AccountID(), user, 1)
	require.NoError(t, err)
	require.NoError(t, h.SetAccount(context.Background(), wrapped))
	return key
}

func signedFriend(t *testing.T, key *crypto.PrivateKey, to, alias string) *types.Friend {
	t.Helper()
	tx := &types.Friend{Type: types.KindFriend, From: key.PubKey().AccountID(), To: to, Alias: alias, Timestamp: 50}
	sig, err := crypto.SignObject(tx, key)
	require.NoError(t, err)
	tx.Sign = sig
	return tx
}

func TestSetGlobalInitNetwork(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	_, ok := h.Accounts().NetworkAccount()
	require.False(t, ok)

	initNetwork(t, h)
	network, ok := h.Accounts().NetworkAccount()
	require.True(t, ok)
	require.Equal(t, "10", network.Current.TransactionFee.String())

	// A second init leaves the existing account alone.
	initNetwork(t, h)

	err := h.SetGlobal(context.Background(), "elsewhere", &types.InitNetwork{}, 1, "x")
	require.Error(t, err)
}

func TestInjectFriendAppliesAndCommits(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	initNetwork(t, h)
	key := fundedUser(t, h, 1000)
	from := key.PubKey().AccountID()

	receipt, err := h.Inject(context.Background(), types.TimestampedTx{Tx: signedFriend(t, key, "bob", "b")})
	require.NoError(t, err)
	require.True(t, receipt.Applied)
	require.True(t, receipt.Result.Success)
	require.Equal(t, int64(50), receipt.Timestamp)
	require.NotEmpty(t, receipt.TxID)
	require.Equal(t, []string{from, h.Accounts().NetworkAccountID()}, receipt.Accounts)

	wrapped, err := h.Accounts().GetAccount(from)
	require.NoError(t, err)
	user, ok := wrapped.User()
	require.True(t, ok)
	require.Equal(t, "990", user.Balance.String())
	require.Equal(t, "b", user.Friends["bob"])
	require.Equal(t, int64(50), wrapped.Timestamp)
}

func TestInjectFriendBelowFeeIsNotApplied(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	initNetwork(t, h)
	key := fundedUser(t, h, 5)
	from := key.PubKey().AccountID()

	receipt, err := h.Inject(context.Background(), types.TimestampedTx{Tx: signedFriend(t, key, "bob", "b")})
	require.ErrorIs(t, err, ErrRejected)
	require.False(t, receipt.Applied)
	require.Empty(t, receipt.Accounts)
	require.Equal(t, "From account doesn't have enough tokens to cover the transaction fee", receipt.Result.Reason)

	wrapped, err := h.Accounts().GetAccount(from)
	require.NoError(t, err)
	user, ok := wrapped.User()
	require.True(t, ok)
	require.Equal(t, "5", user.Balance.String())
	require.NotContains(t, user.Friends, "bob")
	require.Equal(t, int64(1), wrapped.Timestamp)
}

func TestInjectRejectsUnknownSender(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	initNetwork(t, h)
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	receipt, err := h.Inject(context.Background(), types.TimestampedTx{Tx: signedFriend(t, key, "bob", "b")})
	require.ErrorIs(t, err, ErrRejected)
	require.False(t, receipt.Applied)
	require.Contains(t, receipt.Result.Reason, "Account must exist in order to send a friend transaction")
}

func TestInjectRejectsFieldErrors(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	receipt, err := h.Inject(context.Background(), types.TimestampedTx{Tx: &types.Friend{From: "a", To: "b", Timestamp: 5}})
	require.ErrorIs(t, err, ErrRejected)
	require.Equal(t, `tx "alias" field must be a string.`, receipt.Result.Reason)
}

func TestApplyChangeConfigSwapsFlags(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	initNetwork(t, h)
	before := h.Dispatcher()

	change := &types.ApplyChangeConfig{
		InternalBase: types.NewInternalBase(types.InternalApplyChangeConfig, 10),
		Network:      h.Accounts().NetworkAccountID(),
		Change:       types.ConfigChange{Cycle: 1, Change: json.RawMessage(`"{\"txNoncePreCheck\":false,\"ChainID\":1}"`)},
	}
	receipt, err := h.Inject(context.Background(), types.TimestampedTx{Tx: change})
	require.NoError(t, err)
	require.True(t, receipt.Applied)

	require.False(t, h.Flags().TxNoncePreCheck)
	require.Equal(t, uint64(1), h.Flags().ChainID)
	require.NotSame(t, before, h.Dispatcher())
	require.Equal(t, uint64(1), h.Dispatcher().Flags().ChainID)
	require.True(t, before.Flags().TxNoncePreCheck, "old snapshot must not change")

	bad := &types.ApplyChangeConfig{
		InternalBase: types.NewInternalBase(types.InternalApplyChangeConfig, 11),
		Change:       types.ConfigChange{Change: json.RawMessage(`{"noSuchFlag":true}`)},
	}
	_, err = h.Inject(context.Background(), types.TimestampedTx{Tx: bad})
	require.Error(t, err)
	require.Equal(t, uint64(1), h.Flags().ChainID)
}

func TestApplyNetworkParamMergesChange(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	initNetwork(t, h)
	networkID := h.Accounts().NetworkAccountID()

	change := &types.ApplyNetworkParam{
		InternalBase: types.NewInternalBase(types.InternalApplyNetworkParam, 20),
		Network:      networkID,
		Change:       types.ConfigChange{Change: json.RawMessage(`{"transactionFee":25}`)},
	}
	require.NoError(t, h.SetGlobal(context.Background(), networkID, change, 20, networkID))

	network, ok := h.Accounts().NetworkAccount()
	require.True(t, ok)
	require.Equal(t, "25", network.Current.TransactionFee.String())
	require.Equal(t, uint64(1), network.Current.StabilityScaleDiv)
}

func TestInjectEVMIsNotExecutable(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	_, err := h.Inject(context.Background(), types.TimestampedTx{Tx: &types.EVMTx{Timestamp: 1}})
	require.ErrorIs(t, err, ErrRejected)
}

func TestLatestCycleAndActiveSet(t *testing.T) {
	start := time.Unix(1000, 0)
	now := start
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	h, err := New(storage.NewMemDB(), Options{
		NodeKey:       key,
		CycleDuration: time.Minute,
		Clock:         func() time.Time { return now },
	})
	require.NoError(t, err)

	now = start.Add(150 * time.Second)
	cycle, ok := h.LatestCycle()
	require.True(t, ok)
	require.Equal(t, bootstrap.Cycle{Counter: 2, Start: 1120}, cycle)

	require.True(t, h.IsNodeActiveByPubKey(key.PubKey().AccountID()))
	require.False(t, h.IsNodeActiveByPubKey("someone-else"))
	require.False(t, h.IsNodeActiveByPubKey(""))
}

func TestBootstrapAgainstLocalHost(t *testing.T) {
	h := newTestHost(t, time.Unix(1000, 0))
	flags := config.DefaultFlags()
	addr := common.HexToAddress("0x0100000000000000000000000000000000000000")
	c := bootstrap.New(h, flags, bootstrap.Settings{
		Mode:    config.ModeDebug,
		Genesis: []bootstrap.GenesisAccount{{Address: addr, Balance: big.NewInt(77)}},
	}, bootstrap.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	require.NoError(t, c.Run(context.Background()))

	_, ok := h.Accounts().NetworkAccount()
	require.True(t, ok)
	require.Equal(t, 1, h.Forwarded())

	wrapped, err := h.Accounts().GetAccount(types.ToAccountID(addr))
	require.NoError(t, err)
	user, ok := wrapped.User()
	require.True(t, ok)
	require.Equal(t, "77", user.Balance.String())
}
