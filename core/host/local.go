// Package host runs the transaction core as a single self-contained node:
// accounts live in the local database, global transactions apply
// immediately, and there are no peers to forward to.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrischabot/shardeum/config"
	"github.com/chrischabot/shardeum/core/bootstrap"
	"github.com/chrischabot/shardeum/core/dispatch"
	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/core/state"
	"github.com/chrischabot/shardeum/core/tx"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
	"github.com/chrischabot/shardeum/observability"
	"github.com/chrischabot/shardeum/storage"
)

const defaultCycleDuration = 60 * time.Second

var (
	// ErrRejected is returned by Inject when validation fails; the receipt
	// carries the reason.
	ErrRejected = errors.New("host: transaction rejected")
	// ErrNotExecutable is returned for transactions the local host can
	// validate but not execute.
	ErrNotExecutable = errors.New("host: transaction cannot be executed locally")
)

// Options configure a LocalHost.
type Options struct {
	NodeKey       *crypto.PrivateKey
	FirstSeed     bool
	NetworkID     string
	Flags         config.Flags
	Params        types.NetworkParameters
	CycleDuration time.Duration
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Receipt is the outcome of an injected transaction.
type Receipt struct {
	TxID      string                 `json:"txId"`
	Result    types.ValidationResult `json:"result"`
	Applied   bool                   `json:"applied"`
	Accounts  []string               `json:"accounts,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// LocalHost owns the account store, the active flag snapshot and the
// dispatcher built from it.
type LocalHost struct {
	nodeID        string
	publicKey     string
	firstSeed     bool
	accounts      *state.Manager
	registry      *tx.Registry
	params        types.NetworkParameters
	cycleDuration time.Duration
	started       time.Time
	now           func() time.Time
	logger        *slog.Logger
	events        *observability.EventMetrics

	// applyMu serialises state transitions.
	applyMu sync.Mutex

	mu         sync.RWMutex
	flags      config.Flags
	dispatcher *dispatch.Dispatcher
	forwarded  int
}

// New builds a host over db.
func New(db storage.Database, opts Options) (*LocalHost, error) {
	if db == nil {
		return nil, fmt.Errorf("host: database required")
	}
	if opts.NodeKey == nil {
		return nil, fmt.Errorf("host: node key required")
	}
	if opts.NetworkID == "" {
		opts.NetworkID = types.DefaultNetworkAccountID
	}
	if opts.CycleDuration <= 0 {
		opts.CycleDuration = defaultCycleDuration
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &LocalHost{
		nodeID:        uuid.NewString(),
		publicKey:     opts.NodeKey.PubKey().AccountID(),
		firstSeed:     opts.FirstSeed,
		accounts:      state.NewManager(db, opts.NetworkID),
		registry:      tx.NewRegistry(opts.NetworkID),
		params:        opts.Params,
		cycleDuration: opts.CycleDuration,
		started:       opts.Clock(),
		now:           opts.Clock,
		logger:        opts.Logger.With(slog.String("component", "host")),
		events:        observability.Events(),
		flags:         opts.Flags,
	}
	h.dispatcher = dispatch.New(opts.Flags, h.accounts, h,
		dispatch.WithLogger(opts.Logger),
		dispatch.WithRegistry(h.registry),
		dispatch.WithMetrics(observability.Dispatch()),
	)
	return h, nil
}

var _ bootstrap.Host = (*LocalHost)(nil)

func (h *LocalHost) NodeID() string { return h.nodeID }

// PublicKey returns the node's account id.
func (h *LocalHost) PublicKey() string { return h.publicKey }

func (h *LocalHost) IsFirstSeed() bool { return h.firstSeed }

// Accounts exposes the account store.
func (h *LocalHost) Accounts() *state.Manager { return h.accounts }

// LatestCycle derives the current cycle from the host's start time.
func (h *LocalHost) LatestCycle() (bootstrap.Cycle, bool) {
	elapsed := h.now().Sub(h.started)
	if elapsed < 0 {
		elapsed = 0
	}
	counter := uint64(elapsed / h.cycleDuration)
	start := h.started.Add(time.Duration(counter) * h.cycleDuration)
	return bootstrap.Cycle{Counter: counter, Start: start.Unix()}, true
}

// IsNodeActiveByPubKey reports whether pubKey belongs to the active set. A
// local host's only active node is itself.
func (h *LocalHost) IsNodeActiveByPubKey(pubKey string) bool {
	return pubKey != "" && pubKey == h.publicKey
}

// Flags returns the active flag snapshot.
func (h *LocalHost) Flags() config.Flags {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.flags
}

// Dispatcher returns the dispatcher reading the active flag snapshot.
func (h *LocalHost) Dispatcher() *dispatch.Dispatcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dispatcher
}

func (h *LocalHost) GetLocalOrRemoteAccount(ctx context.Context, id string) (*types.WrappedAccount, error) {
	return h.accounts.GetLocalOrRemote(ctx, id)
}

func (h *LocalHost) SetAccount(ctx context.Context, account *types.WrappedAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.accounts.SetAccount(account)
}

func (h *LocalHost) CommitAccountCopies(ctx context.Context, copies []types.AccountCopy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.accounts.CommitAccountCopies(copies)
}

// ForwardAccounts has no peers to reach; it only records the batch size.
func (h *LocalHost) ForwardAccounts(ctx context.Context, copies []types.AccountCopy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.forwarded += len(copies)
	h.mu.Unlock()
	h.logger.Debug("no peers to forward accounts to", slog.Int("accounts", len(copies)))
	return nil
}

// Forwarded returns how many account copies have been offered for
// replication.
func (h *LocalHost) Forwarded() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.forwarded
}

// SetGlobal applies a global internal transaction to address immediately.
func (h *LocalHost) SetGlobal(ctx context.Context, address string, itx types.InternalTx, when int64, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if address != h.accounts.NetworkAccountID() {
		return fmt.Errorf("host: global transaction addressed to %s, not the network account", address)
	}
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	var err error
	switch t := itx.(type) {
	case *types.InitNetwork:
		err = h.initNetwork(address, when)
	case *types.ApplyChangeConfig:
		err = h.applyChangeConfig(t)
	case *types.ApplyNetworkParam:
		err = h.applyNetworkParam(address, t, when)
	default:
		err = fmt.Errorf("%w: global %s", ErrNotExecutable, itx.InternalType())
	}
	if err != nil {
		return err
	}
	h.events.RecordGlobal(itx.InternalType().String())
	h.logger.Info("global transaction applied",
		slog.String("type", itx.InternalType().String()),
		slog.String("source", source),
		slog.Int64("when", when))
	return nil
}

func (h *LocalHost) initNetwork(address string, when int64) error {
	if existing, _ := h.accounts.Get(address); existing != nil {
		h.logger.Warn("network account already initialised", slog.String("network", address))
		return nil
	}
	params := h.params
	account, err := types.NewWrappedAccount(address, &types.NetworkAccount{Current: params}, when)
	if err != nil {
		return err
	}
	return h.accounts.SetAccount(account)
}

// applyChangeConfig installs a new flag snapshot. The change payload is a
// JSON object of flag overrides, optionally encoded as a JSON string.
func (h *LocalHost) applyChangeConfig(t *types.ApplyChangeConfig) error {
	raw, err := changePayload(t.Change.Change)
	if err != nil {
		return err
	}
	overrides, err := config.ParseOverrides(raw)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	next, err := h.flags.WithOverrides(overrides)
	if err != nil {
		return err
	}
	h.flags = next
	h.dispatcher = h.dispatcher.WithFlags(next)
	return nil
}

// applyNetworkParam merges the change into the current network parameters.
func (h *LocalHost) applyNetworkParam(address string, t *types.ApplyNetworkParam, when int64) error {
	wrapped, ok := h.accounts.Get(address)
	if !ok {
		return coreerrors.ErrNetworkAccountUnset
	}
	network, ok := wrapped.Network()
	if !ok {
		return fmt.Errorf("host: account %s is not a network account", address)
	}
	raw, err := changePayload(t.Change.Change)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), &network.Current); err != nil {
		return fmt.Errorf("host: decode network param change: %w", err)
	}
	wrapped.Timestamp = when
	if err := wrapped.UpdateHash(); err != nil {
		return err
	}
	return h.accounts.SetAccount(wrapped)
}

func changePayload(change json.RawMessage) (string, error) {
	if len(change) == 0 {
		return "", fmt.Errorf("host: empty change payload")
	}
	var encoded string
	if err := json.Unmarshal(change, &encoded); err == nil {
		return encoded, nil
	}
	return string(change), nil
}

// Validate runs the dispatcher's checks for ttx.
func (h *LocalHost) Validate(ctx context.Context, ttx types.TimestampedTx, app *dispatch.AppData) types.ValidationResult {
	return h.Dispatcher().ValidateTxnFields(ctx, ttx, app)
}

// Inject validates ttx and, when it is a user or global transaction, applies
// it. EVM transactions and node-lifecycle internal transactions are validated
// but not executed.
func (h *LocalHost) Inject(ctx context.Context, ttx types.TimestampedTx) (Receipt, error) {
	flags := h.Flags()
	receipt := Receipt{}
	id, err := tx.TxID(ttx.Tx, flags.TxHashingFix)
	if err != nil {
		return receipt, err
	}
	receipt.TxID = id

	result := h.Validate(ctx, ttx, nil)
	receipt.Result = result
	receipt.Timestamp = result.Timestamp
	if !result.Success {
		return receipt, ErrRejected
	}

	switch t := ttx.Tx.(type) {
	case *types.Friend, *types.SnapshotClaim:
		accounts, res, err := h.applyUser(ttx.Tx, result.Timestamp)
		if err != nil {
			return receipt, err
		}
		receipt.Result = res
		if !res.Success {
			return receipt, ErrRejected
		}
		receipt.Applied = true
		receipt.Accounts = accounts
	case types.InternalTx:
		if !t.InternalType().IsGlobal() {
			return receipt, fmt.Errorf("%w: %s", ErrNotExecutable, t.InternalType())
		}
		if err := h.SetGlobal(ctx, h.accounts.NetworkAccountID(), t, result.Timestamp, h.nodeID); err != nil {
			return receipt, err
		}
		receipt.Applied = true
		receipt.Accounts = []string{h.accounts.NetworkAccountID()}
	default:
		return receipt, fmt.Errorf("%w: %s", ErrNotExecutable, ttx.Tx.Kind())
	}
	return receipt, nil
}

// applyUser resolves the handler's accounts, revalidates against them,
// applies and commits the touched accounts in one batch.
func (h *LocalHost) applyUser(t types.Transaction, timestamp int64) ([]string, types.ValidationResult, error) {
	handler, err := h.registry.For(t)
	if err != nil {
		return nil, types.ValidationResult{}, err
	}
	keys := handler.Keys(t)

	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	states := make(state.WrappedStates, len(keys.AllKeys))
	for _, id := range keys.AllKeys {
		account, _ := h.accounts.Get(id)
		resp, err := handler.CreateRelevantAccount(account, id, false)
		if err != nil {
			return nil, types.Reject(err.Error(), timestamp), nil
		}
		states[id] = resp.Data
	}

	res := handler.Validate(t, states)
	res.Timestamp = timestamp
	if !res.Success {
		return nil, res, nil
	}
	if err := handler.Apply(t, timestamp, states); err != nil {
		return nil, res, err
	}

	cycle, _ := h.LatestCycle()
	copies := make([]types.AccountCopy, 0, len(keys.AllKeys))
	ids := make([]string, 0, len(keys.AllKeys))
	seen := make(map[string]struct{}, len(keys.AllKeys))
	for _, id := range keys.AllKeys {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		copies = append(copies, types.NewAccountCopy(cycle.Counter, states[id], id == h.accounts.NetworkAccountID()))
		ids = append(ids, id)
	}
	if err := h.accounts.CommitAccountCopies(copies); err != nil {
		return nil, res, err
	}
	h.events.RecordApplied(string(t.Kind()))
	return ids, res, nil
}
