package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chrischabot/shardeum/config"
	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/core/pricing"
	"github.com/chrischabot/shardeum/core/tx"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
	"github.com/chrischabot/shardeum/observability"
)

const (
	LaneSetCertTime = "set_cert_time"
	LaneInternal    = "internal"
	LaneUser        = "user"
	LaneEVM         = "evm"
)

const (
	reasonBadSignature       = "Transaction is not signed or signature is not valid"
	reasonLowBalance         = "Sender does not have enough balance."
	reasonDevKeyUndefined    = "Dev key is not defined on the server!"
	reasonDevKeyMismatch     = "Dev key does not match!"
	reasonInternalBadSig     = "Invalid signature for internal tx"
	reasonMissingEVMEnvelope = "fail"
)

// NodeRegistry answers whether a node is currently part of the active set.
type NodeRegistry interface {
	IsNodeActiveByPubKey(pubKey string) bool
}

// NetworkSource supplies the cached network account used for scaling.
type NetworkSource interface {
	NetworkAccount() (*types.NetworkAccount, bool)
}

// Dispatcher classifies inbound transactions and runs the field-level checks
// for their lane. It holds no per-transaction state apart from the bounded
// app-data cache and is safe for concurrent use.
type Dispatcher struct {
	flags    config.Flags
	chainID  *big.Int
	scaler   pricing.Scaler
	network  NetworkSource
	nodes    NodeRegistry
	registry *tx.Registry
	cache    *appDataCache
	logger   *slog.Logger
	metrics  *observability.DispatchMetrics
	tracer   trace.Tracer
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithScaler replaces the stability-factor scaler.
func WithScaler(scaler pricing.Scaler) Option {
	return func(d *Dispatcher) {
		if scaler != nil {
			d.scaler = scaler
		}
	}
}

// WithRegistry sets the user transaction handlers.
func WithRegistry(registry *tx.Registry) Option {
	return func(d *Dispatcher) {
		if registry != nil {
			d.registry = registry
		}
	}
}

// WithMetrics enables prometheus counters.
func WithMetrics(metrics *observability.DispatchMetrics) Option {
	return func(d *Dispatcher) { d.metrics = metrics }
}

// New builds a dispatcher reading the given flag snapshot.
func New(flags config.Flags, network NetworkSource, nodes NodeRegistry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		flags:    flags,
		chainID:  new(big.Int).SetUint64(flags.ChainID),
		scaler:   pricing.StabilityScaler{},
		network:  network,
		nodes:    nodes,
		registry: tx.NewRegistry(""),
		cache:    newAppDataCache(flags.AppDataCacheSize),
		logger:   slog.Default(),
		tracer:   otel.Tracer("shardeum/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.nodes == nil {
		d.nodes = noActiveNodes{}
	}
	return d
}

// WithFlags returns a dispatcher reading flags and sharing everything else,
// including the app-data cache, with d.
func (d *Dispatcher) WithFlags(flags config.Flags) *Dispatcher {
	next := *d
	next.flags = flags
	next.chainID = new(big.Int).SetUint64(flags.ChainID)
	return &next
}

// Flags returns the snapshot d reads.
func (d *Dispatcher) Flags() config.Flags { return d.flags }

// AppData returns the app data last recorded for an EVM transaction hash.
func (d *Dispatcher) AppData(hash string) (*AppData, bool) { return d.cache.get(hash) }

// ValidateTxnFields resolves the transaction timestamp and runs the checks of
// the transaction's lane. It never returns an error: every failure, including
// a panic inside the EVM lane, is reported through the result.
func (d *Dispatcher) ValidateTxnFields(ctx context.Context, ttx types.TimestampedTx, app *AppData) types.ValidationResult {
	start := time.Now()
	lane := laneOf(ttx.Tx)
	_, span := d.tracer.Start(ctx, "dispatch.validate_txn_fields", trace.WithAttributes(attribute.String("lane", lane)))
	defer span.End()

	res := d.validate(ttx, app, lane)

	span.SetAttributes(attribute.Bool("success", res.Success), attribute.String("reason", res.Reason))
	d.metrics.ObserveValidation(lane, res.Success, time.Since(start))
	if d.flags.VerboseLogs {
		d.logger.Debug("validateTxnFields", "lane", lane, "success", res.Success, "reason", res.Reason)
	}
	return res
}

func (d *Dispatcher) validate(ttx types.TimestampedTx, app *AppData, lane string) types.ValidationResult {
	if ttx.Tx == nil {
		return types.Reject(coreerrors.ErrInvalidTimestamp.Error(), 0)
	}
	ts := resolveTimestamp(ttx)
	if ts == 0 {
		return types.Reject(coreerrors.ErrInvalidTimestamp.Error(), 0)
	}

	switch t := ttx.Tx.(type) {
	case *types.SetCertTime:
		return withTimestamp(tx.ValidateSetCertTime(t), ts)
	case types.InternalTx:
		return d.validateInternal(t, ts)
	case *types.EVMTx:
		return d.validateEVM(t, app, ts)
	case *types.Friend, *types.SnapshotClaim:
		handler, err := d.registry.For(t)
		if err != nil {
			return types.Reject(err.Error(), ts)
		}
		res, err := handler.ValidateFields(t)
		if err != nil {
			return types.Reject(err.Error(), ts)
		}
		return withTimestamp(res, ts)
	default:
		return types.Reject(fmt.Sprintf("unsupported transaction %T (lane %s)", t, lane), ts)
	}
}

func resolveTimestamp(ttx types.TimestampedTx) int64 {
	if ttx.Receipt != nil && ttx.Receipt.Timestamp != 0 {
		return ttx.Receipt.Timestamp
	}
	return ttx.Tx.TxTimestamp()
}

func (d *Dispatcher) validateInternal(internal types.InternalTx, ts int64) types.ValidationResult {
	kind := internal.InternalType()
	if kind.IsGlobal() {
		return types.Accept("", ts)
	}
	switch t := internal.(type) {
	case *types.ChangeConfig:
		devKey := d.flags.DevPublicKey
		if devKey == "" {
			return types.Reject(reasonDevKeyUndefined, ts)
		}
		if !crypto.Verify(t, devKey) {
			return types.Reject(reasonDevKeyMismatch, ts)
		}
		return types.Accept("", ts)
	case *types.InitRewardTimes:
		return withTimestamp(tx.ValidateInitRewardTimes(t), ts)
	case *types.ClaimReward:
		return withTimestamp(tx.ValidateClaimReward(t), ts)
	case *types.Penalty:
		return withTimestamp(tx.ValidatePenalty(t), ts)
	}
	ok, err := crypto.VerifyObject(internal)
	if err != nil || !ok {
		return types.Reject(reasonInternalBadSig, ts)
	}
	return types.Accept("", ts)
}

func (d *Dispatcher) validateEVM(evm *types.EVMTx, app *AppData, ts int64) (res types.ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("evm validation panic", "panic", r)
			d.metrics.RecordPrecheckFailure("exception")
			res = types.Reject(fmt.Sprint(r), ts)
		}
	}()
	reason, err := d.checkEVM(evm, app)
	if err != nil {
		d.metrics.RecordPrecheckFailure("exception")
		return types.Reject(err.Error(), ts)
	}
	if reason != "" {
		return types.Reject(reason, ts)
	}
	return types.Accept("", ts)
}

func (d *Dispatcher) checkEVM(evm *types.EVMTx, app *AppData) (string, error) {
	if len(evm.Raw) == 0 {
		return "", errors.New(reasonMissingEVMEnvelope)
	}
	parse := ParseEVM(evm.Raw, d.chainID)
	if err := parse.Err(); err != nil {
		if d.flags.VerboseLogs {
			d.logger.Debug("unable to parse evm tx", "legacy", parse.LegacyErr, "accessList", parse.AccessErr)
		}
		return "", err
	}
	parsed := parse.Parsed
	if d.cache.put(parsed.Hash.Hex(), app) {
		d.metrics.RecordCacheReset()
	}

	if !parsed.IsSigned || !parsed.IsValid {
		d.metrics.RecordPrecheckFailure("signature")
		return reasonBadSignature, nil
	}

	if d.flags.TxBalancePreCheck && app != nil {
		reason, err := d.checkBalance(parsed, app)
		if err != nil || reason != "" {
			return reason, err
		}
	}

	if d.flags.TxNoncePreCheck && app != nil {
		if reason := d.checkNonce(parsed, app); reason != "" {
			return reason, nil
		}
	}

	switch {
	case app.isStake():
		if d.flags.VerboseLogs {
			d.logger.Debug("validating stake coins tx fields", "nominator", app.Stake.Nominator, "nominee", app.Stake.Nominee)
		}
		reason, err := d.checkStake(parsed, app)
		if reason != "" {
			d.metrics.RecordPrecheckFailure("stake")
		}
		return reason, err
	case app.isUnstake():
		reason := d.checkUnstake(parsed, app)
		if reason != "" {
			d.metrics.RecordPrecheckFailure("unstake")
		}
		return reason, nil
	}
	return "", nil
}

func (d *Dispatcher) checkBalance(parsed *ParsedTx, app *AppData) (string, error) {
	minUsd := big.NewInt(1)
	if d.flags.ChargeConstantTxFee {
		minUsd = d.flags.ConstantTxFee()
	}
	params, err := d.networkParams()
	if err != nil {
		return "", err
	}
	minBalance, err := d.scaler.Scale(minUsd, params)
	if err != nil {
		return "", err
	}
	minBalance = new(big.Int).Add(minBalance, parsed.Value)
	balance := app.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Cmp(minBalance) < 0 {
		d.metrics.RecordPrecheckFailure("balance")
		if d.flags.VerboseLogs {
			d.logger.Debug("balance fail", "sender", parsed.Sender.Hex(), "minBalance", minBalance.String(), "balance", balance.String())
		}
		return reasonLowBalance, nil
	}
	return "", nil
}

func (d *Dispatcher) checkNonce(parsed *ParsedTx, app *AppData) string {
	expected := app.Nonce + app.QueueCount
	if parsed.Nonce != expected {
		d.metrics.RecordPrecheckFailure("nonce")
		if d.flags.VerboseLogs {
			d.logger.Debug("nonce fail", "expectedNonce", expected, "txNonce", parsed.Nonce, "txHash", parsed.Hash.Hex())
		}
		return fmt.Sprintf("Transaction nonce != %d  txNonce:%d accountNonce:%d queueCount:%d",
			expected, parsed.Nonce, app.Nonce, app.QueueCount)
	}
	return ""
}

func (d *Dispatcher) networkParams() (types.NetworkParameters, error) {
	if d.network == nil {
		return types.NetworkParameters{}, coreerrors.ErrNetworkAccountUnset
	}
	network, ok := d.network.NetworkAccount()
	if !ok || network == nil {
		return types.NetworkParameters{}, coreerrors.ErrNetworkAccountUnset
	}
	return network.Current, nil
}

func laneOf(t types.Transaction) string {
	switch t.(type) {
	case *types.SetCertTime:
		return LaneSetCertTime
	case types.InternalTx:
		return LaneInternal
	case *types.Friend, *types.SnapshotClaim:
		return LaneUser
	default:
		return LaneEVM
	}
}

func withTimestamp(res types.ValidationResult, ts int64) types.ValidationResult {
	res.Timestamp = ts
	return res
}

type noActiveNodes struct{}

func (noActiveNodes) IsNodeActiveByPubKey(string) bool { return false }
