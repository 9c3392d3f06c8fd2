package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chrischabot/shardeum/config"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/observability"
	"github.com/chrischabot/shardeum/observability/logging"
)

// Cycle identifies the consensus cycle genesis accounts are stamped with.
// Start is in seconds.
type Cycle struct {
	Counter uint64
	Start   int64
}

// Host is the node surface the coordinator drives.
type Host interface {
	Committer
	NodeID() string
	IsFirstSeed() bool
	LatestCycle() (Cycle, bool)
	// GetLocalOrRemoteAccount returns nil, nil when the account does not exist.
	GetLocalOrRemoteAccount(ctx context.Context, id string) (*types.WrappedAccount, error)
	SetAccount(ctx context.Context, account *types.WrappedAccount) error
	ForwardAccounts(ctx context.Context, copies []types.AccountCopy) error
	SetGlobal(ctx context.Context, address string, tx types.InternalTx, when int64, source string) error
}

// BootstrapState records what this process learned during bootstrap. It
// lives for the whole process and is never persisted.
type BootstrapState struct {
	mu              sync.RWMutex
	originator      bool
	networkObserved bool
}

// Originator reports whether this node ran the genesis path.
func (s *BootstrapState) Originator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.originator
}

// NetworkObserved reports whether the network account is known to exist.
func (s *BootstrapState) NetworkObserved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.networkObserved
}

func (s *BootstrapState) markOriginator() {
	s.mu.Lock()
	s.originator = true
	s.mu.Unlock()
}

func (s *BootstrapState) markObserved() {
	s.mu.Lock()
	s.networkObserved = true
	s.mu.Unlock()
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Settings are the inputs that do not change over a node's lifetime.
type Settings struct {
	NetworkID string
	Mode      config.Mode
	Genesis   []GenesisAccount
	Waits     config.Bootstrap
}

// Coordinator seeds the cluster's genesis state exactly once. The first seed
// node synthesises genesis accounts and injects the network account; every
// other node waits until it can see that account.
type Coordinator struct {
	host     Host
	flags    config.Flags
	settings Settings
	builder  *DebugStateBuilder
	state    *BootstrapState
	sleep    SleepFunc
	now      func() time.Time
	logger   *slog.Logger
	metrics  *observability.BootstrapMetrics
	tracer   trace.Tracer
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger; nil keeps slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSleep replaces the wait function, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(c *Coordinator) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock replaces the wall clock used to stamp the network transaction.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics enables prometheus counters.
func WithMetrics(metrics *observability.BootstrapMetrics) Option {
	return func(c *Coordinator) { c.metrics = metrics }
}

// New builds a coordinator for one node.
func New(host Host, flags config.Flags, settings Settings, opts ...Option) *Coordinator {
	if settings.NetworkID == "" {
		settings.NetworkID = types.DefaultNetworkAccountID
	}
	c := &Coordinator{
		host:     host,
		flags:    flags,
		settings: settings,
		builder:  NewDebugStateBuilder(),
		state:    &BootstrapState{},
		sleep:    sleepContext,
		now:      time.Now,
		logger:   slog.Default(),
		tracer:   otel.Tracer("shardeum/bootstrap"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State exposes the process-wide bootstrap state.
func (c *Coordinator) State() *BootstrapState { return c.state }

// Run executes the bootstrap sequence. It returns once the network account
// exists or has been injected, or when ctx is cancelled. Once the network
// account has been observed further calls return immediately.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.flags.GlobalNetworkAccount {
		c.logger.Info("global network account disabled, skipping bootstrap")
		return nil
	}
	if c.state.NetworkObserved() {
		return nil
	}
	originator := c.host.IsFirstSeed()
	ctx, span := c.tracer.Start(ctx, "bootstrap.run", trace.WithAttributes(
		attribute.String("node.id", c.host.NodeID()),
		attribute.Bool("bootstrap.originator", originator),
	))
	defer span.End()

	var err error
	if originator {
		c.state.markOriginator()
		err = c.runOriginator(ctx)
	} else {
		err = c.waitForNetwork(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (c *Coordinator) runOriginator(ctx context.Context) error {
	nodeID := c.host.NodeID()
	c.logger.Info("originating genesis state", slog.String("node", nodeID))

	c.phase("initial_grace")
	if err := c.sleep(ctx, c.settings.Waits.InitialGrace); err != nil {
		return err
	}

	if c.flags.DebugRestoreFile != "" {
		c.phase("restore")
		report, err := Restore(ctx, c.host, c.flags.DebugRestoreFile, c.flags.DebugRestoreArchiveBatch, c.logger)
		if err != nil {
			return err
		}
		c.recordAccounts("restore", report.Committed)
	}

	if c.flags.SetupGenesisAccount {
		c.phase("genesis")
		if err := c.seedGenesis(ctx); err != nil {
			return err
		}
	}

	c.phase("network_grace")
	if err := c.sleep(ctx, c.settings.Waits.NetworkGrace); err != nil {
		return err
	}

	when := c.now().UnixMilli()
	existing, err := c.host.GetLocalOrRemoteAccount(ctx, c.settings.NetworkID)
	if err != nil {
		return fmt.Errorf("bootstrap: look up network account: %w", err)
	}
	if existing != nil {
		c.logger.Info("network account already existed", slog.String("network", c.settings.NetworkID))
		c.phase("network_existing")
		if err := c.sleep(ctx, c.settings.Waits.ExistingWait); err != nil {
			return err
		}
		c.state.markObserved()
		return nil
	}

	initTx := &types.InitNetwork{
		InternalBase: types.NewInternalBase(types.InternalInitNetwork, when),
		Network:      c.settings.NetworkID,
	}
	if err := c.host.SetGlobal(ctx, c.settings.NetworkID, initTx, when, c.settings.NetworkID); err != nil {
		return fmt.Errorf("bootstrap: inject network account: %w", err)
	}
	c.phase("network_injected")
	c.logger.Info("network account injected",
		slog.String("node", nodeID),
		slog.String("network", c.settings.NetworkID),
		slog.Int64("when", when))
	c.state.markObserved()
	return nil
}

func (c *Coordinator) seedGenesis(ctx context.Context) error {
	cycle, _ := c.host.LatestCycle()
	copies := make([]types.AccountCopy, 0, len(c.settings.Genesis)+1)
	skipped := 0

	session, err := c.builder.Acquire()
	if err != nil {
		return err
	}
	defer session.Release()

	for _, entry := range c.settings.Genesis {
		id := types.ToAccountID(entry.Address)
		existing, err := c.host.GetLocalOrRemoteAccount(ctx, id)
		if err != nil {
			return fmt.Errorf("bootstrap: look up genesis account %s: %w", id, err)
		}
		if existing != nil {
			skipped++
			continue
		}
		wrapped, err := c.createAccount(session, entry, cycle)
		if err != nil {
			return err
		}
		copies = append(copies, types.NewAccountCopy(cycle.Counter, wrapped, false))
		c.logger.Debug("genesis account created",
			slog.String("address", entry.Address.Hex()),
			slog.String("amount", entry.Balance.String()))
	}
	if skipped > 0 {
		c.logger.Info("skipped existing genesis accounts", slog.Int("count", skipped))
	}
	c.recordAccounts("genesis", len(copies))

	if c.flags.DevPublicKey != "" {
		dev, err := types.NewWrappedAccount(c.flags.DevPublicKey, &types.DevAccount{}, cycle.Start*1000)
		if err != nil {
			return fmt.Errorf("bootstrap: build dev account: %w", err)
		}
		if err := c.host.SetAccount(ctx, dev); err != nil {
			return fmt.Errorf("bootstrap: store dev account: %w", err)
		}
		copies = append(copies, types.NewAccountCopy(cycle.Counter, dev, false))
		c.recordAccounts("dev", 1)
		c.logger.Info("dev account created", logging.ShortID("account", c.flags.DevPublicKey))
	}

	if err := c.host.CommitAccountCopies(ctx, copies); err != nil {
		return fmt.Errorf("bootstrap: commit genesis accounts: %w", err)
	}
	if c.flags.ForwardGenesisAccounts {
		if err := c.host.ForwardAccounts(ctx, copies); err != nil {
			return fmt.Errorf("bootstrap: forward genesis accounts: %w", err)
		}
	}
	return nil
}

// createAccount derives the initial state of one genesis address in the
// scratch builder and wraps it as a user account.
func (c *Coordinator) createAccount(session *DebugSession, entry GenesisAccount, cycle Cycle) (*types.WrappedAccount, error) {
	if err := session.Reset(); err != nil {
		return nil, err
	}
	session.Checkpoint()
	if err := session.PutAccount(entry.Address, entry.Balance); err != nil {
		return nil, errors.Join(err, session.Revert())
	}
	session.Commit()
	account, err := session.Account(entry.Address)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("bootstrap: scratch account %s vanished", entry.Address.Hex())
	}

	user := types.NewUserAccount()
	user.EthAddress = strings.ToLower(entry.Address.Hex())
	user.Balance = account.Balance.ToBig()
	user.Nonce = account.Nonce
	user.StorageRoot = account.Root
	user.CodeHash = common.BytesToHash(account.CodeHash)
	return types.NewWrappedAccount(types.ToAccountID(entry.Address), user, cycle.Start*1000)
}

func (c *Coordinator) waitForNetwork(ctx context.Context) error {
	c.phase("wait_network")
	for {
		existing, err := c.host.GetLocalOrRemoteAccount(ctx, c.settings.NetworkID)
		if err != nil {
			c.logger.Warn("network account lookup failed", slog.Any("error", err))
		} else if existing != nil {
			c.state.markObserved()
			c.logger.Info("network account observed", slog.String("network", c.settings.NetworkID))
			return nil
		}
		if c.metrics != nil {
			c.metrics.RecordPoll()
		}
		c.logger.Debug("waiting for network account")
		if err := c.sleep(ctx, c.settings.Waits.PollInterval); err != nil {
			return err
		}
	}
}

func (c *Coordinator) phase(name string) {
	if c.metrics != nil {
		c.metrics.RecordPhase(name)
	}
}

func (c *Coordinator) recordAccounts(source string, n int) {
	if c.metrics != nil {
		c.metrics.RecordAccounts(source, n)
	}
}
