package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/storage"
)

var accountPrefix = []byte("account:")

func accountKey(id string) []byte {
	buf := make([]byte, len(accountPrefix)+len(id))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], id)
	return buf
}

// Lookup is the read-only account view handed to validators and appliers.
// Returned accounts are the live wrapped state; appliers mutate them in place.
type Lookup interface {
	Get(id string) (*types.WrappedAccount, bool)
}

// WrappedStates is the per-transaction snapshot assembled by the host from
// the accounts declared in TransactionKeys.
type WrappedStates map[string]*types.WrappedAccount

func (w WrappedStates) Get(id string) (*types.WrappedAccount, bool) {
	acc, ok := w[id]
	if !ok || acc == nil {
		return nil, false
	}
	return acc, true
}

// Manager persists wrapped accounts in a key-value database and caches the
// network account.
type Manager struct {
	db        storage.Database
	networkID string

	mu      sync.RWMutex
	network *types.NetworkAccount
}

// NewManager creates an account manager over db. networkID is the well-known
// network account id.
func NewManager(db storage.Database, networkID string) *Manager {
	if networkID == "" {
		networkID = types.DefaultNetworkAccountID
	}
	return &Manager{db: db, networkID: networkID}
}

// NetworkAccountID returns the well-known network account id.
func (m *Manager) NetworkAccountID() string { return m.networkID }

// GetAccount loads the account stored under id.
func (m *Manager) GetAccount(id string) (*types.WrappedAccount, error) {
	data, err := m.db.Get(accountKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", coreerrors.ErrAccountNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	account := new(types.WrappedAccount)
	if err := json.Unmarshal(data, account); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	return account, nil
}

// Get implements Lookup. Decode failures are reported as absent.
func (m *Manager) Get(id string) (*types.WrappedAccount, bool) {
	account, err := m.GetAccount(id)
	if err != nil {
		return nil, false
	}
	return account, true
}

// GetLocalOrRemote returns the account or nil when it does not exist. A
// single-process manager has no remote shards to consult.
func (m *Manager) GetLocalOrRemote(ctx context.Context, id string) (*types.WrappedAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := m.GetAccount(id)
	if errors.Is(err, coreerrors.ErrAccountNotFound) {
		return nil, nil
	}
	return account, err
}

// SetAccount persists account.
func (m *Manager) SetAccount(account *types.WrappedAccount) error {
	encoded, err := encodeAccount(account)
	if err != nil {
		return err
	}
	if err := m.db.Put(accountKey(account.ID), encoded); err != nil {
		return err
	}
	m.observe(account)
	return nil
}

// CommitAccountCopies writes every copy in one atomic batch.
func (m *Manager) CommitAccountCopies(copies []types.AccountCopy) error {
	batch := make([]storage.KV, 0, len(copies))
	for _, c := range copies {
		if c.Data == nil {
			return fmt.Errorf("account copy %s has no data", c.AccountID)
		}
		if c.Data.ID != c.AccountID {
			return fmt.Errorf("account copy id mismatch: %s != %s", c.AccountID, c.Data.ID)
		}
		encoded, err := encodeAccount(c.Data)
		if err != nil {
			return err
		}
		batch = append(batch, storage.KV{Key: accountKey(c.AccountID), Value: encoded})
	}
	if err := m.db.WriteBatch(batch); err != nil {
		return fmt.Errorf("commit %d account copies: %w", len(copies), err)
	}
	for _, c := range copies {
		m.observe(c.Data)
	}
	return nil
}

// Snapshot assembles the wrapped states for ids, skipping absent accounts.
func (m *Manager) Snapshot(ids ...string) WrappedStates {
	states := make(WrappedStates, len(ids))
	for _, id := range ids {
		if account, ok := m.Get(id); ok {
			states[id] = account
		}
	}
	return states
}

// ForEach visits every stored account in id order.
func (m *Manager) ForEach(fn func(*types.WrappedAccount) error) error {
	return m.db.Iterate(accountPrefix, func(_, value []byte) error {
		account := new(types.WrappedAccount)
		if err := json.Unmarshal(value, account); err != nil {
			return err
		}
		return fn(account)
	})
}

// NetworkAccount returns the cached network account, loading it from storage
// on first use.
func (m *Manager) NetworkAccount() (*types.NetworkAccount, bool) {
	m.mu.RLock()
	cached := m.network
	m.mu.RUnlock()
	if cached != nil {
		return cached, true
	}
	account, ok := m.Get(m.networkID)
	if !ok {
		return nil, false
	}
	network, ok := account.Network()
	if !ok {
		return nil, false
	}
	m.mu.Lock()
	m.network = network
	m.mu.Unlock()
	return network, true
}

func (m *Manager) observe(account *types.WrappedAccount) {
	if account == nil || account.ID != m.networkID {
		return
	}
	if network, ok := account.Network(); ok {
		m.mu.Lock()
		m.network = network
		m.mu.Unlock()
	}
}

func encodeAccount(account *types.WrappedAccount) ([]byte, error) {
	if account == nil {
		return nil, fmt.Errorf("nil account")
	}
	encoded, err := json.Marshal(account)
	if err != nil {
		return nil, fmt.Errorf("encode account %s: %w", account.ID, err)
	}
	return encoded, nil
}
