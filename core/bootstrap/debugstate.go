package bootstrap

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	coreerrors "github.com/chrischabot/shardeum/core/errors"
	"github.com/chrischabot/shardeum/storage/trie"
)

// MissResolver is consulted when a session reads an account that is absent
// from the scratch trie.
type MissResolver interface {
	AccountMiss(addr common.Address) (*gethtypes.StateAccount, bool)
}

// localOnly resolves nothing: genesis derivation never reaches other shards.
type localOnly struct{}

func (localOnly) AccountMiss(common.Address) (*gethtypes.StateAccount, bool) { return nil, false }

// DebugStateBuilder is a scratch account state used to derive genesis
// accounts outside consensus. Only one session may be open at a time.
type DebugStateBuilder struct {
	inUse   atomic.Bool
	scratch *trie.Scratch
	miss    MissResolver
}

// BuilderOption configures a DebugStateBuilder.
type BuilderOption func(*DebugStateBuilder)

// WithMissResolver replaces the local-only miss handling.
func WithMissResolver(resolver MissResolver) BuilderOption {
	return func(b *DebugStateBuilder) {
		if resolver != nil {
			b.miss = resolver
		}
	}
}

// NewDebugStateBuilder returns an idle builder. The scratch trie is created
// on first use.
func NewDebugStateBuilder(opts ...BuilderOption) *DebugStateBuilder {
	b := &DebugStateBuilder{miss: localOnly{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Acquire opens the builder for exclusive use. It panics with
// ErrStateBuilderInUse when a session is already open: concurrent sessions
// would corrupt each other's scratch state.
func (b *DebugStateBuilder) Acquire() (*DebugSession, error) {
	if !b.inUse.CompareAndSwap(false, true) {
		panic(coreerrors.ErrStateBuilderInUse)
	}
	if b.scratch == nil {
		scratch, err := trie.NewScratch()
		if err != nil {
			b.inUse.Store(false)
			return nil, fmt.Errorf("bootstrap: create scratch state: %w", err)
		}
		b.scratch = scratch
	}
	if err := b.scratch.Reset(); err != nil {
		b.inUse.Store(false)
		return nil, err
	}
	return &DebugSession{builder: b, scratch: b.scratch, miss: b.miss}, nil
}

// DebugSession is an open handle on the builder.
type DebugSession struct {
	builder  *DebugStateBuilder
	scratch  *trie.Scratch
	miss     MissResolver
	released bool
}

// Checkpoint opens a revert point.
func (s *DebugSession) Checkpoint() { s.scratch.Checkpoint() }

// Revert drops everything since the last checkpoint.
func (s *DebugSession) Revert() error { return s.scratch.Revert() }

// Commit folds pending mutations in and returns the scratch root.
func (s *DebugSession) Commit() common.Hash { return s.scratch.Commit() }

// Reset discards all scratch state, committed or not.
func (s *DebugSession) Reset() error { return s.scratch.Reset() }

// PutAccount writes a fresh externally owned account holding balance.
func (s *DebugSession) PutAccount(addr common.Address, balance *big.Int) error {
	amount, overflow := uint256.FromBig(balance)
	if overflow || balance.Sign() < 0 {
		return fmt.Errorf("bootstrap: balance %s out of range for %s", balance, addr.Hex())
	}
	account := gethtypes.StateAccount{
		Nonce:    0,
		Balance:  amount,
		Root:     gethtypes.EmptyRootHash,
		CodeHash: gethtypes.EmptyCodeHash.Bytes(),
	}
	enc, err := rlp.EncodeToBytes(&account)
	if err != nil {
		return err
	}
	return s.scratch.Update(crypto.Keccak256(addr.Bytes()), enc)
}

// Account reads an account back. An account absent from the scratch trie is
// handed to the miss resolver; when that finds nothing the result is nil, nil.
func (s *DebugSession) Account(addr common.Address) (*gethtypes.StateAccount, error) {
	enc, err := s.scratch.Get(crypto.Keccak256(addr.Bytes()))
	if err != nil {
		return nil, err
	}
	if len(enc) == 0 {
		if account, ok := s.miss.AccountMiss(addr); ok {
			return account, nil
		}
		return nil, nil
	}
	account := new(gethtypes.StateAccount)
	if err := rlp.DecodeBytes(enc, account); err != nil {
		return nil, fmt.Errorf("bootstrap: decode scratch account: %w", err)
	}
	return account, nil
}

// Release resets the scratch state and returns the builder to the idle pool.
// Releasing twice is a no-op.
func (s *DebugSession) Release() {
	if s.released {
		return
	}
	s.released = true
	_ = s.scratch.Reset()
	s.builder.inUse.Store(false)
}
