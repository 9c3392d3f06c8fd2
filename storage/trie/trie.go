package trie

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
)

// ErrNoCheckpoint is returned by Revert when no checkpoint is open.
var ErrNoCheckpoint = errors.New("trie: no checkpoint to revert to")

// Scratch is an in-memory Merkle Patricia trie used to build account state
// that never reaches disk. Keys are expected to be hashed (keccak256) before
// insertion.
//
// The scratch trie supports nested checkpoints: Revert discards every
// mutation since the most recent Checkpoint, Commit folds them in and records
// the resulting root.
//
// Scratch is not safe for concurrent use.
type Scratch struct {
	trieDB      *triedb.Database
	trie        *gethtrie.Trie
	checkpoints []*gethtrie.Trie
	root        common.Hash
}

// NewScratch returns an empty scratch trie backed by a fresh memory database.
func NewScratch() (*Scratch, error) {
	trieDB := triedb.NewDatabase(rawdb.NewMemoryDatabase(), triedb.HashDefaults)
	underlying, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), trieDB)
	if err != nil {
		return nil, err
	}
	return &Scratch{trieDB: trieDB, trie: underlying, root: gethtypes.EmptyRootHash}, nil
}

// Get retrieves a value from the trie for the provided key. A missing key
// yields a nil value and no error.
func (s *Scratch) Get(key []byte) ([]byte, error) {
	return s.trie.Get(key)
}

// Update inserts or updates a value in the trie for the provided key.
func (s *Scratch) Update(key, value []byte) error {
	return s.trie.Update(key, value)
}

// Delete removes the key from the trie.
func (s *Scratch) Delete(key []byte) error {
	return s.trie.Delete(key)
}

// Hash returns the root hash reflecting all in-memory mutations.
func (s *Scratch) Hash() common.Hash {
	return s.trie.Hash()
}

// Root returns the last committed root hash.
func (s *Scratch) Root() common.Hash {
	return s.root
}

// Checkpoint opens a revert point.
func (s *Scratch) Checkpoint() {
	s.checkpoints = append(s.checkpoints, s.trie.Copy())
}

// Revert restores the trie to the most recent checkpoint and closes it.
func (s *Scratch) Revert() error {
	n := len(s.checkpoints)
	if n == 0 {
		return ErrNoCheckpoint
	}
	s.trie = s.checkpoints[n-1]
	s.checkpoints = s.checkpoints[:n-1]
	return nil
}

// Commit closes every open checkpoint and records the current root.
func (s *Scratch) Commit() common.Hash {
	s.checkpoints = nil
	s.root = s.trie.Hash()
	return s.root
}

// Reset discards all state and checkpoints and returns to the empty trie.
func (s *Scratch) Reset() error {
	underlying, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), s.trieDB)
	if err != nil {
		return err
	}
	s.trie = underlying
	s.checkpoints = nil
	s.root = gethtypes.EmptyRootHash
	return nil
}

// Copy returns an independent copy of the scratch trie. Open checkpoints are
// not carried over.
func (s *Scratch) Copy() *Scratch {
	return &Scratch{trieDB: s.trieDB, trie: s.trie.Copy(), root: s.root}
}
