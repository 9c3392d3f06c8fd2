package trie

import (
	"testing"

	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestScratchUpdateAndCommit(t *testing.T) {
	s, err := NewScratch()
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, s.Hash())

	key := crypto.Keccak256([]byte("key"))
	require.NoError(t, s.Update(key, []byte("value")))

	got, err := s.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	root := s.Commit()
	require.NotEqual(t, gethtypes.EmptyRootHash, root)
	require.Equal(t, root, s.Root())
}

func TestScratchRevertDiscardsMutations(t *testing.T) {
	s, err := NewScratch()
	require.NoError(t, err)

	keep := crypto.Keccak256([]byte("keep"))
	drop := crypto.Keccak256([]byte("drop"))
	require.NoError(t, s.Update(keep, []byte("1")))
	before := s.Hash()

	s.Checkpoint()
	require.NoError(t, s.Update(drop, []byte("2")))
	require.NotEqual(t, before, s.Hash())
	require.NoError(t, s.Revert())

	require.Equal(t, before, s.Hash())
	got, err := s.Get(drop)
	require.NoError(t, err)
	require.Nil(t, got)

	require.ErrorIs(t, s.Revert(), ErrNoCheckpoint)
}

func TestScratchResetAndCopy(t *testing.T) {
	s, err := NewScratch()
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("key"))
	require.NoError(t, s.Update(key, []byte("value")))
	s.Commit()

	cp := s.Copy()
	require.NoError(t, s.Reset())
	require.Equal(t, gethtypes.EmptyRootHash, s.Hash())
	require.Equal(t, gethtypes.EmptyRootHash, s.Root())

	got, err := cp.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)
}
