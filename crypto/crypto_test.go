package crypto

import (
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type note struct {
	From  string     `json:"from"`
	Value int64      `json:"value"`
	Sign  *Signature `json:"sign,omitempty"`
}

func (n *note) Signature() *Signature { return n.Sign }

func TestSignAndVerifyObject(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	owner := key.PubKey().AccountID()
	require.True(t, IsAccountID(owner))

	obj := &note{From: owner, Value: 7}
	sig, err := SignObject(obj, key)
	require.NoError(t, err)
	require.Equal(t, owner, sig.Owner)
	obj.Sign = sig

	ok, err := VerifyObject(obj)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, Verify(obj, owner))
	require.True(t, Verify(obj, ""))
	require.False(t, Verify(obj, strings.Repeat("0", AccountIDLength)))

	obj.Value = 8
	ok, err = VerifyObject(obj)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyUnsigned(t *testing.T) {
	_, err := VerifyObject(&note{From: "a"})
	require.ErrorIs(t, err, ErrUnsigned)

	_, err = VerifyObject(&note{From: "a", Sign: &Signature{Owner: "a", Sig: []byte{1, 2}}})
	require.Error(t, err)
}

func TestHashSignedObjectIgnoresSignature(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	obj := &note{From: "a", Value: 1}
	before, err := HashSignedObject(obj)
	require.NoError(t, err)
	full, err := HashObject(obj)
	require.NoError(t, err)
	require.Equal(t, before, full)

	obj.Sign, err = SignObject(obj, key)
	require.NoError(t, err)
	after, err := HashSignedObject(obj)
	require.NoError(t, err)
	require.Equal(t, before, after)

	withSig, err := HashObject(obj)
	require.NoError(t, err)
	require.NotEqual(t, before, withSig)
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "node.keystore")

	require.NoError(t, SaveToKeystore(path, key, "pass"))
	loaded, err := LoadFromKeystore(path, "pass")
	require.NoError(t, err)
	require.Equal(t, key.Bytes(), loaded.Bytes())

	_, err = LoadFromKeystore(path, "wrong")
	require.Error(t, err)
}

func TestPrivateKeyFromHex(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	hexKey := "0x" + hex.EncodeToString(key.Bytes())

	parsed, err := PrivateKeyFromHex(hexKey)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().AccountID(), parsed.PubKey().AccountID())

	_, err = PrivateKeyFromHex("zz")
	require.Error(t, err)
}

func TestIsAccountID(t *testing.T) {
	require.True(t, IsAccountID(strings.Repeat("aB", 32)))
	require.False(t, IsAccountID(strings.Repeat("a", 63)))
	require.False(t, IsAccountID(strings.Repeat("g", 64)))
}
