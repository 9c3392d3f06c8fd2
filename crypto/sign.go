package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// signField is the JSON key carrying an object's signature. It is stripped
// before hashing so a signature never covers itself.
const signField = "sign"

var ErrUnsigned = errors.New("crypto: object is not signed")

// Signature binds an object to the account that signed it.
type Signature struct {
	Owner string        `json:"owner"`
	Sig   hexutil.Bytes `json:"sig"`
}

// Signed is implemented by every object that may carry a Signature.
type Signed interface {
	Signature() *Signature
}

// canonicalJSON re-encodes v with sorted object keys, optionally dropping the
// top-level sign field. Numbers are preserved exactly.
func canonicalJSON(v any, withoutSign bool) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	if obj, ok := generic.(map[string]any); ok && withoutSign {
		delete(obj, signField)
	}
	return json.Marshal(generic)
}

// HashObject returns the keccak256 digest of the canonical JSON form of v.
func HashObject(v any) (common.Hash, error) {
	encoded, err := canonicalJSON(v, false)
	if err != nil {
		return common.Hash{}, fmt.Errorf("crypto: canonicalise object: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// HashSignedObject hashes v without its signature so the digest is stable
// before and after signing.
func HashSignedObject(v any) (common.Hash, error) {
	encoded, err := canonicalJSON(v, true)
	if err != nil {
		return common.Hash{}, fmt.Errorf("crypto: canonicalise object: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// SignObject signs the canonical form of v and returns the signature. Callers
// attach the result to the object's sign field.
func SignObject(v any, key *PrivateKey) (*Signature, error) {
	if key == nil {
		return nil, errors.New("crypto: nil private key")
	}
	digest, err := HashSignedObject(v)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest.Bytes(), key.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Signature{Owner: key.PubKey().AccountID(), Sig: sig}, nil
}

// VerifyObject checks that the signature carried by obj was produced by the
// key owning sign.owner over the canonical form of obj.
func VerifyObject(obj Signed) (bool, error) {
	sig := obj.Signature()
	if sig == nil || len(sig.Sig) == 0 {
		return false, ErrUnsigned
	}
	if len(sig.Sig) != crypto.SignatureLength {
		return false, fmt.Errorf("crypto: signature must be %d bytes", crypto.SignatureLength)
	}
	digest, err := HashSignedObject(obj)
	if err != nil {
		return false, err
	}
	pub, err := crypto.SigToPub(digest.Bytes(), sig.Sig)
	if err != nil {
		return false, fmt.Errorf("crypto: recover signer: %w", err)
	}
	recovered := (&PublicKey{pub}).AccountID()
	return strings.EqualFold(recovered, sig.Owner), nil
}

// Verify is VerifyObject with an optional required owner. A non-empty
// expectedOwner that differs from sign.owner fails without touching the
// signature bytes.
func Verify(obj Signed, expectedOwner string) bool {
	if expectedOwner != "" {
		sig := obj.Signature()
		if sig == nil || sig.Owner != expectedOwner {
			return false
		}
	}
	ok, err := VerifyObject(obj)
	return err == nil && ok
}
