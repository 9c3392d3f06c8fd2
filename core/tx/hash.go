package tx

import (
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
)

// TxID returns the hex id of a non-EVM transaction. With hashingFix set,
// signed transactions are hashed without their signature so the id is stable
// across signing.
func TxID(tx types.Transaction, hashingFix bool) (string, error) {
	if hashingFix {
		if signed, ok := tx.(crypto.Signed); ok && signed.Signature() != nil {
			h, err := crypto.HashSignedObject(tx)
			if err != nil {
				return "", err
			}
			return h.Hex()[2:], nil
		}
	}
	h, err := crypto.HashObject(tx)
	if err != nil {
		return "", err
	}
	return h.Hex()[2:], nil
}
