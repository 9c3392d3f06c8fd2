package dispatch

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

var errEmptyEnvelope = errors.New("empty transaction envelope")

// ParsedTx is the view of an EVM transaction the dispatcher checks.
type ParsedTx struct {
	Tx       *gethtypes.Transaction
	IsSigned bool
	IsValid  bool
	Sender   common.Address
	Nonce    uint64
	Value    *big.Int
	Hash     common.Hash
}

// ParseResult records both decoding stages so callers and tests can see why
// each one failed.
type ParseResult struct {
	Parsed      *ParsedTx
	LegacyErr   error
	AccessErr   error
	SignerError error
}

// Err returns the combined failure when neither stage produced a transaction.
func (r ParseResult) Err() error {
	if r.Parsed != nil {
		return nil
	}
	return fmt.Errorf("tx obj fail: legacy: %v; access list: %v", r.LegacyErr, r.AccessErr)
}

// ParseEVM decodes a serialized envelope, first as a legacy transaction and
// then as an EIP-2930 access-list transaction. Signature recovery uses the
// latest signer for chainID.
func ParseEVM(raw []byte, chainID *big.Int) ParseResult {
	var res ParseResult
	if len(raw) == 0 {
		res.LegacyErr = errEmptyEnvelope
		res.AccessErr = errEmptyEnvelope
		return res
	}

	var tx *gethtypes.Transaction
	var legacy gethtypes.LegacyTx
	if err := rlp.DecodeBytes(raw, &legacy); err != nil {
		res.LegacyErr = err
	} else {
		tx = gethtypes.NewTx(&legacy)
	}

	if tx == nil {
		if raw[0] != gethtypes.AccessListTxType {
			res.AccessErr = fmt.Errorf("unexpected envelope type 0x%x", raw[0])
			return res
		}
		var access gethtypes.AccessListTx
		if err := rlp.DecodeBytes(raw[1:], &access); err != nil {
			res.AccessErr = err
			return res
		}
		tx = gethtypes.NewTx(&access)
	}

	parsed := &ParsedTx{
		Tx:    tx,
		Nonce: tx.Nonce(),
		Value: tx.Value(),
		Hash:  tx.Hash(),
	}
	v, r, s := tx.RawSignatureValues()
	parsed.IsSigned = v != nil && r != nil && s != nil && r.Sign() != 0 && s.Sign() != 0
	if parsed.IsSigned {
		sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(chainID), tx)
		if err != nil {
			res.SignerError = err
		} else {
			parsed.Sender = sender
			parsed.IsValid = true
		}
	}
	res.Parsed = parsed
	return res
}
