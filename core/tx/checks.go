package tx

import (
	"github.com/chrischabot/shardeum/core/state"
	"github.com/chrischabot/shardeum/core/types"
	"github.com/chrischabot/shardeum/crypto"
)

const (
	reasonValid            = "This transaction is valid!"
	reasonNotSignedByFrom  = "not signed by from account"
	reasonIncorrectSigning = "incorrect signing"
	reasonNetworkMissing   = "Network account does not exist"
)

// checkSigner runs the checks every user transaction shares, in order: the
// acting account exists, the signature names it and the signature verifies.
// An empty reason indicates the account may proceed to kind-specific checks.
func checkSigner(lookup state.Lookup, from string, obj crypto.Signed, missing string) (*types.UserAccount, string) {
	wrapped, ok := lookup.Get(from)
	if !ok {
		return nil, missing
	}
	account, ok := wrapped.User()
	if !ok {
		return nil, missing
	}
	sig := obj.Signature()
	if sig == nil || sig.Owner != from {
		return nil, reasonNotSignedByFrom
	}
	if !crypto.Verify(obj, "") {
		return nil, reasonIncorrectSigning
	}
	return account, ""
}

func networkParams(lookup state.Lookup, networkID string) (*types.WrappedAccount, *types.NetworkAccount, bool) {
	wrapped, ok := lookup.Get(networkID)
	if !ok {
		return nil, nil, false
	}
	network, ok := wrapped.Network()
	if !ok {
		return nil, nil, false
	}
	return wrapped, network, true
}
