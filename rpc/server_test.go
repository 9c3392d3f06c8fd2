package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chrischabot/shardeum/core/dispatch"
	"github.com/chrischabot/shardeum/core/host"
	"github.com/chrischabot/shardeum/core/types"
)

type fakeNode struct {
	lastTx  types.TimestampedTx
	lastApp *dispatch.AppData
	receipt host.Receipt
	injErr  error
	account *types.WrappedAccount
}

func (n *fakeNode) Validate(_ context.Context, ttx types.TimestampedTx, app *dispatch.AppData) types.ValidationResult {
	n.lastTx = ttx
	n.lastApp = app
	return types.Accept("This transaction is valid!", ttx.Tx.TxTimestamp())
}

func (n *fakeNode) Inject(_ context.Context, ttx types.TimestampedTx) (host.Receipt, error) {
	n.lastTx = ttx
	return n.receipt, n.injErr
}

func (n *fakeNode) GetLocalOrRemoteAccount(_ context.Context, id string) (*types.WrappedAccount, error) {
	if n.account != nil && n.account.ID == id {
		return n.account, nil
	}
	return nil, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	h.ServeHTTP(rec, req)
	return rec
}

func TestValidateDecodesTransactionAndAppData(t *testing.T) {
	node := &fakeNode{}
	srv := New(Config{Node: node})

	body := `{"tx":{"type":"friend","from":"a","to":"b","alias":"c","timestamp":42},"appData":{"balance":100,"nonce":3,"queueCount":1}}`
	rec := do(t, srv.Handler(), http.MethodPost, "/tx/validate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res types.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.True(t, res.Success)
	require.Equal(t, int64(42), res.Timestamp)

	friend, ok := node.lastTx.Tx.(*types.Friend)
	require.True(t, ok)
	require.Equal(t, "c", friend.Alias)
	require.NotNil(t, node.lastApp)
	require.Equal(t, "100", node.lastApp.Balance.String())
	require.Equal(t, uint64(3), node.lastApp.Nonce)
}

func TestValidateRejectsBadBodies(t *testing.T) {
	srv := New(Config{Node: &fakeNode{}})
	require.Equal(t, http.StatusBadRequest, do(t, srv.Handler(), http.MethodPost, "/tx/validate", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, srv.Handler(), http.MethodPost, "/tx/validate", `{"tx":{"type":"nope"}}`).Code)
	require.Equal(t, http.StatusMethodNotAllowed, do(t, srv.Handler(), http.MethodGet, "/tx/validate", "").Code)
}

func TestInjectStatusMapping(t *testing.T) {
	body := `{"tx":{"type":"snapshot_claim","from":"a","timestamp":1}}`
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"applied", nil, http.StatusOK},
		{"rejected", host.ErrRejected, http.StatusUnprocessableEntity},
		{"not executable", fmt.Errorf("%w: evm", host.ErrNotExecutable), http.StatusNotImplemented},
		{"internal", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			node := &fakeNode{receipt: host.Receipt{TxID: "abc", Applied: tc.err == nil}, injErr: tc.err}
			rec := do(t, New(Config{Node: node}).Handler(), http.MethodPost, "/tx/inject", body)
			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				var receipt host.Receipt
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
				require.Equal(t, "abc", receipt.TxID)
				require.True(t, receipt.Applied)
			}
		})
	}
}

func TestGetAccount(t *testing.T) {
	user := types.NewUserAccount()
	user.Balance = big.NewInt(9)
	account, err := types.NewWrappedAccount("acct", user, 5)
	require.NoError(t, err)
	srv := New(Config{Node: &fakeNode{account: account}})

	rec := do(t, srv.Handler(), http.MethodGet, "/account/acct", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccountID string `json:"accountId"`
		StateID   string `json:"stateId"`
		Timestamp int64  `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "acct", resp.AccountID)
	require.Equal(t, account.Hash, resp.StateID)
	require.Equal(t, int64(5), resp.Timestamp)

	require.Equal(t, http.StatusNotFound, do(t, srv.Handler(), http.MethodGet, "/account/missing", "").Code)
}

func TestHealthTracksReadiness(t *testing.T) {
	ready := false
	srv := New(Config{Node: &fakeNode{}, Ready: func() bool { return ready }})
	require.Equal(t, http.StatusServiceUnavailable, do(t, srv.Handler(), http.MethodGet, "/healthz", "").Code)
	ready = true
	require.Equal(t, http.StatusOK, do(t, srv.Handler(), http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, do(t, srv.Handler(), http.MethodGet, "/metrics", "").Code)
}
