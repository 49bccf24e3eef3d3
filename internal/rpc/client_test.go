package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/pkg/semver"
)

func newPeerServer(t *testing.T, version string, accepted bool) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc(APIPrefix+"/node", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "node")
		_ = json.NewEncoder(w).Encode(models.NodeInfo{NodeID: "n1", NodeURL: "http://peer", Version: version})
	})
	mux.HandleFunc(APIPrefix+"/blockchain", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "blockchain")
		_ = json.NewEncoder(w).Encode(models.ChainReport{
			Chain:               []models.Block{{Index: 1, Hash: "0", PreviousBlockHash: "0", Nonce: 100}},
			PendingTransactions: []models.Transaction{{TransactionID: "p"}},
		})
	})
	mux.HandleFunc(APIPrefix+"/transaction", func(w http.ResponseWriter, r *http.Request) {
		var tx models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		calls = append(calls, "transaction:"+tx.TransactionID)
		_, _ = w.Write([]byte(`{"state":"success"}`))
	})
	mux.HandleFunc(APIPrefix+"/receive-new-block", func(w http.ResponseWriter, r *http.Request) {
		var req models.ReceiveBlockRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, "block")
		_ = json.NewEncoder(w).Encode(models.ReceiveBlockResponse{Accepted: accepted, NewBlock: req.NewBlock})
	})
	mux.HandleFunc(APIPrefix+"/register-node", func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterNodeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls = append(calls, "register:"+req.NewNodeURL)
	})
	mux.HandleFunc(APIPrefix+"/register-nodes-bulk", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClientCalls(t *testing.T) {
	srv, calls := newPeerServer(t, "1.2.0", true)
	c := NewClient(srv.URL, srv.Client())
	ctx := context.Background()

	assert.Equal(t, srv.URL, c.URL())

	info, err := c.NodeInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "n1", info.NodeID)

	report, err := c.Blockchain(ctx)
	require.NoError(t, err)
	assert.Len(t, report.Chain, 1)
	assert.Len(t, report.PendingTransactions, 1)

	require.NoError(t, c.SubmitTransaction(ctx, models.Transaction{TransactionID: "t1"}))

	accepted, err := c.ReceiveBlock(ctx, models.Block{Index: 2})
	require.NoError(t, err)
	assert.True(t, accepted)

	require.NoError(t, c.RegisterNode(ctx, "http://new"))

	assert.Equal(t, []string{"node", "blockchain", "transaction:t1", "block", "register:http://new"}, *calls)
}

func TestClientHTTPErrorIsPeerError(t *testing.T) {
	srv, _ := newPeerServer(t, "1.0.0", true)
	c := NewClient(srv.URL, nil)

	err := c.RegisterNodesBulk(context.Background(), []string{"http://a"})
	require.Error(t, err)

	var perr *PeerError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, srv.URL, perr.URL)
	assert.Equal(t, "register nodes bulk", perr.Op)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Blockchain(context.Background())
	var perr *PeerError
	assert.True(t, errors.As(err, &perr))
}

func TestCheckVersion(t *testing.T) {
	compatible, _ := newPeerServer(t, "1.4.0", true)
	require.NoError(t, NewClient(compatible.URL, nil).CheckVersion(context.Background(), semver.MustParse("1.0.0")))

	incompatible, _ := newPeerServer(t, "2.0.0", true)
	err := NewClient(incompatible.URL, nil).CheckVersion(context.Background(), semver.MustParse("1.0.0"))
	assert.ErrorIs(t, err, ErrIncompatiblePeer)

	garbage, _ := newPeerServer(t, "latest", true)
	err = NewClient(garbage.URL, nil).CheckVersion(context.Background(), semver.MustParse("1.0.0"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIncompatiblePeer)
}

func TestClientBoundsResponseBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(APIPrefix+"/blockchain", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chain":[],"pendingTransactions":[{"transactionId":"` + strings.Repeat("x", 256) + `"}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, srv.Client())
	_, err := c.Blockchain(context.Background())
	require.NoError(t, err)

	c.maxBody = 128
	_, err = c.Blockchain(context.Background())
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	var peerErr *PeerError
	require.True(t, errors.As(err, &peerErr))
	assert.Equal(t, srv.URL, peerErr.URL)
}
