// Package notifier fans calls out to every registered peer in parallel and
// collects one result per peer.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/rpc"
	"github.com/thanhnp/chainledger/pkg/semver"
)

// ErrBlockRejected is reported for peers that refused an announced block
var ErrBlockRejected = errors.New("block rejected by peer")

// Peer defines the calls a node makes to one of its peers
type Peer interface {
	// URL returns the peer's base URL
	URL() string

	// CheckVersion fails when the peer's protocol is incompatible with local
	CheckVersion(ctx context.Context, local *semver.Version) error

	// Blockchain retrieves the peer's chain and pending pool
	Blockchain(ctx context.Context) (*models.ChainReport, error)

	// SubmitTransaction forwards a transaction to the peer's pending pool
	SubmitTransaction(ctx context.Context, tx models.Transaction) error

	// ReceiveBlock announces a block and reports whether the peer accepted it
	ReceiveBlock(ctx context.Context, block models.Block) (bool, error)

	// RegisterNode tells the peer about one node
	RegisterNode(ctx context.Context, url string) error

	// RegisterNodesBulk tells the peer about many nodes
	RegisterNodesBulk(ctx context.Context, urls []string) error

	// RegisterAndBroadcast asks the peer to introduce url to its network
	RegisterAndBroadcast(ctx context.Context, url string) error
}

// Dialer returns a Peer for a URL
type Dialer func(url string) Peer

// HTTPDialer returns a Dialer producing rpc clients that share httpClient
func HTTPDialer(httpClient *http.Client) Dialer {
	return func(url string) Peer {
		return rpc.NewClient(url, httpClient)
	}
}

// Result is the outcome of one per-peer call
type Result struct {
	Peer string
	Err  error
}

// OK reports whether the call succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// MarshalJSON renders the error as a string
func (r Result) MarshalJSON() ([]byte, error) {
	out := struct {
		Peer  string `json:"peer"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{Peer: r.Peer, OK: r.OK()}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Failed returns the results whose call failed
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}
