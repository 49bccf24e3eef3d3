// Package rpc is a JSON-over-HTTP client for a single peer node.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/pkg/semver"
)

// APIPrefix is the path prefix of every node endpoint
const APIPrefix = "/api/v1"

// MaxBodyBytes bounds every body exchanged between nodes, in both directions
const MaxBodyBytes = 32 << 20

// ErrBodyTooLarge is returned when a peer response exceeds MaxBodyBytes
var ErrBodyTooLarge = errors.New("response body too large")

// ErrIncompatiblePeer is returned when a peer speaks another major protocol version
var ErrIncompatiblePeer = errors.New("incompatible peer protocol version")

// PeerError records which peer call failed
type PeerError struct {
	URL string
	Op  string
	Err error
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer %s: %s: %v", e.URL, e.Op, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

// Client talks to one peer
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxBody    int64
}

// NewClient creates a client for the node at baseURL.
// A nil httpClient uses http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, maxBody: MaxBodyBytes}
}

// URL returns the peer's base URL
func (c *Client) URL() string {
	return c.baseURL
}

// do sends body (if any) to path and decodes the JSON response into out (if any)
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &PeerError{URL: c.baseURL, Op: op, Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+APIPrefix+path, reader)
	if err != nil {
		return &PeerError{URL: c.baseURL, Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &PeerError{URL: c.baseURL, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &PeerError{URL: c.baseURL, Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))}
	}

	if out == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return &PeerError{URL: c.baseURL, Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if int64(len(data)) > c.maxBody {
		return &PeerError{URL: c.baseURL, Op: op, Err: fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.maxBody)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &PeerError{URL: c.baseURL, Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// NodeInfo fetches the peer's identity and protocol version
func (c *Client) NodeInfo(ctx context.Context) (*models.NodeInfo, error) {
	var info models.NodeInfo
	if err := c.do(ctx, "node info", http.MethodGet, "/node", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CheckVersion fails with ErrIncompatiblePeer when the peer's major version differs from local
func (c *Client) CheckVersion(ctx context.Context, local *semver.Version) error {
	info, err := c.NodeInfo(ctx)
	if err != nil {
		return err
	}
	remote, err := semver.Parse(info.Version)
	if err != nil {
		return &PeerError{URL: c.baseURL, Op: "version check", Err: err}
	}
	if !local.Compatible(remote) {
		return &PeerError{URL: c.baseURL, Op: "version check",
			Err: fmt.Errorf("%w: local %s, remote %s", ErrIncompatiblePeer, local, remote)}
	}
	return nil
}

// Blockchain fetches the peer's chain and pending pool
func (c *Client) Blockchain(ctx context.Context) (*models.ChainReport, error) {
	var report models.ChainReport
	if err := c.do(ctx, "fetch chain", http.MethodGet, "/blockchain", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// SubmitTransaction adds tx to the peer's pending pool
func (c *Client) SubmitTransaction(ctx context.Context, tx models.Transaction) error {
	return c.do(ctx, "submit transaction", http.MethodPost, "/transaction", tx, nil)
}

// ReceiveBlock announces a newly mined block. It reports whether the peer accepted it.
func (c *Client) ReceiveBlock(ctx context.Context, block models.Block) (bool, error) {
	var resp models.ReceiveBlockResponse
	req := models.ReceiveBlockRequest{NewBlock: block}
	if err := c.do(ctx, "receive block", http.MethodPost, "/receive-new-block", req, &resp); err != nil {
		return false, err
	}
	return resp.Accepted, nil
}

// RegisterNode tells the peer about one node
func (c *Client) RegisterNode(ctx context.Context, url string) error {
	req := models.RegisterNodeRequest{NewNodeURL: url}
	return c.do(ctx, "register node", http.MethodPost, "/register-node", req, nil)
}

// RegisterNodesBulk tells the peer about every node of the network
func (c *Client) RegisterNodesBulk(ctx context.Context, urls []string) error {
	req := models.RegisterNodesBulkRequest{AllNetworkNodes: urls}
	return c.do(ctx, "register nodes bulk", http.MethodPost, "/register-nodes-bulk", req, nil)
}

// RegisterAndBroadcast asks the peer to introduce url to its whole network
func (c *Client) RegisterAndBroadcast(ctx context.Context, url string) error {
	req := models.RegisterNodeRequest{NewNodeURL: url}
	return c.do(ctx, "register and broadcast", http.MethodPost, "/register-and-broadcast-node", req, nil)
}
