package node

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thanhnp/chainledger/internal/ledger"
	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/notifier"
	"github.com/thanhnp/chainledger/internal/storage"
	"github.com/thanhnp/chainledger/pkg/semver"
)

var errNodeDown = errors.New("node unreachable")

// network routes peer calls to in-process services
type network struct {
	mu       sync.RWMutex
	nodes    map[string]*Service
	down     map[string]bool
	versions map[string]string
}

func newNetwork() *network {
	return &network{
		nodes:    make(map[string]*Service),
		down:     make(map[string]bool),
		versions: make(map[string]string),
	}
}

func (n *network) dial(url string) notifier.Peer {
	return &localPeer{net: n, url: url}
}

func (n *network) setDown(url string, down bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down[url] = down
}

func (n *network) target(url string) (*Service, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	svc, ok := n.nodes[url]
	if !ok || n.down[url] {
		return nil, errNodeDown
	}
	return svc, nil
}

// addNode starts a service reachable at url
func (n *network) addNode(t *testing.T, url string, stores *storage.ChainStores) *Service {
	t.Helper()
	svc, err := NewService(Options{
		NodeURL:      url,
		Reward:       100,
		RewardSender: "00",
	}, ledger.New(ledger.NewHashEngine("0")), notifier.NewBroadcaster(n.dial, time.Second, 4), stores)
	require.NoError(t, err)

	n.mu.Lock()
	n.nodes[url] = svc
	n.mu.Unlock()
	return svc
}

type localPeer struct {
	net *network
	url string
}

func (p *localPeer) URL() string { return p.url }

func (p *localPeer) CheckVersion(ctx context.Context, local *semver.Version) error {
	svc, err := p.net.target(p.url)
	if err != nil {
		return err
	}
	version := svc.Info().Version
	p.net.mu.RLock()
	if v, ok := p.net.versions[p.url]; ok {
		version = v
	}
	p.net.mu.RUnlock()
	if !local.Compatible(semver.MustParse(version)) {
		return errors.New("incompatible peer protocol version")
	}
	return nil
}

func (p *localPeer) Blockchain(ctx context.Context) (*models.ChainReport, error) {
	svc, err := p.net.target(p.url)
	if err != nil {
		return nil, err
	}
	report := svc.Report()
	return &report, nil
}

func (p *localPeer) SubmitTransaction(ctx context.Context, tx models.Transaction) error {
	svc, err := p.net.target(p.url)
	if err != nil {
		return err
	}
	_, err = svc.SubmitTransaction(tx)
	return err
}

func (p *localPeer) ReceiveBlock(ctx context.Context, block models.Block) (bool, error) {
	svc, err := p.net.target(p.url)
	if err != nil {
		return false, err
	}
	return svc.ReceiveBlock(block), nil
}

func (p *localPeer) RegisterNode(ctx context.Context, url string) error {
	svc, err := p.net.target(p.url)
	if err != nil {
		return err
	}
	svc.RegisterNode(url)
	return nil
}

func (p *localPeer) RegisterNodesBulk(ctx context.Context, urls []string) error {
	svc, err := p.net.target(p.url)
	if err != nil {
		return err
	}
	svc.RegisterNodesBulk(urls)
	return nil
}

func (p *localPeer) RegisterAndBroadcast(ctx context.Context, url string) error {
	svc, err := p.net.target(p.url)
	if err != nil {
		return err
	}
	_, err = svc.RegisterAndBroadcast(ctx, url)
	return err
}
