package notifier

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/pkg/semver"
)

// Default fan-out settings
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxParallel = 8
)

// Broadcaster runs one call per peer, each under its own timeout. A failing
// peer never aborts the others.
type Broadcaster struct {
	dial        Dialer
	timeout     time.Duration
	maxParallel int
}

// NewBroadcaster creates a Broadcaster. Non-positive settings fall back to defaults.
func NewBroadcaster(dial Dialer, timeout time.Duration, maxParallel int) *Broadcaster {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	return &Broadcaster{dial: dial, timeout: timeout, maxParallel: maxParallel}
}

// Peer returns a client for a single peer
func (b *Broadcaster) Peer(url string) Peer {
	return b.dial(url)
}

// Timeout returns the per-peer call timeout
func (b *Broadcaster) Timeout() time.Duration {
	return b.timeout
}

// FanOut calls fn for every peer in parallel and returns results in peer order
func (b *Broadcaster) FanOut(ctx context.Context, peers []string, fn func(ctx context.Context, p Peer) error) []Result {
	return b.fanOut(ctx, peers, func(ctx context.Context, _ int, p Peer) error {
		return fn(ctx, p)
	})
}

func (b *Broadcaster) fanOut(ctx context.Context, peers []string, fn func(ctx context.Context, i int, p Peer) error) []Result {
	results := make([]Result, len(peers))

	var g errgroup.Group
	g.SetLimit(b.maxParallel)
	for i, url := range peers {
		i, url := i, url
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			err := fn(callCtx, i, b.dial(url))
			if err != nil {
				log.Printf("[notifier] peer %s: %v", url, err)
			}
			results[i] = Result{Peer: url, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// BroadcastTransaction forwards tx to every peer
func (b *Broadcaster) BroadcastTransaction(ctx context.Context, peers []string, tx models.Transaction) []Result {
	return b.FanOut(ctx, peers, func(ctx context.Context, p Peer) error {
		return p.SubmitTransaction(ctx, tx)
	})
}

// BroadcastBlock announces block to every peer. Refusals count as failures.
func (b *Broadcaster) BroadcastBlock(ctx context.Context, peers []string, block models.Block) []Result {
	return b.FanOut(ctx, peers, func(ctx context.Context, p Peer) error {
		accepted, err := p.ReceiveBlock(ctx, block)
		if err != nil {
			return err
		}
		if !accepted {
			return ErrBlockRejected
		}
		return nil
	})
}

// BroadcastNode registers url with every peer
func (b *Broadcaster) BroadcastNode(ctx context.Context, peers []string, url string) []Result {
	return b.FanOut(ctx, peers, func(ctx context.Context, p Peer) error {
		return p.RegisterNode(ctx, url)
	})
}

// CollectChains polls every peer for its chain. Only successful reports are
// returned; the results list every peer.
func (b *Broadcaster) CollectChains(ctx context.Context, peers []string, local *semver.Version) ([]models.ChainReport, []Result) {
	reports := make([]*models.ChainReport, len(peers))
	results := b.fanOut(ctx, peers, func(ctx context.Context, i int, p Peer) error {
		if local != nil {
			if err := p.CheckVersion(ctx, local); err != nil {
				return err
			}
		}
		report, err := p.Blockchain(ctx)
		if err != nil {
			return err
		}
		reports[i] = report
		return nil
	})

	var ok []models.ChainReport
	for _, r := range reports {
		if r != nil {
			ok = append(ok, *r)
		}
	}
	return ok, results
}
