package sync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/thanhnp/chainledger/internal/node"
	"github.com/thanhnp/chainledger/internal/notifier"
)

// Reconciler runs one consensus round
type Reconciler interface {
	Consensus(ctx context.Context) (*node.ConsensusResult, error)
}

// Status describes the syncer's recent activity
type Status struct {
	Running    bool      `json:"running"`
	Interval   string    `json:"interval"`
	Rounds     int64     `json:"rounds"`
	Replaced   int64     `json:"replaced"`
	LastRun    time.Time `json:"lastRun,omitempty"`
	LastReason string    `json:"lastReason,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
}

// Syncer periodically reconciles the local chain with the network
type Syncer struct {
	reconciler Reconciler
	interval   time.Duration

	mu      sync.RWMutex
	syncing bool
	cancel  context.CancelFunc
	done    chan struct{}
	status  Status
}

// NewSyncer creates a Syncer running a consensus round every interval
func NewSyncer(r Reconciler, interval time.Duration) *Syncer {
	return &Syncer{
		reconciler: r,
		interval:   interval,
		status:     Status{Interval: interval.String()},
	}
}

// Start begins the periodic reconciliation. A non-positive interval leaves
// the syncer idle.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.syncing || s.interval <= 0 {
		return nil
	}
	s.syncing = true
	s.status.Running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	log.Printf("[sync] Started, consensus every %s", s.interval)
	return nil
}

// Stop stops the loop and waits for a running round to finish
func (s *Syncer) Stop() error {
	s.mu.Lock()
	if !s.syncing {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	done := s.done
	s.syncing = false
	s.status.Running = false
	s.mu.Unlock()

	<-done
	log.Println("[sync] Stopped")
	return nil
}

// Status returns a copy of the current status
func (s *Syncer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Syncer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single consensus round and records its outcome
func (s *Syncer) RunOnce(ctx context.Context) {
	res, err := s.reconciler.Consensus(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Rounds++
	s.status.LastRun = time.Now().UTC()
	if err != nil {
		s.status.LastError = err.Error()
		s.status.LastReason = ""
		if ctx.Err() == nil {
			log.Printf("[sync] Consensus round failed: %v", err)
		}
		return
	}

	s.status.LastError = ""
	s.status.LastReason = res.Decision.Reason
	if res.Replaced {
		s.status.Replaced++
		log.Printf("[sync] Adopted chain of length %d from the network", res.Decision.MaxLength)
	}
	if failed := len(notifier.Failed(res.Results)); failed > 0 {
		log.Printf("[sync] %d of %d peers did not answer", failed, len(res.Results))
	}
}
