// Package node wires the ledger core to peers and storage. It holds the
// policies of a running node: mining rewards, broadcasting and joining a network.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/thanhnp/chainledger/internal/consensus"
	"github.com/thanhnp/chainledger/internal/index"
	"github.com/thanhnp/chainledger/internal/ledger"
	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/internal/notifier"
	"github.com/thanhnp/chainledger/internal/storage"
	"github.com/thanhnp/chainledger/pkg/semver"
)

// ProtocolVersion is the version of the node-to-node API
const ProtocolVersion = "1.0.0"

// maxMineAttempts bounds retries after a stale mining context
const maxMineAttempts = 3

// ErrInvalidNodeURL is returned when a node is asked to introduce itself or an empty URL
var ErrInvalidNodeURL = errors.New("invalid node url")

// Options configures a Service
type Options struct {
	NodeID       string
	NodeURL      string
	Reward       float64
	RewardSender string
}

// Service is one node of the network
type Service struct {
	opts     Options
	version  *semver.Version
	ledger   *ledger.Ledger
	registry *consensus.Registry
	bcast    *notifier.Broadcaster
	stores   *storage.ChainStores // nil disables persistence

	persistMu sync.Mutex

	idxMu  sync.Mutex
	idx    *index.Index
	idxLen int
	idxTip string
}

// MineResult describes a mined block and what happened when it was announced
type MineResult struct {
	Block         models.Block
	BlockResults  []notifier.Result
	Reward        models.Transaction
	RewardResults []notifier.Result
}

// ConsensusResult describes one reconciliation round
type ConsensusResult struct {
	Decision consensus.Decision
	Replaced bool
	Results  []notifier.Result
}

// NewService creates a node around l. When stores is not nil the persisted
// state is restored into l and every later mutation is written back.
func NewService(opts Options, l *ledger.Ledger, bcast *notifier.Broadcaster, stores *storage.ChainStores) (*Service, error) {
	if opts.NodeID == "" {
		opts.NodeID = ledger.NewID()
	}
	if err := ledger.CheckAmount(opts.Reward); err != nil {
		return nil, fmt.Errorf("mining reward: %w", err)
	}

	s := &Service{
		opts:     opts,
		version:  semver.MustParse(ProtocolVersion),
		ledger:   l,
		registry: consensus.NewRegistry(opts.NodeURL),
		bcast:    bcast,
		stores:   stores,
	}

	if stores != nil {
		if err := s.restore(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// restore loads the persisted state. Stored blocks past the longest valid
// prefix are dropped, and the store is rewritten to match.
func (s *Service) restore() error {
	state, err := s.stores.Load(ledger.GenesisIndex)
	if err != nil {
		return fmt.Errorf("failed to restore node state: %w", err)
	}

	if len(state.Chain) > 0 {
		valid := ledger.ValidPrefix(s.ledger.Engine(), state.Chain)
		if valid == 0 {
			log.Printf("[node] Warning: stored chain has no valid genesis block, starting from genesis")
		} else {
			if err := s.ledger.Restore(state.Chain[:valid], state.Pending); err != nil {
				return fmt.Errorf("failed to restore chain: %w", err)
			}
			log.Printf("[node] Restored %d blocks and %d pending transactions", valid, len(state.Pending))
		}
		if valid < len(state.Chain) {
			log.Printf("[node] Warning: %d of %d stored blocks failed validation and were dropped", len(state.Chain)-valid, len(state.Chain))
			s.persist()
		}
	}

	added := s.registry.RegisterBulk(state.Peers)
	if added > 0 {
		log.Printf("[node] Restored %d peers", added)
	}
	return nil
}

// Info returns the node's identity
func (s *Service) Info() models.NodeInfo {
	return models.NodeInfo{
		NodeID:  s.opts.NodeID,
		NodeURL: s.registry.Self(),
		Version: s.version.String(),
	}
}

// Ledger returns the node's ledger
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// Registry returns the node's peer registry
func (s *Service) Registry() *consensus.Registry {
	return s.registry
}

// Report returns the node's chain, pending pool and network view
func (s *Service) Report() models.ChainReport {
	chain, pending := s.ledger.Snapshot()
	return models.ChainReport{
		Chain:               chain,
		PendingTransactions: pending,
		CurrentNodeURL:      s.registry.Self(),
		NetworkNodes:        s.registry.Peers(),
	}
}

// SubmitTransaction adds a transaction forwarded by a peer to the pending pool
func (s *Service) SubmitTransaction(tx models.Transaction) (int64, error) {
	if err := ledger.CheckAmount(tx.Amount); err != nil {
		return 0, err
	}
	next := s.ledger.Enqueue(tx)
	s.persist()
	return next, nil
}

// BroadcastTransaction creates a transaction, queues it locally and forwards
// it to every peer
func (s *Service) BroadcastTransaction(ctx context.Context, amount float64, sender, recipient string) (models.Transaction, int64, []notifier.Result, error) {
	tx := s.ledger.CreateTransaction(amount, sender, recipient)
	next, err := s.SubmitTransaction(tx)
	if err != nil {
		return models.Transaction{}, 0, nil, err
	}
	results := s.bcast.BroadcastTransaction(ctx, s.registry.Peers(), tx)
	return tx, next, results, nil
}

// Mine seals the pending pool into a block, announces it to every peer and
// then broadcasts the mining reward to this node's address. A proof-of-work
// result made stale by a concurrently accepted block is discarded and the
// search is retried.
func (s *Service) Mine(ctx context.Context) (*MineResult, error) {
	var block models.Block
	for attempt := 1; ; attempt++ {
		candidate, err := s.ledger.MineCandidate(ctx)
		if err != nil {
			return nil, err
		}
		block, err = s.ledger.CommitBlock(candidate)
		if err == nil {
			break
		}
		if !errors.Is(err, ledger.ErrStaleMiningContext) || attempt >= maxMineAttempts {
			return nil, err
		}
		log.Printf("[node] Mining context went stale, retrying (attempt %d)", attempt)
	}
	s.persist()
	log.Printf("[node] Mined block %d %s with %d transactions", block.Index, block.Hash, len(block.Transactions))

	result := &MineResult{Block: block}
	result.BlockResults = s.bcast.BroadcastBlock(ctx, s.registry.Peers(), block)
	reward, _, rewardResults, err := s.BroadcastTransaction(ctx, s.opts.Reward, s.opts.RewardSender, s.opts.NodeID)
	if err != nil {
		log.Printf("[node] Failed to queue mining reward: %v", err)
		return result, nil
	}
	result.Reward, result.RewardResults = reward, rewardResults
	return result, nil
}

// ReceiveBlock appends a block announced by a peer when it extends the tip
func (s *Service) ReceiveBlock(block models.Block) bool {
	if !s.ledger.AcceptPeerBlock(block) {
		log.Printf("[node] Rejected block %d %s", block.Index, block.Hash)
		return false
	}
	s.persist()
	return true
}

// RegisterNode adds a single peer
func (s *Service) RegisterNode(url string) bool {
	added := s.registry.Register(url)
	if added {
		s.persistPeers()
	}
	return added
}

// RegisterNodesBulk adds every peer of urls and returns how many were new
func (s *Service) RegisterNodesBulk(urls []string) int {
	added := s.registry.RegisterBulk(urls)
	if added > 0 {
		s.persistPeers()
	}
	return added
}

// RegisterAndBroadcast introduces a new node to the network: it checks the
// newcomer speaks a compatible protocol, registers it, tells every other peer
// about it and finally sends it the full node list.
func (s *Service) RegisterAndBroadcast(ctx context.Context, url string) ([]notifier.Result, error) {
	url = consensus.NormalizeURL(url)
	if url == "" || url == s.registry.Self() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNodeURL, url)
	}
	newcomer := s.bcast.Peer(url)

	checkCtx, cancel := context.WithTimeout(ctx, s.bcast.Timeout())
	err := newcomer.CheckVersion(checkCtx, s.version)
	cancel()
	if err != nil {
		return nil, err
	}

	s.RegisterNode(url)

	var others []string
	for _, peer := range s.registry.Peers() {
		if peer != url {
			others = append(others, peer)
		}
	}
	results := s.bcast.BroadcastNode(ctx, others, url)

	bulkCtx, cancel := context.WithTimeout(ctx, s.bcast.Timeout())
	defer cancel()
	if err := newcomer.RegisterNodesBulk(bulkCtx, s.registry.AllNodes()); err != nil {
		return results, err
	}
	return results, nil
}

// Join registers the seeds and asks each of them to introduce this node to
// its network, then reconciles with whoever answered
func (s *Service) Join(ctx context.Context, seeds []string) []notifier.Result {
	var targets []string
	for _, seed := range seeds {
		seed = consensus.NormalizeURL(seed)
		if seed == "" || seed == s.registry.Self() {
			continue
		}
		s.RegisterNode(seed)
		targets = append(targets, seed)
	}
	if len(targets) == 0 {
		return nil
	}

	self := s.registry.Self()
	results := s.bcast.FanOut(ctx, targets, func(ctx context.Context, p notifier.Peer) error {
		return p.RegisterAndBroadcast(ctx, self)
	})
	if _, err := s.Consensus(ctx); err != nil {
		log.Printf("[node] Consensus after join failed: %v", err)
	}
	return results
}

// Consensus polls every peer and adopts the longest valid chain when exactly
// one strictly longer chain exists
func (s *Service) Consensus(ctx context.Context) (*ConsensusResult, error) {
	reports, results := s.bcast.CollectChains(ctx, s.registry.Peers(), s.version)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// candidates are validated outside the ledger lock
	sel := consensus.Select(s.ledger.Engine(), reports)

	var decision consensus.Decision
	replaced := s.ledger.Replace(func(chain []models.Block, pending []models.Transaction) ([]models.Block, []models.Transaction, bool) {
		local := models.ChainReport{Chain: chain, PendingTransactions: pending}
		decision = consensus.Decide(local, sel)
		return decision.Chain, decision.Pending, decision.Replaced
	})
	if replaced {
		s.persist()
		log.Printf("[node] Chain replaced: %s (length %d)", decision.Reason, len(decision.Chain))
	}

	return &ConsensusResult{Decision: decision, Replaced: replaced, Results: results}, nil
}

// lookups returns an index over the current chain, rebuilding it only when
// the chain changed since the last call
func (s *Service) lookups() *index.Index {
	chain, _ := s.ledger.Snapshot()
	tip := chain[len(chain)-1].Hash

	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	if s.idx == nil || s.idxLen != len(chain) || s.idxTip != tip {
		s.idx = index.New(chain)
		s.idxLen = len(chain)
		s.idxTip = tip
	}
	return s.idx
}

// BlockByHash looks up a committed block
func (s *Service) BlockByHash(hash string) (models.Block, bool) {
	return s.lookups().BlockByHash(hash)
}

// BlockByIndex looks up a committed block by index
func (s *Service) BlockByIndex(i int64) (models.Block, bool) {
	return s.lookups().BlockByIndex(i)
}

// TransactionByID looks up a committed transaction and its block
func (s *Service) TransactionByID(id string) (models.Transaction, models.Block, bool) {
	return s.lookups().TransactionByID(id)
}

// AddressActivity summarises an address over committed blocks
func (s *Service) AddressActivity(address string) models.AddressData {
	return s.lookups().AddressActivity(address)
}

// persist writes the current chain and pending pool. Blocks already stored
// are kept when they are a prefix of the current chain.
func (s *Service) persist() {
	if s.stores == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	chain, pending := s.ledger.Snapshot()
	if err := s.writeChain(chain); err != nil {
		log.Printf("[storage] Failed to persist chain: %v", err)
	}
	if err := s.stores.TxStore.SavePending(pending); err != nil {
		log.Printf("[storage] Failed to persist pending pool: %v", err)
	}
}

func (s *Service) writeChain(chain []models.Block) error {
	bs := s.stores.BlockStore

	tip, err := bs.TipHeight()
	if err != nil {
		return err
	}
	pos := int(tip - ledger.GenesisIndex)
	if tip >= ledger.GenesisIndex && pos < len(chain) {
		stored, err := bs.GetByHeight(tip)
		if err != nil {
			return err
		}
		if stored != nil && stored.Hash == chain[pos].Hash {
			for i := pos + 1; i < len(chain); i++ {
				if err := bs.Append(&chain[i]); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return bs.ReplaceAll(chain)
}

func (s *Service) persistPeers() {
	if s.stores == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.stores.PeerStore.SavePeers(s.registry.Peers()); err != nil {
		log.Printf("[storage] Failed to persist peers: %v", err)
	}
}
