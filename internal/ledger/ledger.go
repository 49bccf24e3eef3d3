package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thanhnp/chainledger/internal/models"
)

// Candidate is the result of a proof-of-work search over a pending snapshot
type Candidate struct {
	Nonce        int64
	Hash         string
	PreviousHash string
	Index        int64
	Transactions []models.Transaction
}

// Ledger owns a chain and its pending pool. Both are guarded by one lock.
type Ledger struct {
	engine HashEngine
	now    func() time.Time

	mu      sync.RWMutex
	chain   []models.Block
	pending []models.Transaction
}

// New creates a Ledger holding only the genesis block
func New(engine HashEngine) *Ledger {
	return &Ledger{
		engine:  engine,
		now:     time.Now,
		chain:   []models.Block{GenesisBlock()},
		pending: []models.Transaction{},
	}
}

// Engine returns the hash engine used by the ledger
func (l *Ledger) Engine() HashEngine {
	return l.engine
}

// NewID returns a fresh dash-less UUID
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// CheckAmount rejects amounts that have no JSON encoding
func CheckAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

// CreateTransaction builds a transaction with a fresh id without touching the pool
func (l *Ledger) CreateTransaction(amount float64, sender, recipient string) models.Transaction {
	return models.Transaction{
		TransactionID: NewID(),
		Amount:        amount,
		Sender:        sender,
		Recipient:     recipient,
	}
}

// Enqueue appends tx to the pending pool and returns the index of the block
// it is expected to land in. The index is advisory only.
func (l *Ledger) Enqueue(tx models.Transaction) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, tx)
	return int64(len(l.chain)) + 1
}

// LastBlock returns the chain tip
func (l *Ledger) LastBlock() (models.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastBlockLocked()
}

func (l *Ledger) lastBlockLocked() (models.Block, error) {
	if len(l.chain) == 0 {
		return models.Block{}, ErrEmptyChain
	}
	return l.chain[len(l.chain)-1], nil
}

// Len returns the number of blocks in the chain
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// PendingCount returns the number of pending transactions
func (l *Ledger) PendingCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pending)
}

// Snapshot returns copies of the chain and the pending pool.
// Blocks are immutable once appended so their transaction slices are shared.
func (l *Ledger) Snapshot() ([]models.Block, []models.Transaction) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	chain := make([]models.Block, len(l.chain))
	copy(chain, l.chain)
	pending := make([]models.Transaction, len(l.pending))
	copy(pending, l.pending)
	return chain, pending
}

// MineCandidate searches for a nonce over a snapshot of the pending pool.
// The lock is held only while taking the snapshot.
func (l *Ledger) MineCandidate(ctx context.Context) (Candidate, error) {
	l.mu.RLock()
	last, err := l.lastBlockLocked()
	if err != nil {
		l.mu.RUnlock()
		return Candidate{}, err
	}
	if len(l.pending) == 0 {
		l.mu.RUnlock()
		return Candidate{}, ErrNothingToMine
	}
	txs := make([]models.Transaction, len(l.pending))
	copy(txs, l.pending)
	l.mu.RUnlock()

	data := models.BlockData{Transactions: txs, Index: last.Index + 1}
	nonce, hash, err := l.engine.Search(ctx, last.Hash, data)
	if err != nil {
		return Candidate{}, fmt.Errorf("proof of work search: %w", err)
	}

	return Candidate{
		Nonce:        nonce,
		Hash:         hash,
		PreviousHash: last.Hash,
		Index:        data.Index,
		Transactions: txs,
	}, nil
}

// CommitBlock appends the block described by c if the chain tip is still the
// one c was mined on. The mined transactions leave the pending pool.
func (l *Ledger) CommitBlock(c Candidate) (models.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.lastBlockLocked()
	if err != nil {
		return models.Block{}, err
	}
	if c.PreviousHash != last.Hash || c.Index != last.Index+1 {
		return models.Block{}, ErrStaleMiningContext
	}

	block := models.Block{
		Index:             c.Index,
		Timestamp:         l.now().UTC(),
		Transactions:      c.Transactions,
		Nonce:             c.Nonce,
		Hash:              c.Hash,
		PreviousBlockHash: c.PreviousHash,
	}
	l.chain = append(l.chain, block)
	l.pending = removeTransactions(l.pending, c.Transactions)

	return block, nil
}

// AcceptPeerBlock appends a block announced by a peer when it extends the tip.
// It returns false without mutating anything otherwise.
func (l *Ledger) AcceptPeerBlock(block models.Block) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.lastBlockLocked()
	if err != nil {
		return false
	}
	if block.PreviousBlockHash != last.Hash || block.Index != last.Index+1 {
		return false
	}

	l.chain = append(l.chain, block)
	l.pending = []models.Transaction{}
	return true
}

// ReplaceFunc decides, given the current chain and pool, whether to swap them
type ReplaceFunc func(chain []models.Block, pending []models.Transaction) (newChain []models.Block, newPending []models.Transaction, replace bool)

// Replace runs decide under the write lock and installs its result when it
// asks for a replacement. It reports whether the chain was replaced.
func (l *Ledger) Replace(decide ReplaceFunc) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	chain := make([]models.Block, len(l.chain))
	copy(chain, l.chain)
	pending := make([]models.Transaction, len(l.pending))
	copy(pending, l.pending)

	newChain, newPending, replace := decide(chain, pending)
	if !replace {
		return false
	}
	if newPending == nil {
		newPending = []models.Transaction{}
	}
	l.chain = newChain
	l.pending = newPending
	return true
}

// Restore installs a previously persisted state. The chain must validate.
func (l *Ledger) Restore(chain []models.Block, pending []models.Transaction) error {
	if !Validate(l.engine, chain) {
		return ErrInvalidChain
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.chain = append([]models.Block(nil), chain...)
	l.pending = append([]models.Transaction{}, pending...)
	return nil
}

// removeTransactions drops every transaction of pool whose id appears in mined
func removeTransactions(pool, mined []models.Transaction) []models.Transaction {
	ids := make(map[string]struct{}, len(mined))
	for _, tx := range mined {
		ids[tx.TransactionID] = struct{}{}
	}

	kept := make([]models.Transaction, 0, len(pool))
	for _, tx := range pool {
		if _, ok := ids[tx.TransactionID]; !ok {
			kept = append(kept, tx)
		}
	}
	return kept
}
