package storage

import (
	"fmt"

	"github.com/thanhnp/chainledger/internal/models"
)

// ChainStores holds all stores of one node
type ChainStores struct {
	DB         *PebbleDB
	BlockStore *BlockStore
	TxStore    *TxStore
	PeerStore  *PeerStore
}

// NewChainStores creates all stores using the given database
func NewChainStores(db *PebbleDB) *ChainStores {
	return &ChainStores{
		DB:         db,
		BlockStore: NewBlockStore(db),
		TxStore:    NewTxStore(db),
		PeerStore:  NewPeerStore(db),
	}
}

// State is everything a node persists
type State struct {
	Chain   []models.Block
	Pending []models.Transaction
	Peers   []string
}

// Load reads the persisted state. An empty database yields an empty State.
func (cs *ChainStores) Load(genesisIndex int64) (*State, error) {
	chain, err := cs.BlockStore.LoadChain(genesisIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	pending, err := cs.TxStore.LoadPending()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending pool: %w", err)
	}
	peers, err := cs.PeerStore.LoadPeers()
	if err != nil {
		return nil, fmt.Errorf("failed to load peers: %w", err)
	}

	return &State{Chain: chain, Pending: pending, Peers: peers}, nil
}

// Close closes the database
func (cs *ChainStores) Close() error {
	return cs.DB.Close()
}
