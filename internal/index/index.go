// Package index provides read-only lookup views derived from a chain snapshot.
package index

import (
	"github.com/thanhnp/chainledger/internal/models"
)

type txLocation struct {
	block int // position in the chain
	tx    int // position in the block
}

// Index answers block, transaction and address queries over one chain
type Index struct {
	chain     []models.Block
	byHash    map[string]int
	byIndex   map[int64]int
	txs       map[string]txLocation
	addresses map[string][]txLocation
}

// New builds an Index over chain. The chain must not be mutated afterwards.
func New(chain []models.Block) *Index {
	idx := &Index{
		chain:     chain,
		byHash:    make(map[string]int, len(chain)),
		byIndex:   make(map[int64]int, len(chain)),
		txs:       make(map[string]txLocation),
		addresses: make(map[string][]txLocation),
	}

	for bi, block := range chain {
		idx.byHash[block.Hash] = bi
		idx.byIndex[block.Index] = bi
		for ti, tx := range block.Transactions {
			loc := txLocation{block: bi, tx: ti}
			if _, ok := idx.txs[tx.TransactionID]; !ok {
				idx.txs[tx.TransactionID] = loc
			}
			idx.addresses[tx.Sender] = append(idx.addresses[tx.Sender], loc)
			if tx.Recipient != tx.Sender {
				idx.addresses[tx.Recipient] = append(idx.addresses[tx.Recipient], loc)
			}
		}
	}

	return idx
}

// Len returns the number of indexed blocks
func (idx *Index) Len() int {
	return len(idx.chain)
}

// BlockByHash looks up a block by its hash
func (idx *Index) BlockByHash(hash string) (models.Block, bool) {
	bi, ok := idx.byHash[hash]
	if !ok {
		return models.Block{}, false
	}
	return idx.chain[bi], true
}

// BlockByIndex looks up a block by its index
func (idx *Index) BlockByIndex(index int64) (models.Block, bool) {
	bi, ok := idx.byIndex[index]
	if !ok {
		return models.Block{}, false
	}
	return idx.chain[bi], true
}

// TransactionByID returns a committed transaction and the block containing it
func (idx *Index) TransactionByID(id string) (models.Transaction, models.Block, bool) {
	loc, ok := idx.txs[id]
	if !ok {
		return models.Transaction{}, models.Block{}, false
	}
	block := idx.chain[loc.block]
	return block.Transactions[loc.tx], block, true
}

// AddressActivity sums the committed transfers of address.
// Received amounts count positive, sent amounts negative.
func (idx *Index) AddressActivity(address string) models.AddressData {
	data := models.AddressData{
		Address:      address,
		Transactions: []models.Transaction{},
	}

	for _, loc := range idx.addresses[address] {
		tx := idx.chain[loc.block].Transactions[loc.tx]
		data.Transactions = append(data.Transactions, tx)
		if tx.Recipient == address {
			data.Balance += tx.Amount
		}
		if tx.Sender == address {
			data.Balance -= tx.Amount
		}
	}

	return data
}
