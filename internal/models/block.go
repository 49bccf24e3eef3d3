package models

import (
	"time"
)

// Block represents a sealed block of the chain
type Block struct {
	Index             int64         `json:"index"`
	Timestamp         time.Time     `json:"timestamp"`
	Transactions      []Transaction `json:"transactions"`
	Nonce             int64         `json:"nonce"`
	Hash              string        `json:"hash"`
	PreviousBlockHash string        `json:"previousBlockHash"`
}

// BlockData is the part of a block covered by its hash
type BlockData struct {
	Transactions []Transaction `json:"transactions"`
	Index        int64         `json:"index"`
}

// Data returns the hashed portion of the block
func (b *Block) Data() BlockData {
	return BlockData{Transactions: b.Transactions, Index: b.Index}
}

// ChainReport is what a node reports about its own state during reconciliation
type ChainReport struct {
	Chain               []Block       `json:"chain"`
	PendingTransactions []Transaction `json:"pendingTransactions"`
	CurrentNodeURL      string        `json:"currentNodeUrl,omitempty"`
	NetworkNodes        []string      `json:"networkNodes,omitempty"`
}
