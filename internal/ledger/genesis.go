package ledger

import (
	"time"

	"github.com/thanhnp/chainledger/internal/models"
)

// Genesis sentinel values
const (
	GenesisIndex    int64 = 1
	GenesisNonce    int64 = 100
	GenesisHash           = "0"
	GenesisPrevHash       = "0"
)

// GenesisBlock returns the fixed first block of every chain
func GenesisBlock() models.Block {
	return models.Block{
		Index:             GenesisIndex,
		Timestamp:         time.Unix(0, 0).UTC(),
		Transactions:      []models.Transaction{},
		Nonce:             GenesisNonce,
		Hash:              GenesisHash,
		PreviousBlockHash: GenesisPrevHash,
	}
}

// IsGenesis reports whether block matches the genesis sentinel.
// The timestamp is not compared so nodes with differently encoded epochs agree.
func IsGenesis(block models.Block) bool {
	return block.Index == GenesisIndex &&
		block.Nonce == GenesisNonce &&
		block.Hash == GenesisHash &&
		block.PreviousBlockHash == GenesisPrevHash &&
		len(block.Transactions) == 0
}
