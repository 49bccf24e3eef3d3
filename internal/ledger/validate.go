package ledger

import (
	"github.com/thanhnp/chainledger/internal/models"
)

// Validate checks an arbitrary chain against the genesis sentinel, the hash
// linkage, index continuity and proof-of-work
func Validate(engine HashEngine, chain []models.Block) bool {
	return len(chain) > 0 && ValidPrefix(engine, chain) == len(chain)
}

// ValidPrefix returns the length of the longest prefix of chain that passes
// Validate. It is zero when the first block is not the genesis block.
func ValidPrefix(engine HashEngine, chain []models.Block) int {
	if len(chain) == 0 || !IsGenesis(chain[0]) {
		return 0
	}

	for i := 1; i < len(chain); i++ {
		prev := &chain[i-1]
		block := &chain[i]

		if block.PreviousBlockHash != prev.Hash || block.Index != prev.Index+1 {
			return i
		}

		hash := engine.Digest(block.PreviousBlockHash, block.Data(), block.Nonce)
		if hash != block.Hash || !engine.MeetsDifficulty(hash) {
			return i
		}
	}

	return len(chain)
}
