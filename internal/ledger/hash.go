package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/thanhnp/chainledger/internal/models"
)

// DefaultDifficulty is the hash prefix a mined block must carry
const DefaultDifficulty = "0000"

// searchCheckInterval is how many nonces are tried between context checks
const searchCheckInterval = 4096

// HashEngine hashes blocks and searches for proof-of-work nonces
type HashEngine struct {
	prefix string
}

// NewHashEngine creates a HashEngine for the given difficulty prefix.
// An empty prefix falls back to DefaultDifficulty.
func NewHashEngine(prefix string) HashEngine {
	if prefix == "" {
		prefix = DefaultDifficulty
	}
	return HashEngine{prefix: prefix}
}

// Difficulty returns the required hash prefix
func (e HashEngine) Difficulty() string {
	return e.prefix
}

// Digest deterministically hashes a block candidate. Data that cannot be
// encoded yields an empty digest, which never meets a difficulty.
func (e HashEngine) Digest(previousHash string, data models.BlockData, nonce int64) string {
	encoded, err := encodeBlockData(data)
	if err != nil {
		return ""
	}
	return digest(previousHash, encoded, nonce)
}

func encodeBlockData(data models.BlockData) ([]byte, error) {
	if data.Transactions == nil {
		data.Transactions = []models.Transaction{}
	}
	for i := range data.Transactions {
		if err := CheckAmount(data.Transactions[i].Amount); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", data.Transactions[i].TransactionID, err)
		}
	}
	return json.Marshal(data)
}

func digest(previousHash string, encoded []byte, nonce int64) string {
	buf := make([]byte, 0, len(previousHash)+len(encoded)+20)
	buf = append(buf, previousHash...)
	buf = append(buf, encoded...)
	buf = strconv.AppendInt(buf, nonce, 10)

	return hex.EncodeToString(chainhash.HashB(buf))
}

// MeetsDifficulty reports whether hash satisfies the difficulty prefix
func (e HashEngine) MeetsDifficulty(hash string) bool {
	return strings.HasPrefix(hash, e.prefix)
}

// Search increments the nonce from zero until the digest meets the difficulty.
// It only stops early when ctx is cancelled.
func (e HashEngine) Search(ctx context.Context, previousHash string, data models.BlockData) (int64, string, error) {
	encoded, err := encodeBlockData(data)
	if err != nil {
		return 0, "", err
	}

	var nonce int64
	for {
		if nonce%searchCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, "", err
			}
		}
		hash := digest(previousHash, encoded, nonce)
		if e.MeetsDifficulty(hash) {
			return nonce, hash, nil
		}
		nonce++
	}
}
