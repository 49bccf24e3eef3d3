package ledger

import "errors"

var (
	// ErrEmptyChain means the genesis block is missing
	ErrEmptyChain = errors.New("chain has no blocks")

	// ErrNothingToMine is returned when the pending pool is empty
	ErrNothingToMine = errors.New("no pending transactions to mine")

	// ErrStaleMiningContext is returned when the chain tip moved during mining
	ErrStaleMiningContext = errors.New("mining context is stale: chain tip changed")

	// ErrInvalidChain is returned when a chain fails validation
	ErrInvalidChain = errors.New("chain failed validation")

	// ErrInvalidAmount is returned for NaN or infinite transaction amounts
	ErrInvalidAmount = errors.New("transaction amount must be a finite number")
)
