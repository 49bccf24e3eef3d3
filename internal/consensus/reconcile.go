// Package consensus decides which chain a node adopts among the ones its
// peers report, and keeps the registry of those peers.
package consensus

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/thanhnp/chainledger/internal/ledger"
	"github.com/thanhnp/chainledger/internal/models"
)

// Reasons reported in a Decision
const (
	ReasonLocalLongest   = "local chain is already the longest"
	ReasonAmbiguous      = "several distinct chains share the maximum length"
	ReasonInvalidChain   = "a longest candidate chain failed validation"
	ReasonAdoptedLongest = "adopted the longest valid peer chain"
)

// Decision is the outcome of a reconciliation round
type Decision struct {
	Replaced bool
	Chain    []models.Block
	Pending  []models.Transaction
	Reason   string
	// MaxLength is the longest chain length seen, local chain included
	MaxLength int
}

// Selection is what the peer reports offer, independent of the local chain
type Selection struct {
	// MaxLength is the longest reported chain length
	MaxLength int
	// Winner is the single valid longest report, nil when none can be adopted
	Winner *models.ChainReport
	// Reason explains a nil Winner among non-empty reports
	Reason string
}

// Select validates the longest reports and checks they agree. It does not
// touch the local chain, so callers run it before taking the ledger lock.
func Select(engine ledger.HashEngine, reports []models.ChainReport) Selection {
	var sel Selection
	for _, r := range reports {
		if len(r.Chain) > sel.MaxLength {
			sel.MaxLength = len(r.Chain)
		}
	}

	var winner *models.ChainReport
	var winnerPrint chainhash.Hash
	for i := range reports {
		r := &reports[i]
		if len(r.Chain) != sel.MaxLength || sel.MaxLength == 0 {
			continue
		}
		if !ledger.Validate(engine, r.Chain) {
			sel.Reason = ReasonInvalidChain
			return sel
		}
		fp := fingerprint(r.Chain)
		if winner == nil {
			winner, winnerPrint = r, fp
			continue
		}
		if fp != winnerPrint {
			sel.Reason = ReasonAmbiguous
			return sel
		}
	}

	sel.Winner = winner
	return sel
}

// Decide applies the longest-chain rule to the local chain. The local chain
// is kept when it is already as long as any report, or when sel holds no
// adoptable winner. Otherwise the winner and its pending set are returned.
func Decide(local models.ChainReport, sel Selection) Decision {
	keep := Decision{
		Chain:     local.Chain,
		Pending:   local.PendingTransactions,
		MaxLength: max(len(local.Chain), sel.MaxLength),
	}

	if sel.MaxLength <= len(local.Chain) {
		keep.Reason = ReasonLocalLongest
		return keep
	}
	if sel.Winner == nil {
		keep.Reason = sel.Reason
		return keep
	}

	pending := sel.Winner.PendingTransactions
	if pending == nil {
		pending = []models.Transaction{}
	}
	return Decision{
		Replaced:  true,
		Chain:     sel.Winner.Chain,
		Pending:   pending,
		Reason:    ReasonAdoptedLongest,
		MaxLength: sel.MaxLength,
	}
}

// Reconcile applies the validated longest-chain rule in one step
func Reconcile(engine ledger.HashEngine, local models.ChainReport, reports []models.ChainReport) Decision {
	return Decide(local, Select(engine, reports))
}

// fingerprint identifies a chain by its block hashes. A valid chain's hashes
// commit to everything but the timestamps.
func fingerprint(chain []models.Block) chainhash.Hash {
	buf := make([]byte, 0, len(chain)*65)
	for i := range chain {
		buf = append(buf, chain[i].Hash...)
		buf = append(buf, '\n')
	}
	return chainhash.HashH(buf)
}
