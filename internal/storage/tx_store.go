package storage

import (
	"encoding/json"
	"fmt"

	"github.com/thanhnp/chainledger/internal/models"
)

// TxStore persists the pending transaction pool
type TxStore struct {
	db *PebbleDB
}

// NewTxStore creates a new TxStore
func NewTxStore(db *PebbleDB) *TxStore {
	return &TxStore{db: db}
}

// pendingKey keeps pool order through a zero-padded position
func pendingKey(pos int, txid string) []byte {
	return []byte(fmt.Sprintf("%08d:%s", pos, txid))
}

// SavePending overwrites the stored pool with txs
func (s *TxStore) SavePending(txs []models.Transaction) error {
	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := batch.DeleteCF(CFPending); err != nil {
		return err
	}
	for i := range txs {
		data, err := json.Marshal(&txs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal transaction: %w", err)
		}
		if err := batch.Put(CFPending, pendingKey(i, txs[i].TransactionID), data); err != nil {
			return err
		}
	}

	return batch.Commit()
}

// LoadPending returns the stored pool in order
func (s *TxStore) LoadPending() ([]models.Transaction, error) {
	iter, err := s.db.NewIterator(CFPending)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	txs := []models.Transaction{}
	for ; iter.Valid(); iter.Next() {
		var tx models.Transaction
		if err := json.Unmarshal(iter.Value(), &tx); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}
