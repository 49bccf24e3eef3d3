package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/thanhnp/chainledger/internal/models"
)

// BlockStore handles block storage operations
type BlockStore struct {
	db *PebbleDB
}

// NewBlockStore creates a new BlockStore
func NewBlockStore(db *PebbleDB) *BlockStore {
	return &BlockStore{db: db}
}

// blockKey creates a key for the blocks column family
func blockKey(hash string) []byte {
	return []byte(hash)
}

// blockHeightKey creates a key for the blocks_by_height column family
func blockHeightKey(height int64) []byte {
	return []byte(fmt.Sprintf("%012d", height))
}

// tipKey is the sync_state key holding the index of the chain tip
var tipKey = []byte("tip")

func (s *BlockStore) putBlock(batch *WriteBatch, block *models.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}
	if err := batch.Put(CFBlocks, blockKey(block.Hash), data); err != nil {
		return err
	}
	return batch.Put(CFBlocksByHeight, blockHeightKey(block.Index), []byte(block.Hash))
}

// Append stores a block and moves the tip to it
func (s *BlockStore) Append(block *models.Block) error {
	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := s.putBlock(batch, block); err != nil {
		return err
	}
	if err := batch.Put(CFSyncState, tipKey, []byte(strconv.FormatInt(block.Index, 10))); err != nil {
		return err
	}

	return batch.Commit()
}

// ReplaceAll swaps the stored chain for blocks in a single batch
func (s *BlockStore) ReplaceAll(blocks []models.Block) error {
	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := batch.DeleteCF(CFBlocks); err != nil {
		return err
	}
	if err := batch.DeleteCF(CFBlocksByHeight); err != nil {
		return err
	}

	for i := range blocks {
		if err := s.putBlock(batch, &blocks[i]); err != nil {
			return err
		}
	}

	if len(blocks) == 0 {
		if err := batch.Delete(CFSyncState, tipKey); err != nil {
			return err
		}
	} else {
		tip := blocks[len(blocks)-1].Index
		if err := batch.Put(CFSyncState, tipKey, []byte(strconv.FormatInt(tip, 10))); err != nil {
			return err
		}
	}

	return batch.Commit()
}

// GetByHash retrieves a block by its hash
func (s *BlockStore) GetByHash(hash string) (*models.Block, error) {
	data, err := s.db.Get(CFBlocks, blockKey(hash))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var block models.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return &block, nil
}

// GetByHeight retrieves a block by its index
func (s *BlockStore) GetByHeight(height int64) (*models.Block, error) {
	hashData, err := s.db.Get(CFBlocksByHeight, blockHeightKey(height))
	if err != nil {
		return nil, err
	}
	if hashData == nil {
		return nil, nil
	}

	return s.GetByHash(string(hashData))
}

// TipHeight returns the index of the stored tip, or -1 when nothing is stored
func (s *BlockStore) TipHeight() (int64, error) {
	data, err := s.db.Get(CFSyncState, tipKey)
	if err != nil {
		return 0, err
	}
	if data == nil {
		return -1, nil
	}

	height, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse tip height: %w", err)
	}
	return height, nil
}

// LoadChain reads the stored chain in index order, starting at from
func (s *BlockStore) LoadChain(from int64) ([]models.Block, error) {
	tip, err := s.TipHeight()
	if err != nil {
		return nil, err
	}

	var chain []models.Block
	for height := from; height <= tip; height++ {
		block, err := s.GetByHeight(height)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, fmt.Errorf("block %d missing from store", height)
		}
		chain = append(chain, *block)
	}
	return chain, nil
}
