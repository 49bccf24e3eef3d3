package storage

import "fmt"

// PeerStore persists registered peer URLs in registration order
type PeerStore struct {
	db *PebbleDB
}

// NewPeerStore creates a new PeerStore
func NewPeerStore(db *PebbleDB) *PeerStore {
	return &PeerStore{db: db}
}

// SavePeers overwrites the stored peer list
func (s *PeerStore) SavePeers(urls []string) error {
	batch := s.db.NewBatch()
	defer batch.Destroy()

	if err := batch.DeleteCF(CFPeers); err != nil {
		return err
	}
	for i, url := range urls {
		key := []byte(fmt.Sprintf("%08d", i))
		if err := batch.Put(CFPeers, key, []byte(url)); err != nil {
			return err
		}
	}

	return batch.Commit()
}

// LoadPeers returns the stored peer URLs
func (s *PeerStore) LoadPeers() ([]string, error) {
	iter, err := s.db.NewIterator(CFPeers)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var urls []string
	for ; iter.Valid(); iter.Next() {
		urls = append(urls, string(iter.Value()))
	}
	return urls, nil
}
