package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var likesBucket = []byte("likes")

// BoltLedger keeps the ledger in a bbolt bucket keyed by insertion sequence.
type BoltLedger struct {
	db *bolt.DB
}

type boltRow struct {
	CreatedAt  time.Time       `json:"created_at"`
	Identifier string          `json:"identifier"`
	PostData   json.RawMessage `json:"post_data"`
	Filenames  json.RawMessage `json:"filenames"`
}

func OpenBolt(dbPath string, timeout time.Duration) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &BoltLedger{db: db}, nil
}

func (s *BoltLedger) Initialize(_ context.Context) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(likesBucket)
		return createErr
	})
	if err != nil {
		return fmt.Errorf("creating buckets: %w", err)
	}
	return nil
}

func (s *BoltLedger) LoadSeenIdentifiers(_ context.Context) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(likesBucket)
		if b == nil {
			return fmt.Errorf("likes bucket missing, ledger not initialized")
		}
		return b.ForEach(func(_ []byte, v []byte) error {
			var row boltRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			seen[row.Identifier] = struct{}{}
			return nil
		})
	})
	return seen, err
}

func (s *BoltLedger) Append(_ context.Context, entries []*LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	encoded, err := encodeEntries(entries, time.Now())
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(likesBucket)
		if b == nil {
			return fmt.Errorf("likes bucket missing, ledger not initialized")
		}
		for _, e := range encoded {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(boltRow{
				CreatedAt:  e.createdAt,
				Identifier: e.identifier,
				PostData:   e.postData,
				Filenames:  e.filenames,
			})
			if err != nil {
				return err
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltLedger) Entries(_ context.Context) ([]*LedgerEntry, error) {
	var entries []*LedgerEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(likesBucket)
		if b == nil {
			return fmt.Errorf("likes bucket missing, ledger not initialized")
		}
		return b.ForEach(func(_ []byte, v []byte) error {
			var row boltRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			names, err := decodeFilenames(row.Filenames)
			if err != nil {
				return fmt.Errorf("entry %s: %w", row.Identifier, err)
			}
			entries = append(entries, &LedgerEntry{
				CreatedAt:  row.CreatedAt,
				Identifier: row.Identifier,
				PostData:   row.PostData,
				Filenames:  names,
			})
			return nil
		})
	})
	return entries, err
}

func (s *BoltLedger) Close() error {
	return s.db.Close()
}

// sequenceKey is big endian so cursor order equals insertion order.
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
