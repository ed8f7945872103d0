// Package bbolt provides a BBolt-backed durable record store.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/pyre/storage"
)

var recordsBucket = []byte("records")

// Store implements storage.RecordStore backed by a BBolt database, keyed by
// session id so repeated upserts for one session stay idempotent.
type Store struct {
	db *bbolt.DB
}

var _ storage.RecordStore = (*Store)(nil)

// NewStore returns a record store backed by the given BBolt database.
func NewStore(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewStoreFromFile opens a BBolt database at the given path.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, sessionID string, record storage.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var recordID string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(recordsBucket)
		if err != nil {
			return err
		}
		record.SessionID = sessionID
		record.RecordID = uuid.NewString()
		if existing := b.Get([]byte(sessionID)); existing != nil {
			var prev storage.Record
			if err := json.Unmarshal(existing, &prev); err == nil && prev.RecordID != "" {
				record.RecordID = prev.RecordID
			}
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		recordID = record.RecordID
		return b.Put([]byte(sessionID), data)
	})
	if err != nil {
		return "", fmt.Errorf("upserting record %s: %w", sessionID, err)
	}
	return recordID, nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return storage.Record{}, err
	}
	var record storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b == nil {
			return fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
		}
		data := b.Get([]byte(sessionID))
		if data == nil {
			return fmt.Errorf("%s: %w", sessionID, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return storage.Record{}, err
	}
	return record, nil
}

func (s *Store) List(ctx context.Context) ([]storage.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var record storage.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EndTime.After(records[j].EndTime) })
	return records, nil
}
