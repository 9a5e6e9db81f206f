// Custodian - Audit Trail and Suspicious Activity Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodian

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/custodian/internal/logging"
)

// BadgerStore implements Store on BadgerDB. Records are stored under
// partition-prefixed keys whose sort key suffix preserves chronological
// order, so partition scans are bounded prefix iterations regardless of
// total store size. A secondary keyspace indexes records per actor.
//
// Key layout (0x00 as separator):
//
//	p\x00{partitionKey}\x00{sortKey}                      -> record JSON
//	a\x00{secondaryKey}\x00{secondarySort}\x00{recordID}  -> primary key
//
// The NUL separator sorts below every byte a key component can contain,
// so one partition's scan prefix can never match a longer partition's
// keys (AUTH vs AUTHX, doc-1 vs doc-1x). The Writer additionally rejects
// IDs carrying control characters.
type BadgerStore struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

const (
	keySep        = "\x00"
	primaryPrefix = "p" + keySep
	actorPrefix   = "a" + keySep
)

// BadgerOptions configures the on-disk event store.
type BadgerOptions struct {
	// Path is the database directory.
	Path string

	// SyncWrites forces fsync on every write. Audit durability requires it;
	// disable only for tests.
	SyncWrites bool

	// InMemory runs BadgerDB without disk persistence (tests).
	InMemory bool
}

// OpenBadger opens (or creates) the event store at the configured path.
func OpenBadger(cfg BadgerOptions) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	opts.InMemory = cfg.InMemory
	if cfg.InMemory {
		opts.Dir = ""
		opts.ValueDir = ""
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("event store opened")

	return &BadgerStore{db: db}, nil
}

// Append durably persists a record and its actor index entry in one
// transaction. Returns only after BadgerDB acknowledges the write. An
// occupied primary key fails with ErrDuplicateRecord: the store is
// append-only, so overwriting history is never an option.
func (s *BadgerStore) Append(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	primaryKey := primaryKeyFor(rec.PartitionKey, rec.SortKey)

	err = s.db.Update(func(txn *badger.Txn) error {
		switch _, err := txn.Get(primaryKey); {
		case err == nil:
			return fmt.Errorf("%w: partition %s sort key %s", ErrDuplicateRecord, rec.PartitionKey, rec.SortKey)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(primaryKey, data); err != nil {
			return err
		}
		if rec.SecondaryKey != "" {
			idxKey := actorIndexKey(rec.SecondaryKey, rec.SecondarySort, rec.ID)
			return txn.Set(idxKey, primaryKey)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return err
		}
		return fmt.Errorf("%w: append record: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// ScanPartition returns records in one partition, most-recent-first.
// The reverse prefix iteration stops as soon as it passes below the start
// bound, so scan cost tracks the window, not the partition size.
func (s *BadgerStore) ScanPartition(ctx context.Context, partitionKey string, opts ScanOptions) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	prefix := []byte(primaryPrefix + partitionKey + keySep)

	var results []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(reverseIterOpts(prefix))
		defer it.Close()

		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}

			if !opts.End.IsZero() && rec.Timestamp.After(opts.End) {
				continue
			}
			if !opts.Start.IsZero() && rec.Timestamp.Before(opts.Start) {
				// Reverse iteration is newest-first; everything past this
				// point is older still.
				break
			}

			results = append(results, rec)
			if opts.Limit > 0 && len(results) >= opts.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan partition %s: %v", ErrStoreUnavailable, partitionKey, err)
	}

	return results, nil
}

// ScanActor returns records in an actor's secondary index, most-recent-first.
func (s *BadgerStore) ScanActor(ctx context.Context, actorID string, opts ScanOptions) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	prefix := []byte(actorPrefix + ActorKey(actorID) + keySep)

	var results []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(reverseIterOpts(prefix))
		defer it.Close()

		for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
			var primaryKey []byte
			err := it.Item().Value(func(val []byte) error {
				primaryKey = append([]byte(nil), val...)
				return nil
			})
			if err != nil {
				return fmt.Errorf("read index entry: %w", err)
			}

			item, err := txn.Get(primaryKey)
			if err != nil {
				return fmt.Errorf("resolve index entry %q: %w", primaryKey, err)
			}

			var rec Record
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("unmarshal record: %w", err)
			}

			if !opts.End.IsZero() && rec.Timestamp.After(opts.End) {
				continue
			}
			if !opts.Start.IsZero() && rec.Timestamp.Before(opts.Start) {
				break
			}

			results = append(results, rec)
			if opts.Limit > 0 && len(results) >= opts.Limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan actor %s: %v", ErrStoreUnavailable, actorID, err)
	}

	return results, nil
}

// Close shuts the store down.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func primaryKeyFor(partitionKey, sortKey string) []byte {
	return []byte(primaryPrefix + partitionKey + keySep + sortKey)
}

func actorIndexKey(secondaryKey, secondarySort, recordID string) []byte {
	// Record ID suffix keeps index entries unique when two events by the
	// same actor share a timestamp.
	return []byte(actorPrefix + secondaryKey + keySep + secondarySort + keySep + recordID)
}

func reverseIterOpts(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.Reverse = true
	return opts
}

// seekLast returns a key just past every key carrying the prefix, so a
// reverse iterator lands on the newest entry first.
func seekLast(prefix []byte) []byte {
	return append(append([]byte(nil), prefix...), 0xFF)
}
