// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/metatree-dev/metatree/internal/model"
)

const blueprintPrefix = "bp:"

// BlueprintStore keeps blueprints in a Badger database, keyed by UID.
// Keys use the "bp:" prefix so other record types can share the database.
type BlueprintStore struct {
	db *badger.DB
}

// OpenBlueprintStore opens (or creates) the Badger database at path.
func OpenBlueprintStore(path string) (*BlueprintStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &BlueprintStore{db: db}, nil
}

// OpenInMemoryBlueprintStore opens a non-persistent store, used in tests.
func OpenInMemoryBlueprintStore() (*BlueprintStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &BlueprintStore{db: db}, nil
}

func (s *BlueprintStore) Close() error { return s.db.Close() }

// Put stores one blueprint under its UID.
func (s *BlueprintStore) Put(ctx context.Context, bp *model.Blueprint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bp.UID == "" {
		return fmt.Errorf("store: blueprint has no UID")
	}
	buf, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("store: encode blueprint %s: %w", bp.UID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blueprintPrefix+bp.UID), buf)
	})
}

// PutAll stores a batch of blueprints in one write batch.
func (s *BlueprintStore) PutAll(ctx context.Context, blueprints []model.Blueprint) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range blueprints {
		if err := ctx.Err(); err != nil {
			return err
		}
		bp := &blueprints[i]
		if bp.UID == "" {
			return fmt.Errorf("store: blueprint has no UID")
		}
		buf, err := json.Marshal(bp)
		if err != nil {
			return fmt.Errorf("store: encode blueprint %s: %w", bp.UID, err)
		}
		if err := wb.Set([]byte(blueprintPrefix+bp.UID), buf); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Get loads one blueprint by UID. Returns ErrNotFound for unknown UIDs.
func (s *BlueprintStore) Get(ctx context.Context, uid string) (*model.Blueprint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out model.Blueprint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blueprintPrefix + uid))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: blueprint %s", ErrNotFound, uid)
		}
		return nil, err
	}
	return &out, nil
}

// Scan iterates over all stored blueprints. The callback may return an
// error to abort the scan; context cancellation aborts it too.
func (s *BlueprintStore) Scan(ctx context.Context, fn func(*model.Blueprint) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(blueprintPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var bp model.Blueprint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &bp)
			}); err != nil {
				return err
			}
			if err := fn(&bp); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of stored blueprints.
func (s *BlueprintStore) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.Scan(ctx, func(*model.Blueprint) error {
		n++
		return nil
	})
	return n, err
}
