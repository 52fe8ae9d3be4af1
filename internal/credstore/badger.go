package credstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/imamik/nodekit/pkg/compute"
)

const badgerKeyPrefix = "credentials:"

// BadgerStore keeps credentials in a local badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	return openBadger(opts)
}

// OpenBadgerInMemory opens a database that lives only in memory.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(nodeID string) []byte {
	return []byte(badgerKeyPrefix + nodeID)
}

func (s *BadgerStore) Put(_ context.Context, nodeID string, creds *compute.LoginCredentials) error {
	data, err := encode(creds)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(nodeID), data)
	})
}

func (s *BadgerStore) Get(_ context.Context, nodeID string) (*compute.LoginCredentials, error) {
	var out *compute.LoginCredentials
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(nodeID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(v []byte) error {
			out, err = decode(v)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials of node %s: %w", nodeID, err)
	}
	return out, nil
}

func (s *BadgerStore) Delete(_ context.Context, nodeID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(nodeID))
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
