// Package credstore keeps the login credentials of created nodes.
//
// Providers hand out a node's credentials only once, at creation time (a
// generated private key, an initial password). The store remembers them by
// node id so that later GetNode and ListNodes calls can attach them again.
// Backends: process memory, a local badger database and an S3 bucket.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/imamik/nodekit/pkg/compute"
)

// Store persists LoginCredentials by node id.
type Store interface {
	Put(ctx context.Context, nodeID string, creds *compute.LoginCredentials) error
	// Get returns nil when nothing is stored for nodeID.
	Get(ctx context.Context, nodeID string) (*compute.LoginCredentials, error)
	// Delete succeeds when nothing is stored for nodeID.
	Delete(ctx context.Context, nodeID string) error
	Close() error
}

func encode(creds *compute.LoginCredentials) ([]byte, error) {
	data, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*compute.LoginCredentials, error) {
	var creds compute.LoginCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]compute.LoginCredentials
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: map[string]compute.LoginCredentials{}}
}

func (s *MemoryStore) Put(_ context.Context, nodeID string, creds *compute.LoginCredentials) error {
	if creds == nil {
		return fmt.Errorf("nil credentials for node %s", nodeID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[nodeID] = *creds
	return nil
}

func (s *MemoryStore) Get(_ context.Context, nodeID string) (*compute.LoginCredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.creds[nodeID]
	if !ok {
		return nil, nil
	}
	return &creds, nil
}

func (s *MemoryStore) Delete(_ context.Context, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, nodeID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Snapshot returns a copy of everything stored.
func (s *MemoryStore) Snapshot() map[string]compute.LoginCredentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.creds)
}
