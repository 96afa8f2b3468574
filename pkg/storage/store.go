// Package storage is the node's persistence layer: a small key-value
// interface with an in-memory map for tests and a pebble-backed store
// for real runs. Values are opaque bytes; the key schema lives in
// keys.go.
package storage

import (
	"sort"
	"strings"
	"sync"
)

// KV is one stored pair returned by prefix scans.
type KV struct {
	Key   []byte
	Value []byte
}

// ObjectStore is the store surface the node runs on. List returns
// pairs in ascending key order.
type ObjectStore interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	List(prefix []byte) ([]KV, error)
	Close() error
}

// MemoryStore keeps everything in a map. Good for tests and throwaway
// devnets.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *MemoryStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := make([]byte, len(value))
	copy(val, value)
	s.data[string(key)] = val
	return nil
}

func (s *MemoryStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
	return nil
}

// List scans in sorted key order, matching pebble iteration.
func (s *MemoryStore) List(prefix []byte) ([]KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []KV
	for key, val := range s.data {
		if !strings.HasPrefix(key, string(prefix)) {
			continue
		}
		v := make([]byte, len(val))
		copy(v, val)
		out = append(out, KV{Key: []byte(key), Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].Key) < string(out[j].Key)
	})
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

var _ ObjectStore = (*MemoryStore)(nil)
