package state

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"covidlens/internal/model"
)

// Store keeps encoded dataset snapshots by key. Keys are visited in
// ascending byte order by Range.
type Store interface {
	Put(key string, ds model.Dataset) error
	Get(key string) (model.Dataset, bool, error)
	Range(fn func(key string) error) error
	Delete(key string) error
}

func encode(ds model.Dataset) ([]byte, error) { return json.Marshal(ds) }

func decode(val []byte) (model.Dataset, error) {
	var ds model.Dataset
	if err := json.Unmarshal(val, &ds); err != nil {
		return model.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// InMemoryStore is a simple thread-safe map store. Values are kept encoded
// so callers never share slices with the store.
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(key string, ds model.Dataset) error {
	b, err := encode(ds)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = b
	return nil
}

func (s *InMemoryStore) Get(key string) (model.Dataset, bool, error) {
	s.mu.RLock()
	b, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return model.Dataset{}, false, nil
	}
	ds, err := decode(b)
	if err != nil {
		return model.Dataset{}, false, err
	}
	return ds, true, nil
}

func (s *InMemoryStore) Range(fn func(key string) error) error {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k); err != nil {
			return fmt.Errorf("range callback failed: %w", err)
		}
	}
	return nil
}

func (s *InMemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
