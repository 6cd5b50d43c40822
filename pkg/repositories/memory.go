package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryRepository keeps encoded documents in process memory. It is used for
// local development and tests.
type MemoryRepository struct {
	lock sync.RWMutex
	docs map[string]map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs: make(map[string]map[string][]byte),
	}
}

func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) GetDocument(ctx context.Context, collection, id string, out interface{}) error {
	r.lock.RLock()
	data, ok := r.docs[collection][id]
	r.lock.RUnlock()
	if !ok {
		return notFound(collection, id)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %v", collection, id, err)
	}
	return nil
}

func (r *MemoryRepository) SetDocument(ctx context.Context, collection, id string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %v", collection, id, err)
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.docs[collection] == nil {
		r.docs[collection] = make(map[string][]byte)
	}
	r.docs[collection][id] = data
	return nil
}

func (r *MemoryRepository) UpdateDocument(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	data, ok := r.docs[collection][id]
	if !ok {
		return notFound(collection, id)
	}
	merged, err := mergeFields(data, fields)
	if err != nil {
		return err
	}
	r.docs[collection][id] = merged
	return nil
}

func (r *MemoryRepository) DeleteDocument(ctx context.Context, collection, id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.docs[collection], id)
	return nil
}

// Len returns the number of documents in collection.
func (r *MemoryRepository) Len(collection string) int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.docs[collection])
}
