package kv

import (
	"context"
	"sync"

	"bahri-storefront/internal/domain"
)

type memoryRepo struct {
	mu      sync.RWMutex
	entries map[string]map[string]string
}

// NewMemory returns a process-local Repository.
func NewMemory() Repository {
	return &memoryRepo{entries: make(map[string]map[string]string)}
}

func (r *memoryRepo) Get(_ context.Context, namespace, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[namespace][key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (r *memoryRepo) Set(_ context.Context, namespace, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns := r.entries[namespace]
	if ns == nil {
		ns = make(map[string]string)
		r.entries[namespace] = ns
	}
	ns[key] = value
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, namespace, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries[namespace], key)
	return nil
}
