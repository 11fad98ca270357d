// Package storage is the device's local storage: the keys the session and
// cart stores persist under, serialized as JSON strings.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"bahri-storefront/internal/domain"
	"bahri-storefront/internal/repository/kv"
)

const (
	KeyToken   = "token"
	KeyRefresh = "refresh"
	KeyUser    = "user"
)

// CartKey is the key of the persisted cart for a scope ("guest" or a user id).
func CartKey(scope string) string {
	return "cart_" + scope
}

// Local scopes a kv.Repository to one device namespace.
type Local struct {
	repo      kv.Repository
	namespace string
}

func NewLocal(repo kv.Repository, namespace string) *Local {
	return &Local{repo: repo, namespace: namespace}
}

func (l *Local) Namespace() string {
	return l.namespace
}

// GetString returns "", false when the key is absent.
func (l *Local) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := l.repo.Get(ctx, l.namespace, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func (l *Local) SetString(ctx context.Context, key, value string) error {
	if err := l.repo.Set(ctx, l.namespace, key, value); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// GetJSON decodes the value under key into out and reports whether it existed.
func (l *Local) GetJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, ok, err := l.GetString(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Local) SetJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return l.SetString(ctx, key, string(raw))
}

// Remove deletes every given key, stopping at the first failure.
func (l *Local) Remove(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := l.repo.Delete(ctx, l.namespace, k); err != nil {
			return fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return nil
}
