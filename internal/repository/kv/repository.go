// Package kv persists device-local storage: small string values addressed by
// (namespace, key), where a namespace is one device.
package kv

import "context"

type Repository interface {
	// Get returns domain.ErrNotFound when the key is absent.
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key, value string) error
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, namespace, key string) error
}
