//go:build js && wasm

package credentials

import (
	"context"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// KVBackend implements Backend on a Cloudflare Workers KV namespace.
type KVBackend struct {
	kvStore *kv.Namespace
	binding string
}

// NewKVBackend opens the KV namespace bound as binding in wrangler.toml.
func NewKVBackend(binding string) (*KVBackend, error) {
	kvStore, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &KVBackend{kvStore: kvStore, binding: binding}, nil
}

// Get treats an empty value as missing; KV returns "" for unknown keys.
func (k *KVBackend) Get(_ context.Context, key string) (string, bool, error) {
	v, err := k.kvStore.GetString(key, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s from KV: %w", key, err)
	}
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (k *KVBackend) Set(_ context.Context, key, value string, _ Attributes) error {
	if err := k.kvStore.PutString(key, value, nil); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", key, err)
	}
	return nil
}

func (k *KVBackend) Remove(_ context.Context, key string) error {
	if err := k.kvStore.Delete(key); err != nil {
		return fmt.Errorf("failed to delete %s from KV: %w", key, err)
	}
	return nil
}

func (k *KVBackend) Name() string {
	return "KVBackend(" + k.binding + ")"
}
