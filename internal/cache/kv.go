// Package cache persists the chat history on the device so conversations
// stay browsable offline.
package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// KV is a string key-value store. Get reports ok=false for absent keys.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and configures a KV backend.
type Options struct {
	Backend    string
	Dir        string
	SQLitePath string
	RedisURL   string
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryKV(), nil
	case BackendFile, "":
		return NewFileKV(opts.Dir)
	case BackendSQLite:
		return NewSQLiteKV(opts.SQLitePath)
	case BackendRedis:
		opt, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		return NewRedisKV(ctx, redis.NewClient(opt))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
