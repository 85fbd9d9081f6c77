package lnurlauth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one login correlation record keyed by the challenge hash.
type Entry struct {
	K1         string `json:"k1"`                   // Challenge secret (hex).
	LinkingKey string `json:"linkingKey,omitempty"` // Wallet public key, set once signed.
	SignedAt   int64  `json:"signedAt,omitempty"`   // Unix timestamp of the wallet signature.
}

// Signed reports whether a wallet has signed the challenge.
func (e *Entry) Signed() bool {
	return e.LinkingKey != ""
}

// Store is the TTL-capable key-value store backing login correlation, so the
// service can run as multiple stateless instances.
type Store interface {
	// Put stores the entry under the hash with the given TTL, replacing any
	// previous entry and its TTL.
	Put(ctx context.Context, hash string, entry Entry, ttl time.Duration) error
	// Get returns the entry or nil when absent or expired.
	Get(ctx context.Context, hash string) (*Entry, error)
	// Delete removes the entry. Deleting an absent entry is not an error.
	Delete(ctx context.Context, hash string) error
}

const redisKeyPrefix = "lnurlauth:challenge:"

// RedisStore is the redis-backed Store used in production.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, hash string, entry Entry, ttl time.Duration) error {
	payload, errMarshal := json.Marshal(entry)
	if errMarshal != nil {
		return errMarshal
	}
	return s.client.Set(ctx, redisKeyPrefix+hash, payload, ttl).Err()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, hash string) (*Entry, error) {
	payload, errGet := s.client.Get(ctx, redisKeyPrefix+hash).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, nil
		}
		return nil, errGet
	}
	var entry Entry
	if errUnmarshal := json.Unmarshal(payload, &entry); errUnmarshal != nil {
		return nil, errUnmarshal
	}
	return &entry, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, hash string) error {
	return s.client.Del(ctx, redisKeyPrefix+hash).Err()
}

// MemoryStore is a process-local Store for tests and single-node setups.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, hash string, entry Entry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[hash] = memoryEntry{entry: entry, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, hash string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.entries[hash]
	if !ok {
		return nil, nil
	}
	if time.Now().After(stored.expiresAt) {
		delete(s.entries, hash)
		return nil, nil
	}
	entry := stored.entry
	return &entry, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, hash)
	return nil
}
