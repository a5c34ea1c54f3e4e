package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore persists the current identity across process restarts
type SessionStore interface {
	// Load returns the persisted identity or ErrNoSession
	Load(ctx context.Context) (Identity, error)
	// Save replaces the persisted identity
	Save(ctx context.Context, id Identity) error
	// Clear removes the persisted identity. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// FileStore keeps the session as a JSON file readable only by the owner
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-backed session store
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the session file location
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the session file
func (s *FileStore) Load(ctx context.Context) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Identity{}, ErrNoSession
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read session file: %w", err)
	}
	return decodeSession(data)
}

// Save writes the session file atomically
func (s *FileStore) Save(ctx context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Clear deletes the session file
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// RedisStore keeps the session in Redis so several terminals can share it
type RedisStore struct {
	redis *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisStore creates a Redis-backed session store.
// A zero ttl keeps the session until logout.
func NewRedisStore(client *redis.Client, prefix, name string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "residencia:"
	}
	if name == "" {
		name = "default"
	}
	return &RedisStore{
		redis: client,
		key:   prefix + "session:" + name,
		ttl:   ttl,
	}
}

// Key returns the Redis key holding the session
func (s *RedisStore) Key() string {
	return s.key
}

// Load fetches the session from Redis
func (s *RedisStore) Load(ctx context.Context) (Identity, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return Identity{}, ErrNoSession
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to read session from redis: %w", err)
	}
	return decodeSession(data)
}

// Save stores the session in Redis
func (s *RedisStore) Save(ctx context.Context, id Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session to redis: %w", err)
	}
	return nil
}

// Clear deletes the session key
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// MemoryStore keeps the session in process memory
type MemoryStore struct {
	mu sync.RWMutex
	id *Identity
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.id == nil {
		return Identity{}, ErrNoSession
	}
	return s.id.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := id.Clone()
	s.id = &c
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = nil
	return nil
}

func decodeSession(data []byte) (Identity, error) {
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("failed to decode session: %w", err)
	}
	if id.Token == "" {
		return Identity{}, ErrNoSession
	}
	id.Role = ParseRole(string(id.Role))
	return id, nil
}
