// ABOUTME: Chat history stores
// ABOUTME: In-memory and Redis-backed histories that several assistants can share
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Store persists chat history
type Store interface {
	// Load returns the full history, oldest first
	Load(ctx context.Context) ([]Message, error)

	// Append adds messages at the end of the history
	Append(ctx context.Context, msgs ...Message) error
}

// MemoryStore keeps history in process
type MemoryStore struct {
	mu       sync.Mutex
	messages []Message
}

// NewMemoryStore creates a history holding the given messages
func NewMemoryStore(initial ...Message) *MemoryStore {
	return &MemoryStore{messages: append([]Message(nil), initial...)}
}

// Load returns a copy of the history
func (m *MemoryStore) Load(ctx context.Context) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...), nil
}

// Append adds messages to the history
func (m *MemoryStore) Append(ctx context.Context, msgs ...Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return nil
}

// RedisStore keeps history in a Redis list of JSON messages
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore stores history under key
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Load reads the whole list
func (r *RedisStore) Load(ctx context.Context) ([]Message, error) {
	items, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	msgs := make([]Message, 0, len(items))
	for i, item := range items {
		var m Message
		if err := sonic.UnmarshalString(item, &m); err != nil {
			return nil, fmt.Errorf("corrupt history entry %d: %w", i, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Append pushes messages onto the list
func (r *RedisStore) Append(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		s, err := sonic.MarshalString(m)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		values = append(values, s)
	}

	if err := r.client.RPush(ctx, r.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Clear deletes the history
func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
