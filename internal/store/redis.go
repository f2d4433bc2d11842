package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"trivia-api/internal/models"

	"github.com/redis/go-redis/v9"
)

// redisBackend stores documents as JSON strings. Every read WATCHes its key
// and writes go out in one MULTI/EXEC, which Redis aborts when a watched key
// changed.
type redisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on a connected Redis client. Keys are
// namespaced as <prefix>:<collection>:<id>.
func NewRedisStore(client *redis.Client, prefix string, opts Options) *Store {
	return newStore("redis", &redisBackend{client: client, prefix: prefix}, opts)
}

func (b *redisBackend) key(key docKey) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, key.kind, key.id)
}

func (b *redisBackend) attempt(ctx context.Context, fn func(session) error) error {
	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		return fn(&redisSession{backend: b, tx: tx})
	})
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (b *redisBackend) getBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	data, err := b.client.Get(ctx, b.key(docKey{kindBalance, userID})).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var balance models.UserBalance
	if err := json.Unmarshal(data, &balance); err != nil {
		return nil, fmt.Errorf("failed to decode balance %s: %w", userID, err)
	}
	return &balance, nil
}

func (b *redisBackend) deleteBalances(ctx context.Context, userIDs []string) (int64, error) {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = b.key(docKey{kindBalance, id})
	}
	return b.client.Del(ctx, keys...).Result()
}

func (b *redisBackend) close() error {
	return b.client.Close()
}

type redisSession struct {
	backend *redisBackend
	tx      *redis.Tx
}

func (s *redisSession) get(ctx context.Context, key docKey, dst interface{}) (bool, error) {
	k := s.backend.key(key)
	if err := s.tx.Watch(ctx, k).Err(); err != nil {
		return false, err
	}

	data, err := s.tx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", k, err)
	}
	return true, nil
}

// commit relies on WATCH for validation of the whole read set.
func (s *redisSession) commit(ctx context.Context, _ map[docKey]readState, writes []pendingWrite) error {
	if len(writes) == 0 {
		return nil
	}

	values := make(map[string][]byte, len(writes))
	for _, w := range writes {
		data, err := json.Marshal(w.doc)
		if err != nil {
			return err
		}
		values[s.backend.key(w.key)] = data
	}

	_, err := s.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, data := range values {
			pipe.Set(ctx, k, data, 0)
		}
		return nil
	})
	return err
}
