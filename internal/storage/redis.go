package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vovakirdan/duel2048/internal/duel"
	"github.com/vovakirdan/duel2048/internal/multiplayer"
)

const stateKeyPrefix = "duel2048:state:"

// RedisStateStore keeps saved games in Redis so any server behind the same
// instance can resume a room. Entries expire after ttl of inactivity.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: cannot reach redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStateStore wraps client. A zero ttl keeps entries forever.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func stateKey(roomID string) string {
	return stateKeyPrefix + roomID
}

// SaveState stores state for roomID and refreshes its expiry.
func (r *RedisStateStore) SaveState(ctx context.Context, roomID string, state duel.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: cannot encode state: %w", err)
	}
	if err := r.client.Set(ctx, stateKey(roomID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("storage: cannot save state: %w", err)
	}
	return nil
}

// LoadState returns the saved game for roomID or ErrStateNotFound.
func (r *RedisStateStore) LoadState(ctx context.Context, roomID string) (duel.State, error) {
	data, err := r.client.Get(ctx, stateKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return duel.State{}, fmt.Errorf("%w: %s", ErrStateNotFound, roomID)
	}
	if err != nil {
		return duel.State{}, fmt.Errorf("storage: cannot load state: %w", err)
	}

	var state duel.State
	if err := json.Unmarshal(data, &state); err != nil {
		return duel.State{}, fmt.Errorf("storage: cannot decode state: %w", err)
	}
	return state, nil
}

// DeleteState removes the saved game for roomID.
func (r *RedisStateStore) DeleteState(ctx context.Context, roomID string) error {
	if err := r.client.Del(ctx, stateKey(roomID)).Err(); err != nil {
		return fmt.Errorf("storage: cannot delete state: %w", err)
	}
	return nil
}

var _ multiplayer.StateStore = (*RedisStateStore)(nil)
