package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	fieldValue    = "value"
	fieldMetadata = "metadata"
)

// Redis stores each key as a hash holding the value and its JSON encoded
// metadata, so both are replaced atomically.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a store backed by client. Every key is prefixed with
// prefix, which may be empty.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (s *Redis) key(k string) string {
	return s.prefix + k
}

func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.HGet(ctx, s.key(key), fieldValue).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv: get %s: %w", key, err)
	}

	return value, nil
}

func (s *Redis) Put(ctx context.Context, key, value string, meta Metadata) error {
	k := s.key(key)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, k)

	if meta == nil {
		pipe.HSet(ctx, k, fieldValue, value)
	} else {
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("kv: encode metadata for %s: %w", key, err)
		}

		pipe.HSet(ctx, k, fieldValue, value, fieldMetadata, data)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("kv: put %s: %w", key, err)
	}

	return nil
}

func (s *Redis) Metadata(ctx context.Context, key string) (Metadata, error) {
	fields, err := s.client.HMGet(ctx, s.key(key), fieldValue, fieldMetadata).Result()
	if err != nil {
		return nil, fmt.Errorf("kv: metadata %s: %w", key, err)
	}

	if fields[0] == nil {
		return nil, ErrNotFound
	}

	raw, ok := fields[1].(string)
	if !ok {
		return nil, nil
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("kv: decode metadata for %s: %w", key, err)
	}

	return meta, nil
}

// Ping checks the connection to the server.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
