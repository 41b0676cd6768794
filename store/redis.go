package store

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// RedisBlobStore keeps blobs as plain redis strings under a key prefix.
type RedisBlobStore struct {
	client *redis.Client
	prefix string
}

// NewRedisBlobStore connects to a redis:// URL and checks the connection.
func NewRedisBlobStore(ctx context.Context, url, prefix string) (*RedisBlobStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisBlobStore{client: client, prefix: prefix}, nil
}

func (s *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *RedisBlobStore) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisBlobStore) Close() error {
	return s.client.Close()
}
