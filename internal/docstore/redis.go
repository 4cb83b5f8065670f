package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the encoded document under a single key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: Collection + ":" + DocumentID}
}

func (s *RedisStore) Get(ctx context.Context) (Document, error) {
	body, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, mapRedisErr("get", err)
	}
	doc, err := Decode(body)
	if err != nil {
		return Document{}, storeErr("get", err)
	}
	return doc, nil
}

func (s *RedisStore) Put(ctx context.Context, doc Document) error {
	body, err := Encode(doc)
	if err != nil {
		return storeErr("put", err)
	}
	if err := s.client.Set(ctx, s.key, body, 0).Err(); err != nil {
		return mapRedisErr("put", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return mapRedisErr("ping", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func mapRedisErr(op string, err error) error {
	if strings.HasPrefix(err.Error(), "NOPERM") {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, err.Error())
	}
	return storeErr(op, err)
}
