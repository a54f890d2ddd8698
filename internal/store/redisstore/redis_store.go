package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"arena/internal/store"

	"github.com/redis/go-redis/v9"
)

const DefaultKey = "arena:snapshot"

type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore 把整份快照存成一个字符串键，SET 本身就是整体替换。
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ store.Backend = (*RedisStore)(nil)

func New(opts Options) (*RedisStore, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis store: addr 不能为空")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewWithClient(client, opts.Key), nil
}

func NewWithClient(client *redis.Client, key string) *RedisStore {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Name() string { return "redis" }

// Ping 用于启动时确认连接可用。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Load(ctx context.Context) (*store.Document, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return store.Decode(data)
}

func (s *RedisStore) Save(ctx context.Context, doc *store.Document) error {
	data, err := store.Encode(doc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
