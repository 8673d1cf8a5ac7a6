package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"controlroom.busops.org/internal/logging"
)

// RedisConfig addresses the shared Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisBackend stores collections under <prefix>:<collection> and announces every write on
// <prefix>:changes so that other control room processes can refresh.
type RedisBackend struct {
	client   *redis.Client
	prefix   string
	instance string
	logger   *slog.Logger
}

func NewRedisBackend(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "controlroom"
	}
	return &RedisBackend{
		client:   client,
		prefix:   prefix,
		instance: uuid.NewString(),
		logger:   logging.Component(logger, "redis"),
	}, nil
}

func (b *RedisBackend) key(collection string) string {
	return b.prefix + ":" + collection
}

func (b *RedisBackend) channel() string {
	return b.prefix + ":changes"
}

func (b *RedisBackend) Load(ctx context.Context, collection string) ([]byte, bool, error) {
	body, err := b.client.Get(ctx, b.key(collection)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, collection string, body []byte) error {
	if err := b.client.Set(ctx, b.key(collection), body, 0).Err(); err != nil {
		return err
	}
	return b.announce(ctx, collection)
}

func (b *RedisBackend) Delete(ctx context.Context, collection string) error {
	if err := b.client.Del(ctx, b.key(collection)).Err(); err != nil {
		return err
	}
	return b.announce(ctx, collection)
}

func (b *RedisBackend) announce(ctx context.Context, collection string) error {
	return b.client.Publish(ctx, b.channel(), b.instance+" "+collection).Err()
}

func (b *RedisBackend) Watch(ctx context.Context, fn func(collection string)) (func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.channel(), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				origin, collection, found := strings.Cut(msg.Payload, " ")
				if !found || origin == b.instance {
					continue
				}
				fn(collection)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			logging.SafeCloseWithLogging(pubsub, b.logger, "close_pubsub")
			wg.Wait()
		})
	}, nil
}

func (b *RedisBackend) Collections(ctx context.Context) ([]CollectionInfo, error) {
	var infos []CollectionInfo
	iter := b.client.Scan(ctx, 0, b.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		name := strings.TrimPrefix(key, b.prefix+":")
		if name == "changes" {
			continue
		}
		size, err := b.client.StrLen(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		infos = append(infos, CollectionInfo{Name: name, Size: int(size)})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
