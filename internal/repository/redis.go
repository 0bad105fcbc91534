package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisKV implements KVStore on Redis strings under a namespace.
// Used as the backup side channel so blobs survive loss of the primary database.
type RedisKV struct {
	client    *redis.Client
	namespace string
}

// NewRedisKV wraps an existing client. Every key is stored as namespace+key.
func NewRedisKV(client *redis.Client, namespace string, log logrus.FieldLogger) *RedisKV {
	if namespace == "" {
		namespace = "restaurant:kv:"
	}
	log.WithField("namespace", namespace).Info("redis store initialized")
	return &RedisKV{client: client, namespace: namespace}
}

func (r *RedisKV) fullKey(key string) string {
	return r.namespace + key
}

// Get retrieves the value stored under key.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, true, nil
}

// Put stores value under key without expiry.
func (r *RedisKV) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.fullKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists keys with the given prefix using SCAN.
func (r *RedisKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeGlob(r.fullKey(prefix)) + "*"

	keys := []string{}
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Stats returns the number of keys in the namespace.
func (r *RedisKV) Stats(ctx context.Context) (map[string]interface{}, error) {
	keys, err := r.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"total_entries": len(keys),
		"namespace":     r.namespace,
	}, nil
}

// Ping checks the connection.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

// escapeGlob escapes the characters SCAN MATCH treats as pattern syntax.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Ensure RedisKV implements KVStore
var _ KVStore = (*RedisKV)(nil)
