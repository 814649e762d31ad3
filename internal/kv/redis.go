package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds optimistic transaction retries under contention.
const maxTxRetries = 16

// RedisStore keeps each document as a JSON string under
// "<prefix><collection>:<key>" and tracks the keys of a collection in a set.
// Read-modify-write operations use WATCH/MULTI.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ridit:"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) docKey(collection, key string) string {
	return s.prefix + collection + ":" + key
}

func (s *RedisStore) indexKey(collection string) string {
	return s.prefix + "_index:" + collection
}

// Get loads the document at path into dst.
func (s *RedisStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}

	data, err := s.client.Get(ctx, s.docKey(collection, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting %s: %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// List returns every child of a collection ordered by key.
func (s *RedisStore) List(ctx context.Context, collection string) ([]Entry, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}

	keys, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = s.docKey(collection, k)
	}
	values, err := s.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}

	entries := make([]Entry, 0, len(keys))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Removed between SMEMBERS and MGET.
			continue
		}
		entries = append(entries, Entry{Key: keys[i], Value: json.RawMessage(str)})
	}
	return entries, nil
}

// Set replaces the document at path.
func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.docKey(collection, key), data, 0)
		pipe.SAdd(ctx, s.indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting %s: %w", path, err)
	}
	return nil
}

// Create stores value at path unless a document is already there.
func (s *RedisStore) Create(ctx context.Context, path string, value any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", path, err)
	}

	created, err := s.client.SetNX(ctx, s.docKey(collection, key), data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}
	if !created {
		return false, nil
	}
	if err := s.client.SAdd(ctx, s.indexKey(collection), key).Err(); err != nil {
		return false, fmt.Errorf("indexing %s: %w", path, err)
	}
	return true, nil
}

// Update merges top-level fields into the document at path.
func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, collection, key, func(doc map[string]json.RawMessage, _ bool) (bool, error) {
		for _, f := range encoded {
			doc[f.name] = f.value
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path.
func (s *RedisStore) Delete(ctx context.Context, path string) error {
	collection, key, err := splitPath(path)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.docKey(collection, key))
		pipe.SRem(ctx, s.indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Push stores value under a newly generated key and returns the key.
func (s *RedisStore) Push(ctx context.Context, collection string, value any) (string, error) {
	if err := checkCollection(collection); err != nil {
		return "", err
	}
	key, err := NewKey()
	if err != nil {
		return "", err
	}
	if err := s.Set(ctx, Join(collection, key), value); err != nil {
		return "", err
	}
	return key, nil
}

// CompareAndUpdate merges fields only while field still holds expected.
func (s *RedisStore) CompareAndUpdate(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return false, err
	}
	if err := checkField(field); err != nil {
		return false, err
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return false, err
	}

	swapped, err := s.mutate(ctx, collection, key, func(doc map[string]json.RawMessage, exists bool) (bool, error) {
		if !exists {
			return false, nil
		}
		if current, ok := lookupString(doc, field); !ok || current != expected {
			return false, nil
		}
		for _, f := range encoded {
			doc[f.name] = f.value
		}
		return true, nil
	})
	if err != nil {
		return false, fmt.Errorf("conditionally updating %s: %w", path, err)
	}
	return swapped, nil
}

// Increment adds delta to a numeric field and returns the new value.
func (s *RedisStore) Increment(ctx context.Context, path, field string, delta int64) (int64, error) {
	collection, key, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	if err := checkField(field); err != nil {
		return 0, err
	}

	var value int64
	found, err := s.mutate(ctx, collection, key, func(doc map[string]json.RawMessage, exists bool) (bool, error) {
		if !exists {
			return false, nil
		}
		var current float64
		if raw, ok := doc[field]; ok {
			if err := json.Unmarshal(raw, &current); err != nil {
				return false, fmt.Errorf("field %s is not numeric: %w", field, err)
			}
		}
		value = int64(current) + delta
		raw, _ := json.Marshal(value)
		doc[field] = raw
		return true, nil
	})
	if err != nil {
		return 0, fmt.Errorf("incrementing %s: %w", path, err)
	}
	if !found {
		return 0, fmt.Errorf("incrementing %s: %w", path, ErrNotFound)
	}
	return value, nil
}

// Ping checks that Redis answers.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// mutate runs fn against the current document inside a WATCH transaction and
// writes the document back when fn reports a change. It retries when another
// client modified the document first.
func (s *RedisStore) mutate(ctx context.Context, collection, key string, fn func(doc map[string]json.RawMessage, exists bool) (bool, error)) (bool, error) {
	docKey := s.docKey(collection, key)
	var changed bool

	txf := func(tx *redis.Tx) error {
		changed = false
		doc := map[string]json.RawMessage{}
		exists := true

		data, err := tx.Get(ctx, docKey).Bytes()
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		} else if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("decoding %s: %w", docKey, err)
		}

		write, err := fn(doc, exists)
		if err != nil || !write {
			return err
		}

		out, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey, out, 0)
			pipe.SAdd(ctx, s.indexKey(collection), key)
			return nil
		})
		if err == nil {
			changed = true
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, docKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, err
		}
		return changed, nil
	}
	return false, fmt.Errorf("transaction on %s aborted after %d retries", docKey, maxTxRetries)
}
