package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const redisUpdateRetries = 4

// Redis stores each collection as a hash of id -> JSON document and each
// key/value entry as a plain string key, all under a common prefix.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis-backed Database. prefix defaults to "sa".
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "sa"
	}
	return &Redis{redis: client, prefix: prefix}
}

func (r *Redis) collectionKey(collection string) string {
	return r.prefix + ":doc:" + collection
}

func (r *Redis) valueKey(key string) string {
	return r.prefix + ":kv:" + key
}

func (r *Redis) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	docs, err := r.scan(ctx, collection, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (r *Redis) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	return r.scan(ctx, collection, filter, 0)
}

func (r *Redis) scan(ctx context.Context, collection string, filter Filter, limit int) ([]Document, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	key := r.collectionKey(collection)

	if id, ok := filter["id"].(string); ok {
		data, err := r.redis.HGet(ctx, key, id).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		doc, err := decodeDocument(data)
		if err != nil {
			return nil, err
		}
		if !matches(doc, filter) {
			return nil, nil
		}
		return []Document{doc}, nil
	}

	all, err := r.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Document
	for _, id := range ids {
		doc, err := decodeDocument([]byte(all[id]))
		if err != nil {
			return nil, err
		}
		if !matches(doc, filter) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *Redis) Create(ctx context.Context, collection string, doc Document) error {
	id, err := DocumentID(doc)
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	created, err := r.redis.HSetNX(ctx, r.collectionKey(collection), id, data).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !created {
		return ErrDuplicateID
	}
	return nil
}

// Update merges under WATCH so concurrent patches to the same document are not lost.
func (r *Redis) Update(ctx context.Context, collection, id string, patch Document) error {
	key := r.collectionKey(collection)

	for i := 0; i < redisUpdateRetries; i++ {
		err := r.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.HGet(ctx, key, id).Bytes()
			if err != nil {
				return err
			}
			merged, err := mergeDocument(data, patch)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, id, merged)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}

	return fmt.Errorf("%w: update contention on %s/%s", ErrUnavailable, collection, id)
}

func (r *Redis) Remove(ctx context.Context, collection, id string) error {
	if err := r.redis.HDel(ctx, r.collectionKey(collection), id).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.valueKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.redis.Set(ctx, r.valueKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
