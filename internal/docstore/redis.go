package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a JSON string under "doc:{collection}/{key}"
// and the keys of a collection in the set "idx:{collection}". Transactions use
// WATCH/MULTI and are retried when a watched key changes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(collection, key string) string { return "doc:" + collection + "/" + key }

func indexKey(collection string) string { return "idx:" + collection }

func (s *RedisStore) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	return redisGet(ctx, s.client, collection, key)
}

func (s *RedisStore) Set(ctx context.Context, collection, key string, doc Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, docKey(collection, key), raw, 0)
		pipe.SAdd(ctx, indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, collection, key string, fields Document) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Update(collection, key, fields)
	})
}

func (s *RedisStore) Delete(ctx context.Context, collection, key string) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(collection, key))
		pipe.SRem(ctx, indexKey(collection), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, collection, key, field string, amount float64) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.Get(collection, key)
		if errors.Is(err, ErrNotFound) {
			return tx.Set(collection, key, Document{field: amount})
		}
		if err != nil {
			return err
		}
		doc[field] = toFloat(doc[field]) + amount
		return tx.Set(collection, key, doc)
	})
}

func (s *RedisStore) QueryEqual(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	want, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	all, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	var out []Snapshot
	for _, snap := range all {
		if got, ok := snap.Data[field]; ok && reflect.DeepEqual(got, want) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	keys, err := s.client.SMembers(ctx, indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	if len(keys) == 0 {
		return []Snapshot{}, nil
	}
	sort.Strings(keys)

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = docKey(collection, k)
	}
	values, err := s.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}

	out := make([]Snapshot, 0, len(keys))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document: a concurrent delete.
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, keys[i], err)
		}
		out = append(out, Snapshot{Key: keys[i], Data: doc})
	}
	return out, nil
}

func (s *RedisStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{ctx: ctx, rtx: rtx}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			if len(tx.writes) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range tx.writes {
					if w.delete {
						pipe.Del(ctx, docKey(w.collection, w.key))
						pipe.SRem(ctx, indexKey(w.collection), w.key)
						continue
					}
					pipe.Set(ctx, docKey(w.collection, w.key), w.raw, 0)
					pipe.SAdd(ctx, indexKey(w.collection), w.key)
				}
				return nil
			})
			return err
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.Printf("RedisStore: watched key changed, retrying transaction (attempt %d)", attempt)
	}
	return ErrTooManyRetries
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

type redisWrite struct {
	collection string
	key        string
	raw        []byte
	delete     bool
}

type redisTx struct {
	ctx    context.Context
	rtx    *redis.Tx
	writes []redisWrite
	// staged holds the post-write value of documents touched by Set/Update so a
	// later Update in the same transaction merges onto it.
	staged map[string]Document
	// read caches watched documents; nil marks a key that does not exist.
	read   map[string]Document
}

func (t *redisTx) Get(collection, key string) (Document, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	if len(t.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	doc, err := t.load(collection, key)
	if err != nil {
		return nil, err
	}
	return copyDocument(doc), nil
}

// load watches and reads a document once per transaction. A miss is remembered
// as a nil entry so later lookups of the same key keep reporting ErrNotFound.
func (t *redisTx) load(collection, key string) (Document, error) {
	k := docKey(collection, key)
	if doc, ok := t.read[k]; ok {
		if doc == nil {
			return nil, ErrNotFound
		}
		return doc, nil
	}
	if err := t.rtx.Watch(t.ctx, k).Err(); err != nil {
		return nil, fmt.Errorf("failed to watch %s/%s: %w", collection, key, err)
	}
	doc, err := redisGet(t.ctx, t.rtx, collection, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if t.read == nil {
		t.read = make(map[string]Document)
	}
	t.read[k] = doc
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (t *redisTx) Set(collection, key string, doc Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	return t.stage(collection, key, doc)
}

func (t *redisTx) Update(collection, key string, fields Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	base, ok := t.staged[docKey(collection, key)]
	if !ok {
		// WATCH is still allowed here since writes are only queued until EXEC.
		doc, err := t.load(collection, key)
		if err != nil {
			return err
		}
		base = doc
	}
	if base == nil {
		return ErrNotFound
	}
	merged := copyDocument(base)
	for f, v := range fields {
		merged[f] = v
	}
	return t.stage(collection, key, merged)
}

func (t *redisTx) Delete(collection, key string) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	if t.staged == nil {
		t.staged = make(map[string]Document)
	}
	t.staged[docKey(collection, key)] = nil
	t.writes = append(t.writes, redisWrite{collection: collection, key: key, delete: true})
	return nil
}

func (t *redisTx) stage(collection, key string, doc Document) error {
	normalized, err := normalize(doc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	if t.staged == nil {
		t.staged = make(map[string]Document)
	}
	t.staged[docKey(collection, key)] = normalized
	t.writes = append(t.writes, redisWrite{collection: collection, key: key, raw: raw})
	return nil
}

func redisGet(ctx context.Context, c redis.Cmdable, collection, key string) (Document, error) {
	raw, err := c.Get(ctx, docKey(collection, key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, key, err)
	}
	return doc, nil
}
