package docstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// MemoryStore keeps documents in process. Transactions hold the store lock for
// their whole duration and apply buffered writes on success.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Document)}
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(collection, key)
}

func (s *MemoryStore) Set(ctx context.Context, collection, key string, doc Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	normalized, err := normalize(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, key, normalized)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, key string, fields Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merge(collection, key, normalized)
}

func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], key)
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, collection, key, field string, amount float64) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	doc, ok := docs[key]
	if !ok {
		s.put(collection, key, Document{field: amount})
		return nil
	}
	doc[field] = toFloat(doc[field]) + amount
	return nil
}

func (s *MemoryStore) QueryEqual(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	want, err := normalizeValue(value)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Snapshot
	for _, snap := range s.list(collection) {
		if got, ok := snap.Data[field]; ok && reflect.DeepEqual(got, want) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(collection), nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, w := range tx.writes {
		switch {
		case w.delete:
			delete(s.collections[w.collection], w.key)
		case w.merge:
			if err := s.merge(w.collection, w.key, w.doc); err != nil {
				return err
			}
		default:
			s.put(w.collection, w.key, w.doc)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) get(collection, key string) (Document, error) {
	doc, ok := s.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func (s *MemoryStore) put(collection, key string, doc Document) {
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		s.collections[collection] = docs
	}
	docs[key] = doc
}

func (s *MemoryStore) merge(collection, key string, fields Document) error {
	doc, ok := s.collections[collection][key]
	if !ok {
		return ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) list(collection string) []Snapshot {
	docs := s.collections[collection]
	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, Snapshot{Key: k, Data: copyDocument(docs[k])})
	}
	return out
}

type memoryWrite struct {
	collection string
	key        string
	doc        Document
	merge      bool
	delete     bool
}

type memoryTx struct {
	store  *MemoryStore
	writes []memoryWrite
}

func (tx *memoryTx) Get(collection, key string) (Document, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	if len(tx.writes) > 0 {
		return nil, ErrReadAfterWrite
	}
	return tx.store.get(collection, key)
}

func (tx *memoryTx) Set(collection, key string, doc Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	normalized, err := normalize(doc)
	if err != nil {
		return err
	}
	tx.writes = append(tx.writes, memoryWrite{collection: collection, key: key, doc: normalized})
	return nil
}

func (tx *memoryTx) Update(collection, key string, fields Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	if !tx.exists(collection, key) {
		return ErrNotFound
	}
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}
	tx.writes = append(tx.writes, memoryWrite{collection: collection, key: key, doc: normalized, merge: true})
	return nil
}

func (tx *memoryTx) Delete(collection, key string) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	tx.writes = append(tx.writes, memoryWrite{collection: collection, key: key, delete: true})
	return nil
}

// exists reports whether key will exist once the buffered writes are applied.
func (tx *memoryTx) exists(collection, key string) bool {
	_, ok := tx.store.collections[collection][key]
	for _, w := range tx.writes {
		if w.collection != collection || w.key != key {
			continue
		}
		ok = !w.delete
	}
	return ok
}

func copyDocument(doc Document) Document {
	out, err := normalize(doc)
	if err != nil {
		// Stored documents are always normalized, so this cannot fail.
		panic(err)
	}
	return out
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
