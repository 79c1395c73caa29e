// Package docstore is the document database behind every service: keyed JSON-like
// documents grouped in collections, with single-document atomic increments,
// field-equality queries and multi-document transactions.
//
// Collections use Firestore's slash syntax, so per-user sub-collections look like
// "users/{uid}/streaks". Keys never contain a slash.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("document not found")
	// ErrReadAfterWrite is returned when a transaction reads after it has written.
	// Firestore rejects that ordering, so every backend does.
	ErrReadAfterWrite = errors.New("transaction read after write")
	ErrTooManyRetries = errors.New("transaction retries exhausted")
	ErrInvalidPath    = errors.New("invalid collection or key")
)

// Document is the stored form of a record. Numbers come back as float64 or int64
// depending on the backend; use Decode to get a typed value.
type Document map[string]any

// Snapshot is a document together with its key.
type Snapshot struct {
	Key  string
	Data Document
}

// Store is implemented by the memory, Firestore, PostgreSQL and Redis backends.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, doc Document) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, collection, key string, fields Document) error
	// Delete is a no-op for absent documents.
	Delete(ctx context.Context, collection, key string) error
	// Increment adds amount to a numeric field, creating the field or the
	// document when absent.
	Increment(ctx context.Context, collection, key, field string, amount float64) error
	QueryEqual(ctx context.Context, collection, field string, value any) ([]Snapshot, error)
	List(ctx context.Context, collection string) ([]Snapshot, error)
	// RunTransaction runs fn atomically. fn may be invoked more than once when the
	// backend detects a conflicting write, so it must not have side effects outside tx.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}

// Tx is the view of the store inside RunTransaction. All reads must come before
// the first write.
type Tx interface {
	Get(collection, key string) (Document, error)
	Set(collection, key string, doc Document) error
	Update(collection, key string, fields Document) error
	Delete(collection, key string) error
}

// Path joins collection segments: Path("users", uid, "streaks").
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

func checkPath(collection, key string) error {
	if collection == "" || strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") {
		return fmt.Errorf("%w: collection %q", ErrInvalidPath, collection)
	}
	if key == "" || strings.Contains(key, "/") {
		return fmt.Errorf("%w: key %q", ErrInvalidPath, key)
	}
	return nil
}

// maxTxAttempts bounds optimistic retries for backends that do not retry themselves.
const maxTxAttempts = 5
