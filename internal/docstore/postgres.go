package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentsSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (collection, key)
	)
`

// PostgresStore keeps every collection in a single JSONB table. Transactions
// run at SERIALIZABLE isolation and are retried on serialization failures.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, db *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, documentsSchema); err != nil {
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// querier is satisfied by both the pool and a pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	return pgGet(ctx, s.db, collection, key, false)
}

func (s *PostgresStore) Set(ctx context.Context, collection, key string, doc Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	return pgSet(ctx, s.db, collection, key, doc)
}

func (s *PostgresStore) Update(ctx context.Context, collection, key string, fields Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	return pgUpdate(ctx, s.db, collection, key, fields)
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	return pgDelete(ctx, s.db, collection, key)
}

func (s *PostgresStore) Increment(ctx context.Context, collection, key, field string, amount float64) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	query := `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, jsonb_build_object($3::text, $4::numeric), NOW())
		ON CONFLICT (collection, key)
		DO UPDATE SET
			data = documents.data || jsonb_build_object($3::text, COALESCE((documents.data->>$3)::numeric, 0) + $4::numeric),
			updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, collection, key, field, amount); err != nil {
		return fmt.Errorf("failed to increment %s/%s.%s: %w", collection, key, field, err)
	}
	return nil
}

func (s *PostgresStore) QueryEqual(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query filter: %w", err)
	}
	query := `
		SELECT key, data FROM documents
		WHERE collection = $1 AND data @> $2::jsonb
		ORDER BY key
	`
	return pgScanSnapshots(s.db.Query(ctx, query, collection, string(filter)))
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	query := `SELECT key, data FROM documents WHERE collection = $1 ORDER BY key`
	return pgScanSnapshots(s.db.Query(ctx, query, collection))
}

func (s *PostgresStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		log.Printf("PostgresStore: transaction conflict, retrying (attempt %d): %v", attempt, err)
	}
	return ErrTooManyRetries
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &postgresTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

type postgresTx struct {
	ctx   context.Context
	tx    pgx.Tx
	wrote bool
}

func (t *postgresTx) Get(collection, key string) (Document, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	if t.wrote {
		return nil, ErrReadAfterWrite
	}
	return pgGet(t.ctx, t.tx, collection, key, true)
}

func (t *postgresTx) Set(collection, key string, doc Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	t.wrote = true
	return pgSet(t.ctx, t.tx, collection, key, doc)
}

func (t *postgresTx) Update(collection, key string, fields Document) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	t.wrote = true
	return pgUpdate(t.ctx, t.tx, collection, key, fields)
}

func (t *postgresTx) Delete(collection, key string) error {
	if err := checkPath(collection, key); err != nil {
		return err
	}
	t.wrote = true
	return pgDelete(t.ctx, t.tx, collection, key)
}

func pgGet(ctx context.Context, q querier, collection, key string, forUpdate bool) (Document, error) {
	query := `SELECT data FROM documents WHERE collection = $1 AND key = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var raw []byte
	err := q.QueryRow(ctx, query, collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, key, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

func pgSet(ctx context.Context, q querier, collection, key string, doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	query := `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (collection, key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := q.Exec(ctx, query, collection, key, string(raw)); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, key, err)
	}
	return nil
}

func pgUpdate(ctx context.Context, q querier, collection, key string, fields Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	query := `
		UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND key = $2
	`
	result, err := q.Exec(ctx, query, collection, key, string(raw))
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, key, err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgDelete(ctx context.Context, q querier, collection, key string) error {
	_, err := q.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, key, err)
	}
	return nil
}

func pgScanSnapshots(rows pgx.Rows, err error) ([]Snapshot, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", key, err)
		}
		out = append(out, Snapshot{Key: key, Data: doc})
	}
	return out, rows.Err()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
