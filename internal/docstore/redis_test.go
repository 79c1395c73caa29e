package docstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisStoreSuite(t *testing.T) {
	store, _ := newRedisTestStore(t)
	runStoreSuite(t, store, testNamespace())
}

func TestRedisStoreKeepsIndex(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisTestStore(t)

	require.NoError(t, store.Set(ctx, "users", "u1", Document{"username": "ana"}))
	ok, err := mr.SIsMember("idx:users", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	raw, err := mr.Get("doc:users/u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"ana"}`, raw)

	require.NoError(t, store.Delete(ctx, "users", "u1"))
	assert.False(t, mr.Exists("doc:users/u1"))
	ok, err = mr.SIsMember("idx:users", "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisListSkipsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisTestStore(t)

	require.NoError(t, store.Set(ctx, "users", "u1", Document{"username": "ana"}))
	_, err := mr.SetAdd("idx:users", "ghost")
	require.NoError(t, err)

	snaps, err := store.List(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, snapshotKeys(snaps))
}

func TestRedisTransactionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisTestStore(t)
	require.NoError(t, store.Set(ctx, "counters", "c", Document{"n": float64(1)}))

	attempts := 0
	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		attempts++
		doc, err := tx.Get("counters", "c")
		if err != nil {
			return err
		}
		if attempts == 1 {
			// Another client writes the watched key before EXEC.
			if err := store.Set(ctx, "counters", "c", Document{"n": float64(10)}); err != nil {
				return err
			}
		}
		doc["n"] = toFloat(doc["n"]) + 1
		return tx.Set("counters", "c", doc)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	doc, err := store.Get(ctx, "counters", "c")
	require.NoError(t, err)
	assert.Equal(t, float64(11), doc["n"])
}

func TestRedisTransactionMergesStagedUpdates(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisTestStore(t)

	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Set("users", "u1", Document{"username": "ana"}); err != nil {
			return err
		}
		if err := tx.Update("users", "u1", Document{"timezone": "UTC"}); err != nil {
			return err
		}
		if err := tx.Delete("users", "u2"); err != nil {
			return err
		}
		return tx.Update("users", "u2", Document{"a": "b"})
	})
	require.ErrorIs(t, err, ErrNotFound)

	err = store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Set("users", "u1", Document{"username": "ana"}); err != nil {
			return err
		}
		return tx.Update("users", "u1", Document{"timezone": "UTC"})
	})
	require.NoError(t, err)

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, Document{"username": "ana", "timezone": "UTC"}, doc)
}
