package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore maps the Store contract onto Cloud Firestore. Firestore retries
// transactions on contention itself.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) doc(collection, key string) (*firestore.DocumentRef, error) {
	if err := checkPath(collection, key); err != nil {
		return nil, err
	}
	return s.client.Collection(collection).Doc(key), nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string) (Document, error) {
	ref, err := s.doc(collection, key)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, firestoreErr("get", err)
	}
	return snap.Data(), nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, key string, doc Document) error {
	ref, err := s.doc(collection, key)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, map[string]any(doc)); err != nil {
		return firestoreErr("set", err)
	}
	return nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, key string, fields Document) error {
	ref, err := s.doc(collection, key)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, toUpdates(fields)); err != nil {
		return firestoreErr("update", err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, key string) error {
	ref, err := s.doc(collection, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return firestoreErr("delete", err)
	}
	return nil
}

func (s *FirestoreStore) Increment(ctx context.Context, collection, key, field string, amount float64) error {
	ref, err := s.doc(collection, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]any{field: firestore.Increment(amount)}, firestore.MergeAll)
	if err != nil {
		return firestoreErr("increment", err)
	}
	return nil
}

func (s *FirestoreStore) QueryEqual(ctx context.Context, collection, field string, value any) ([]Snapshot, error) {
	snaps, err := s.client.Collection(collection).Where(field, "==", value).Documents(ctx).GetAll()
	if err != nil {
		return nil, firestoreErr("query", err)
	}
	return toSnapshots(snaps), nil
}

func (s *FirestoreStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	snaps, err := s.client.Collection(collection).Documents(ctx).GetAll()
	if err != nil {
		return nil, firestoreErr("list", err)
	}
	return toSnapshots(snaps), nil
}

func (s *FirestoreStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var fnErr error
	err := s.client.RunTransaction(ctx, func(ctx context.Context, t *firestore.Transaction) error {
		fnErr = fn(ctx, &firestoreTx{store: s, tx: t})
		return fnErr
	})
	return transactionErr(fnErr, err)
}

// transactionErr returns fn's own error untouched and maps errors raised while
// committing, such as an Update of a document that does not exist.
func transactionErr(fnErr, err error) error {
	if err == nil {
		return nil
	}
	if fnErr != nil && errors.Is(err, fnErr) {
		return err
	}
	return firestoreErr("transaction", err)
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreTx struct {
	store *FirestoreStore
	tx    *firestore.Transaction
	wrote bool
}

func (t *firestoreTx) Get(collection, key string) (Document, error) {
	ref, err := t.store.doc(collection, key)
	if err != nil {
		return nil, err
	}
	if t.wrote {
		return nil, ErrReadAfterWrite
	}
	snap, err := t.tx.Get(ref)
	if err != nil {
		return nil, firestoreErr("tx get", err)
	}
	return snap.Data(), nil
}

func (t *firestoreTx) Set(collection, key string, doc Document) error {
	ref, err := t.store.doc(collection, key)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.tx.Set(ref, map[string]any(doc))
}

func (t *firestoreTx) Update(collection, key string, fields Document) error {
	ref, err := t.store.doc(collection, key)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.tx.Update(ref, toUpdates(fields))
}

func (t *firestoreTx) Delete(collection, key string) error {
	ref, err := t.store.doc(collection, key)
	if err != nil {
		return err
	}
	t.wrote = true
	return t.tx.Delete(ref)
}

func toUpdates(fields Document) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: v})
	}
	return updates
}

func toSnapshots(snaps []*firestore.DocumentSnapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, Snapshot{Key: snap.Ref.ID, Data: snap.Data()})
	}
	return out
}

func firestoreErr(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return fmt.Errorf("firestore %s: %w", op, err)
}
