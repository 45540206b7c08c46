package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/iwvelando/payoff/pkg/constants"
	"go.uber.org/zap"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
	}

	sqliteStore, err := NewSQLiteStore(zap.NewNop(), filepath.Join(t.TempDir(), "payoff.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	stores["sqlite"] = sqliteStore

	if addr := os.Getenv("PAYOFF_TEST_REDIS_ADDR"); addr != "" {
		prefix := fmt.Sprintf("payoff-test-%s", t.Name())
		redisStore, err := NewRedisStore(context.Background(), zap.NewNop(), addr, "", 0, prefix)
		if err != nil {
			t.Fatalf("failed to open redis store: %v", err)
		}
		t.Cleanup(func() {
			keys, _ := redisStore.client.Keys(context.Background(), prefix+":*").Result()
			if len(keys) > 0 {
				redisStore.client.Del(context.Background(), keys...)
			}
		})
		stores["redis"] = redisStore
	}

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func doc(user, id, data string) Document {
	return Document{Key: Key{UserID: user, Collection: "debts", ID: id}, Data: json.RawMessage(data)}
}

func sameJSON(t *testing.T, got, want []byte) bool {
	t.Helper()
	var g, w interface{}
	if err := json.Unmarshal(got, &g); err != nil {
		t.Fatalf("invalid JSON %s: %v", got, err)
	}
	if err := json.Unmarshal(want, &w); err != nil {
		t.Fatalf("invalid JSON %s: %v", want, err)
	}
	return reflect.DeepEqual(g, w)
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			put, err := s.Put(ctx, doc("alice", "card", `{"name":"Visa","principal":1000}`))
			if err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if put.UpdatedAt.IsZero() {
				t.Error("Put() did not stamp UpdatedAt")
			}

			got, err := s.Get(ctx, put.Key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !sameJSON(t, got.Data, put.Data) {
				t.Errorf("Get() data = %s, expected %s", got.Data, put.Data)
			}
			if !got.UpdatedAt.Equal(put.UpdatedAt) {
				t.Errorf("Get() UpdatedAt = %v, expected %v", got.UpdatedAt, put.UpdatedAt)
			}

			if _, err := s.Put(ctx, doc("alice", "card", `{"name":"Visa","principal":800}`)); err != nil {
				t.Fatalf("Put() replace error = %v", err)
			}
			got, err = s.Get(ctx, put.Key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !sameJSON(t, got.Data, []byte(`{"name":"Visa","principal":800}`)) {
				t.Errorf("Get() after replace = %s", got.Data)
			}

			if _, err := s.Put(ctx, doc("bob", "card", `{"name":"Amex"}`)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			docs, err := s.List(ctx, "alice", "debts")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(docs) != 1 {
				t.Fatalf("List() returned %d documents for alice, expected 1", len(docs))
			}

			if err := s.Delete(ctx, put.Key); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := s.Get(ctx, put.Key); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get() after delete error = %v, expected ErrNotFound", err)
			}
			if err := s.Delete(ctx, put.Key); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete() error = %v, expected ErrNotFound", err)
			}
		})
	}
}

func TestStoreInvalidInput(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(ctx, doc("", "x", `{}`)); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Put() with empty user error = %v, expected ErrInvalidKey", err)
			}
			if _, err := s.Put(ctx, doc("alice", "x", `{not json`)); err == nil {
				t.Error("Put() with invalid JSON expected error")
			}
			if _, err := s.Get(ctx, Key{UserID: "alice", Collection: "debts"}); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Get() with empty id error = %v, expected ErrInvalidKey", err)
			}
			if _, err := s.List(ctx, "alice", ""); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("List() with empty collection error = %v, expected ErrInvalidKey", err)
			}
			if err := s.Commit(ctx, NewBatch()); !errors.Is(err, ErrEmptyBatch) {
				t.Errorf("Commit() of empty batch error = %v, expected ErrEmptyBatch", err)
			}
		})
	}
}

func TestStoreBatchCommit(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(ctx, doc("alice", "old", `{"name":"old"}`)); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			batch := NewBatch().
				Set(doc("alice", "a", `{"name":"a"}`)).
				Set(doc("alice", "b", `{"name":"b"}`)).
				Delete(Key{UserID: "alice", Collection: "debts", ID: "old"}).
				Delete(Key{UserID: "alice", Collection: "debts", ID: "missing"})
			if batch.Len() != 4 {
				t.Fatalf("batch.Len() = %d, expected 4", batch.Len())
			}
			if err := s.Commit(ctx, batch); err != nil {
				t.Fatalf("Commit() error = %v", err)
			}

			docs, err := s.List(ctx, "alice", "debts")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var ids []string
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			if !reflect.DeepEqual(ids, []string{"a", "b"}) {
				t.Errorf("List() ids = %v, expected [a b]", ids)
			}
		})
	}
}

func TestStoreBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			batch := NewBatch().
				Set(doc("alice", "a", `{"name":"a"}`)).
				Set(doc("alice", "", `{"name":"no id"}`))
			if err := s.Commit(ctx, batch); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("Commit() error = %v, expected ErrInvalidKey", err)
			}

			docs, err := s.List(ctx, "alice", "debts")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(docs) != 0 {
				t.Errorf("failed batch left %d documents behind", len(docs))
			}
		})
	}
}

func TestSQLiteStoreBatchRollsBackMidway(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(zap.NewNop(), filepath.Join(t.TempDir(), "payoff.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if _, err := s.Put(ctx, doc("alice", "keep", `{"name":"keep"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Fail the third statement of the transaction, after two have run.
	if _, err := s.db.ExecContext(ctx, `CREATE TRIGGER reject_blocked BEFORE INSERT ON documents
WHEN NEW.id = 'blocked'
BEGIN
	SELECT RAISE(ABORT, 'blocked document');
END`); err != nil {
		t.Fatalf("failed to create trigger: %v", err)
	}

	batch := NewBatch().
		Set(doc("alice", "a", `{"name":"a"}`)).
		Delete(Key{UserID: "alice", Collection: "debts", ID: "keep"}).
		Set(doc("alice", "blocked", `{"name":"blocked"}`))
	if err := s.Commit(ctx, batch); err == nil {
		t.Fatal("Commit() expected an error from the blocked document")
	}

	docs, err := s.List(ctx, "alice", "debts")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "keep" {
		t.Fatalf("expected only the original document after rollback, got %d documents", len(docs))
	}

	// The connection is usable again once the transaction is rolled back.
	if _, err := s.Put(ctx, doc("alice", "after", `{"name":"after"}`)); err != nil {
		t.Errorf("Put() after rollback error = %v", err)
	}
}

func TestRedisStoreBatchCancelled(t *testing.T) {
	addr := os.Getenv("PAYOFF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PAYOFF_TEST_REDIS_ADDR not set")
	}

	prefix := fmt.Sprintf("payoff-test-%s", t.Name())
	s, err := NewRedisStore(context.Background(), zap.NewNop(), addr, "", 0, prefix)
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch := NewBatch().
		Set(doc("alice", "a", `{"name":"a"}`)).
		Set(doc("alice", "b", `{"name":"b"}`))
	if err := s.Commit(ctx, batch); err == nil {
		t.Fatal("Commit() with a cancelled context expected an error")
	}

	docs, err := s.List(context.Background(), "alice", "debts")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("failed batch left %d documents behind", len(docs))
	}
}

func TestRedisHashKeyEscapesSegments(t *testing.T) {
	first := redisHashKey("payoff", "a:b", "c")
	second := redisHashKey("payoff", "a", "b:c")
	if first == second {
		t.Fatalf("distinct user and collection pairs share the key %q", first)
	}
	if got := redisHashKey("payoff", "alice", "debts"); got != "payoff:alice:debts" {
		t.Errorf("redisHashKey() = %q, expected payoff:alice:debts", got)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "payoff.db")

	first, err := NewSQLiteStore(nil, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if _, err := first.Put(ctx, doc("alice", "card", `{"name":"Visa"}`)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteStore(nil, path)
	if err != nil {
		t.Fatalf("reopen NewSQLiteStore() error = %v", err)
	}
	defer second.Close()

	if _, err := second.Get(ctx, Key{UserID: "alice", Collection: "debts", ID: "card"}); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}

func TestNewBackends(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, zap.NewNop(), Config{})
	if err != nil {
		t.Fatalf("New() default error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("New() default backend = %T, expected *MemoryStore", s)
	}

	s, err = New(ctx, nil, Config{Backend: constants.StoreBackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "p.db")})
	if err != nil {
		t.Fatalf("New() sqlite error = %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("New() sqlite backend = %T, expected *SQLiteStore", s)
	}
	_ = s.Close()

	if _, err := New(ctx, nil, Config{Backend: "cassandra"}); err == nil {
		t.Error("New() with unknown backend expected error")
	}
}
