package kv

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/naveenvaja/ridit-webapp/internal/db"
)

type doc struct {
	Name   string         `json:"name"`
	Status string         `json:"status,omitempty"`
	Count  int64          `json:"count,omitempty"`
	Sub    map[string]any `json:"sub,omitempty"`
}

func sqliteStore(t *testing.T) Store {
	return NewSQLite(db.NewTestDB(t))
}

func redisStore(t *testing.T) Store {
	addr := os.Getenv("RIDIT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RIDIT_TEST_REDIS_ADDR not set")
	}
	key, _ := NewKey()
	s, err := NewRedis(context.Background(), RedisOptions{Addr: addr, Prefix: "ridit-test-" + key + ":"})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) { runStoreTests(t, sqliteStore) }

func TestRedisStore(t *testing.T) { runStoreTests(t, redisStore) }

func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		var d doc
		found, err := s.Get(context.Background(), "users/nobody", &d)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if found {
			t.Error("expected missing document")
		}
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if err := s.Set(ctx, "users/a", doc{Name: "Asha"}); err != nil {
			t.Fatalf("Set: %v", err)
		}
		var d doc
		found, err := s.Get(ctx, "users/a", &d)
		if err != nil || !found {
			t.Fatalf("Get: found=%v err=%v", found, err)
		}
		if d.Name != "Asha" {
			t.Errorf("expected name 'Asha', got %q", d.Name)
		}

		if err := s.Delete(ctx, "users/a"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		found, _ = s.Get(ctx, "users/a", &d)
		if found {
			t.Error("expected document to be deleted")
		}
	})

	t.Run("UpdateIsShallowMerge", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		s.Set(ctx, "users/a", doc{Name: "Asha", Status: "x", Sub: map[string]any{"a": "1", "b": "2"}})
		err := s.Update(ctx, "users/a", map[string]any{
			"status": "y",
			"sub":    map[string]any{"a": "3"},
		})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}

		var d doc
		s.Get(ctx, "users/a", &d)
		if d.Name != "Asha" || d.Status != "y" {
			t.Errorf("unexpected document after update: %+v", d)
		}
		if _, ok := d.Sub["b"]; ok {
			t.Error("expected nested object to be replaced, not merged")
		}
	})

	t.Run("UpdateCreatesMissing", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		if err := s.Update(ctx, "users/new", map[string]any{"name": "Ravi"}); err != nil {
			t.Fatalf("Update: %v", err)
		}
		var d doc
		found, _ := s.Get(ctx, "users/new", &d)
		if !found || d.Name != "Ravi" {
			t.Errorf("expected created document, got found=%v %+v", found, d)
		}
	})

	t.Run("CreateIsInsertOnly", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.Create(ctx, "phones/9876543210", doc{Name: "first"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if !created {
			t.Fatal("expected first create to succeed")
		}

		created, err = s.Create(ctx, "phones/9876543210", doc{Name: "second"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created {
			t.Error("expected second create to be refused")
		}

		var d doc
		s.Get(ctx, "phones/9876543210", &d)
		if d.Name != "first" {
			t.Errorf("expected original document kept, got %q", d.Name)
		}
		entries, _ := s.List(ctx, "phones")
		if len(entries) != 1 {
			t.Errorf("expected 1 indexed entry, got %d", len(entries))
		}

		s.Delete(ctx, "phones/9876543210")
		if created, _ := s.Create(ctx, "phones/9876543210", doc{Name: "third"}); !created {
			t.Error("expected create to succeed after delete")
		}
	})

	t.Run("PushAndList", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		k1, err := s.Push(ctx, "items", doc{Name: "one"})
		if err != nil {
			t.Fatalf("Push: %v", err)
		}
		k2, _ := s.Push(ctx, "items", doc{Name: "two"})
		if k1 == k2 {
			t.Fatal("expected distinct push keys")
		}
		s.Set(ctx, "users/u", doc{Name: "other collection"})

		entries, err := s.List(ctx, "items")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		// Push keys are time ordered.
		var first doc
		entries[0].Decode(&first)
		if entries[0].Key != k1 || first.Name != "one" {
			t.Errorf("expected first entry %s/one, got %s/%s", k1, entries[0].Key, first.Name)
		}
	})

	t.Run("CompareAndUpdate", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		s.Set(ctx, "items/i", doc{Name: "bottle", Status: "pending"})

		ok, err := s.CompareAndUpdate(ctx, "items/i", "status", "accepted", map[string]any{"status": "collected"})
		if err != nil {
			t.Fatalf("CompareAndUpdate: %v", err)
		}
		if ok {
			t.Error("expected mismatched compare to fail")
		}

		ok, _ = s.CompareAndUpdate(ctx, "items/i", "status", "pending", map[string]any{"status": "accepted"})
		if !ok {
			t.Error("expected matching compare to succeed")
		}

		var d doc
		s.Get(ctx, "items/i", &d)
		if d.Status != "accepted" || d.Name != "bottle" {
			t.Errorf("unexpected document: %+v", d)
		}

		ok, _ = s.CompareAndUpdate(ctx, "items/missing", "status", "pending", map[string]any{"status": "accepted"})
		if ok {
			t.Error("expected compare on missing document to fail")
		}
	})

	t.Run("CompareNestedField", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		s.Set(ctx, "users/c", doc{Name: "c", Sub: map[string]any{"expiry": "2020-01-01"}})
		ok, err := s.CompareAndUpdate(ctx, "users/c", "sub.expiry", "2020-01-01", map[string]any{"status": "inactive"})
		if err != nil || !ok {
			t.Fatalf("expected nested compare to succeed: ok=%v err=%v", ok, err)
		}
	})

	t.Run("Increment", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		s.Set(ctx, "users/c", doc{Name: "c"})
		n, err := s.Increment(ctx, "users/c", "count", 1)
		if err != nil {
			t.Fatalf("Increment: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1, got %d", n)
		}
		n, _ = s.Increment(ctx, "users/c", "count", 2)
		if n != 3 {
			t.Errorf("expected 3, got %d", n)
		}

		_, err = s.Increment(ctx, "users/missing", "count", 1)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("InvalidPaths", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		var d doc

		for _, p := range []string{"", "users", "users/", "/x", "users/a/b"} {
			if _, err := s.Get(ctx, p, &d); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("Get(%q): expected ErrInvalidPath, got %v", p, err)
			}
		}
		if err := s.Update(ctx, "users/a", map[string]any{`bad"field`: 1}); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath for bad field, got %v", err)
		}
	})
}

func TestSQLiteConcurrentCompareAndUpdate(t *testing.T) {
	s := NewSQLite(db.NewTestFileDB(t))
	ctx := context.Background()
	s.Set(ctx, "items/i", doc{Name: "bottle", Status: "pending"})

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndUpdate(ctx, "items/i", "status", "pending", map[string]any{"status": "accepted"})
			if err != nil {
				t.Errorf("CompareAndUpdate: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestSQLiteConcurrentIncrement(t *testing.T) {
	s := NewSQLite(db.NewTestFileDB(t))
	ctx := context.Background()
	s.Set(ctx, "users/c", doc{Name: "c"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Increment(ctx, "users/c", "count", 1); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}
	wg.Wait()

	var d doc
	s.Get(ctx, "users/c", &d)
	if d.Count != 10 {
		t.Errorf("expected count 10, got %d", d.Count)
	}
}

func TestSQLiteConcurrentCreate(t *testing.T) {
	s := NewSQLite(db.NewTestFileDB(t))
	ctx := context.Background()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Create(ctx, "emails/asha@example.com", doc{Name: "asha"})
			if err != nil {
				t.Errorf("Create: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}
