package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"shapemap/internal/model"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = CloseIfSupported(store)
	})

	if _, ok, err := store.GetCheckpoint(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing checkpoint, got ok=%v err=%v", ok, err)
	}

	first := NewCheckpoint("run-b", 0, []model.FunctionRecord{
		{Name: "ShapeMapA", Kind: "PiecewisePolynomial", Payload: []byte(`{"a":1}`)},
	})
	second := NewCheckpoint("run-a", 2.5, nil)
	for _, c := range []model.Checkpoint{first, second} {
		if err := store.SaveCheckpoint(ctx, c); err != nil {
			t.Fatalf("save %s: %v", c.RunID, err)
		}
	}

	loaded, ok, err := store.GetCheckpoint(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get checkpoint: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(first, loaded) {
		t.Fatalf("unexpected checkpoint: %+v", loaded)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if !reflect.DeepEqual([]string{"run-a", "run-b"}, runs) {
		t.Fatalf("unexpected runs: %v", runs)
	}

	updated := NewCheckpoint("run-b", 7, nil)
	if err := store.SaveCheckpoint(ctx, updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, _, err = store.GetCheckpoint(ctx, "run-b")
	if err != nil || loaded.Time != 7 {
		t.Fatalf("expected overwritten checkpoint, got %+v err=%v", loaded, err)
	}

	if err := store.DeleteCheckpoint(ctx, "run-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	runs, err = store.ListRuns(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("unexpected runs after delete: %v err=%v", runs, err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	exerciseStore(t, NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db")))
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	store := NewSQLiteStore(path)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveCheckpoint(ctx, NewCheckpoint("run-1", 1, nil)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := store.SaveCheckpoint(ctx, NewCheckpoint("run-2", 1, nil)); err == nil {
		t.Fatal("expected error after close")
	}

	reopened := NewSQLiteStore(path)
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, ok, err := reopened.GetCheckpoint(ctx, "run-1"); err != nil || !ok {
		t.Fatalf("expected persisted checkpoint: ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected sqlite path error")
	}
}

func TestNewStore(t *testing.T) {
	store, err := NewStore("memory", "")
	if err != nil || store == nil {
		t.Fatalf("new memory store: %v", err)
	}
	if _, err := NewStore("sqlite", filepath.Join(t.TempDir(), "s.db")); err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if _, err := NewStore("unknown", ""); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestNewStoreDefaults(t *testing.T) {
	store, err := NewStore("", "")
	if err != nil {
		t.Fatalf("new default store: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("default store is %T, want *MemoryStore", store)
	}

	store, err = NewStore("sqlite", "")
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	sqlite, ok := store.(*SQLiteStore)
	if !ok {
		t.Fatalf("sqlite store is %T, want *SQLiteStore", store)
	}
	if sqlite.path != DefaultSQLitePath {
		t.Fatalf("sqlite path = %q, want %q", sqlite.path, DefaultSQLitePath)
	}
}
