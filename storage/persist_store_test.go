package storage

import (
	"path/filepath"
	"testing"

	"github.com/syndtr/goleveldb/leveldb"
)

func TestPersistenceStore_BasicOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	key := []byte("test-key")
	value := []byte("test-value")
	if err := ps.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, found, err := ps.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || string(got) != string(value) {
		t.Errorf("Get returned %q (found=%v), want %q", got, found, value)
	}

	if _, found, err = ps.Get([]byte("non-existent")); err != nil || found {
		t.Errorf("Get non-existent: found=%v err=%v", found, err)
	}

	if err := ps.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if ok, _ := ps.Has(key); ok {
		t.Error("Expected key to be deleted")
	}
}

func TestPersistenceStore_Prefix(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	if err != nil {
		t.Fatalf("Failed to create memory store: %v", err)
	}
	defer ps.Close()

	batch := new(leveldb.Batch)
	batch.Put([]byte("a:2"), []byte("two"))
	batch.Put([]byte("a:1"), []byte("one"))
	batch.Put([]byte("b:1"), []byte("other"))
	if err := ps.Write(batch); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	kvs, err := ps.GetWithPrefix([]byte("a:"))
	if err != nil {
		t.Fatalf("GetWithPrefix failed: %v", err)
	}
	if len(kvs) != 2 {
		t.Fatalf("GetWithPrefix returned %d pairs, want 2", len(kvs))
	}
	if string(kvs[0][0]) != "a:1" || string(kvs[1][1]) != "two" {
		t.Errorf("unexpected order: %q", kvs)
	}
}

func TestPersistenceStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	ps, err := NewPersistenceStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ps.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := ps.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ps, err = NewPersistenceStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ps.Close()
	if ps.Path() != path {
		t.Errorf("Path() = %q", ps.Path())
	}
	if v, ok, _ := ps.Get([]byte("k")); !ok || string(v) != "v" {
		t.Errorf("value lost across reopen: %q %v", v, ok)
	}
}
