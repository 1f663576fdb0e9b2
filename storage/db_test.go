package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: %v, want ErrNotFound", err)
	}

	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("value = %q, want %q", got, "v")
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("has: ok=%v err=%v", ok, err)
	}

	// Mutating the returned slice must not corrupt the store.
	got[0] = 'x'
	again, err := db.Get([]byte("k"))
	if err != nil || string(again) != "v" {
		t.Fatalf("after mutation: %q err=%v", again, err)
	}

	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: %v, want ErrNotFound", err)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: %v, want ErrNotFound", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil || string(got) != "v" {
		t.Fatalf("get: %q err=%v", got, err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || ok {
		t.Fatalf("has deleted: ok=%v err=%v", ok, err)
	}
}
