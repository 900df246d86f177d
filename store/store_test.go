package store

import (
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func testStores(t *testing.T) map[string]ResponseStore {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]ResponseStore{
		"memory": NewMemStore(),
		"sqlite": sqlite,
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Open("static-v1"); err != nil {
				t.Fatal(err)
			}
			if err := s.Open("static-v1"); err != nil {
				t.Fatal(err)
			}
			names, err := s.Names()
			if err != nil {
				t.Fatal(err)
			}
			if len(names) != 1 || names[0] != "static-v1" {
				t.Fatalf("Names: %v", names)
			}
		})
	}
}

func TestMatchMissOnUnknownKey(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Open("static-v1")
			if _, ok, err := s.Match("static-v1", "GET:/nope"); err != nil || ok {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
			// matching against a store that was never opened is a miss, not an error
			if _, ok, err := s.Match("no-such-store", "GET:/nope"); err != nil || ok {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestPutOverwritesAndMatches(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			fetched := time.Now().Truncate(time.Second)
			if err := s.Put("runtime-v1", "GET:/patients", Entry{FetchedAt: fetched, Bytes: []byte("v1")}); err != nil {
				t.Fatal(err)
			}
			if err := s.Put("runtime-v1", "GET:/patients", Entry{FetchedAt: fetched, Bytes: []byte("v2")}); err != nil {
				t.Fatal(err)
			}
			entry, ok, err := s.Match("runtime-v1", "GET:/patients")
			if err != nil || !ok {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
			if string(entry.Bytes) != "v2" {
				t.Fatalf("Bytes: %s", entry.Bytes)
			}
			if !entry.FetchedAt.Equal(fetched) {
				t.Fatalf("FetchedAt: %v, want %v", entry.FetchedAt, fetched)
			}
		})
	}
}

func TestPutCreatesStore(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put("runtime-v1", "GET:/x", Entry{FetchedAt: time.Now(), Bytes: []byte("x")}); err != nil {
				t.Fatal(err)
			}
			names, err := s.Names()
			if err != nil {
				t.Fatal(err)
			}
			if len(names) != 1 || names[0] != "runtime-v1" {
				t.Fatalf("Names: %v", names)
			}
		})
	}
}

func TestDeleteEntry(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Put("static-v1", "GET:/a", Entry{FetchedAt: time.Now(), Bytes: []byte("a")})
			removed, err := s.Delete("static-v1", "GET:/a")
			if err != nil || !removed {
				t.Fatalf("removed=%v err=%v", removed, err)
			}
			if _, ok, _ := s.Match("static-v1", "GET:/a"); ok {
				t.Fatal("Entry still present after delete")
			}
			removed, err = s.Delete("static-v1", "GET:/a")
			if err != nil || removed {
				t.Fatalf("removed=%v err=%v on second delete", removed, err)
			}
		})
	}
}

func TestDeleteStoreRemovesEntries(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Put("static-v1", "GET:/a", Entry{FetchedAt: time.Now(), Bytes: []byte("a")})
			s.Put("static-v2", "GET:/a", Entry{FetchedAt: time.Now(), Bytes: []byte("a")})

			existed, err := s.DeleteStore("static-v1")
			if err != nil || !existed {
				t.Fatalf("existed=%v err=%v", existed, err)
			}
			if _, ok, _ := s.Match("static-v1", "GET:/a"); ok {
				t.Fatal("Entry survived store deletion")
			}
			if _, ok, _ := s.Match("static-v2", "GET:/a"); !ok {
				t.Fatal("Other store lost its entry")
			}

			names, _ := s.Names()
			sort.Strings(names)
			if len(names) != 1 || names[0] != "static-v2" {
				t.Fatalf("Names: %v", names)
			}

			existed, err = s.DeleteStore("static-v1")
			if err != nil || existed {
				t.Fatalf("existed=%v err=%v on second delete", existed, err)
			}
		})
	}
}
