package store

import "time"

// ResponseStore is the storage capability required by the cache worker.
// It manages named stores of serialized HTTP responses, keyed by request
// identity. Multiple named stores may coexist (e.g. a static-asset store
// and a runtime store); stores are created explicitly with Open or
// implicitly on first Put.
//
// Implementations must be thread-safe!
type ResponseStore interface {
	// Open creates the named store if it does not exist yet.
	// Opening an existing store is a no-op.
	Open(name string) error
	// Match returns the entry stored under the given key in the named store.
	// The boolean indicates whether a usable entry was found.
	Match(name, key string) (Entry, bool, error)
	// Put stores the entry under the given key in the named store,
	// overwriting any previous entry for that key.
	// The store is created if it does not exist.
	Put(name, key string, entry Entry) error
	// Delete removes a single entry from the named store.
	// It reports whether an entry was removed.
	Delete(name, key string) (bool, error)
	// Names returns the names of all existing stores.
	Names() ([]string, error)
	// DeleteStore removes the named store together with all its entries.
	// It reports whether the store existed.
	DeleteStore(name string) (bool, error)
}

// Entry is a single stored response snapshot.
// There is no expiry: entries live until overwritten or deleted.
type Entry struct {
	// Key is the request identity the snapshot was stored under.
	Key string
	// FetchedAt is the time the snapshot was fetched from the network.
	FetchedAt time.Time
	// Bytes is the serialized HTTP response.
	Bytes []byte
}
