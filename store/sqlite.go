package store

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is a ResponseStore backed by a SQLite database.
// A single database holds all named stores.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore creates a new store with the given filename as the db.
// If the filename is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) (SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteStore{}, err
	}
	statements := []string{
		"CREATE TABLE IF NOT EXISTS stores (name TEXT PRIMARY KEY)",
		"CREATE TABLE IF NOT EXISTS responses (store TEXT, key TEXT, fetched_at INTEGER, bytes BLOB, PRIMARY KEY (store, key))",
		"PRAGMA journal_mode=WAL",
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			return SQLiteStore{}, err
		}
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteStore) Open(name string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR IGNORE INTO stores (name) VALUES (?)", name)
	return err
}

func (s SQLiteStore) Match(name, key string) (Entry, bool, error) {
	var fetchedAt int64
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT fetched_at, bytes FROM responses WHERE store = ? AND key = ?",
		name, key,
	).Scan(&fetchedAt, &bytes)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{
		Key:       key,
		FetchedAt: time.Unix(fetchedAt, 0),
		Bytes:     bytes,
	}, true, nil
}

func (s SQLiteStore) Put(name, key string, entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("INSERT OR IGNORE INTO stores (name) VALUES (?)", name); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO responses (store, key, fetched_at, bytes) VALUES (?, ?, ?, ?)",
		name, key, entry.FetchedAt.Unix(), entry.Bytes,
	)
	return err
}

func (s SQLiteStore) Delete(name, key string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.Exec("DELETE FROM responses WHERE store = ? AND key = ?", name, key)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (s SQLiteStore) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM stores")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s SQLiteStore) DeleteStore(name string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	result, err := s.db.Exec("DELETE FROM stores WHERE name = ?", name)
	if err != nil {
		return false, err
	}
	if _, err := s.db.Exec("DELETE FROM responses WHERE store = ?", name); err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Close closes the underlying database.
func (s SQLiteStore) Close() error {
	return s.db.Close()
}
