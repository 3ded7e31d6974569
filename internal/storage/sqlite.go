package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/glebarez/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS local_storage (
	origin TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (origin, key)
)`

// SQLite is a file-backed Store. Several origins can share one file;
// each SQLite value only sees its own origin's keys.
type SQLite struct {
	db     *sql.DB
	origin string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path, origin string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", path, err)
	}
	// sqlite serializes writers anyway; one connection also keeps
	// ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping storage %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create storage schema: %w", err)
	}
	return &SQLite{db: db, origin: origin}, nil
}

func (s *SQLite) Get(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM local_storage WHERE origin = ? AND key = ?`, s.origin, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO local_storage (origin, key, value) VALUES (?, ?, ?)
		ON CONFLICT(origin, key) DO UPDATE SET value = excluded.value`, s.origin, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM local_storage WHERE origin = ? AND key = ?`, s.origin, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
