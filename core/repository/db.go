package repository

import (
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// DB wraps the shared database handle
type DB struct {
	*sql.DB
}

// NewDB opens a Postgres connection and verifies it is reachable
func NewDB(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db}, nil
}
