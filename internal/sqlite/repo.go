// Package sqlite provides the sqlite-backed implementation of the skimmer
// store.
//
// It can be pointed at a different database file, but most often lives at
// $HOME/.skimmer/data.sqlite3.
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/skimmer/internal/migrations"
	"github.com/jdholdren/skimmer/internal/skimmer"
)

// Ensure Repo implements the storage surface.
var _ skimmer.Storage = Repo{}

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}

// Open connects to the database file at path, creating its directory if
// needed, and runs all migrations so the returned handle is ready to use.
// An empty path falls back to the default under the user's home directory.
func Open(path string) (*sqlx.DB, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("could not determine home directory: %w", err)
		}
		path = filepath.Join(home, ".skimmer", "data.sqlite3")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error creating storage directory: %w", err)
	}

	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}

	if err := migrations.Run(dbx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("error migrating: %s", err)
	}

	return dbx, nil
}

// OpenInMemory opens a migrated throwaway database, mostly for tests.
func OpenInMemory() (*sqlx.DB, error) {
	dbx, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("error opening in-memory database: %s", err)
	}
	// Each sqlite in-memory connection is its own database, so the pool
	// has to stay at one connection.
	dbx.SetMaxOpenConns(1)
	if err := migrations.Run(dbx); err != nil {
		dbx.Close()
		return nil, fmt.Errorf("error migrating: %s", err)
	}

	return dbx, nil
}
