// Package sqlstore opens the single local database file that backs both
// the slot store and the graph store, the way the teacher's
// pkg/storage/sqlite client opens its own file for vector rows. Slots,
// entities, and relationships are three tables in this one file, per
// spec §6 "Persistent layout".
package sqlstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if necessary) the sqlite database at path with
// write-ahead journaling and foreign-key enforcement, per spec §5
// ("opened once per process with write-ahead journaling and foreign-key
// enforcement; it is the only writer in this process").
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	// A single-writer file store; one connection avoids SQLITE_BUSY on
	// concurrent writers from within this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	return db, nil
}
