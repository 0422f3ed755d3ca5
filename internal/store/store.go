package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting and the value SQLite reports back once
// it is applied.
type pragma struct {
	name     string
	value    string
	reported string
}

// pragmas configure the verdict log for one writer (the monitor loop) and
// readers that inspect a run while it is recorded.
var pragmas = []pragma{
	{name: "journal_mode", value: "WAL", reported: "wal"},
	{name: "synchronous", value: "NORMAL", reported: "1"},
	{name: "busy_timeout", value: "5000", reported: "5000"},
	{name: "foreign_keys", value: "ON", reported: "1"},
}

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on top of schema.sql. Each one runs in its own
// transaction together with the user_version bump, so a failed upgrade
// leaves the log at the last complete version.
var migrations = []migration{
	{
		version: 1,
		name:    "verdicts hash index",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_verdicts_hash ON verdicts(hash)`,
	},
}

// schemaVersion is the user_version of a fully migrated log.
func schemaVersion() int { return migrations[len(migrations)-1].version }

// Store is the SQLite verdict log: the runs, the events each run accepted
// and the verdict of every cycle it evaluated.
type Store struct {
	db *sql.DB
}

// Open creates or opens the verdict log at path and brings its schema up
// to date. Opening an existing log is a no-op apart from the pragmas.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Verdicts are appended by a single monitor loop; one connection
	// keeps SQLite from returning SQLITE_BUSY to ourselves.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	steps := []struct {
		what string
		fn   func(*sql.DB) error
	}{
		{"connect to database", func(db *sql.DB) error { return db.Ping() }},
		{"apply pragmas", applyPragmas},
		{"apply schema", applySchema},
	}
	for _, step := range steps {
		if err := step.fn(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to %s: %w", step.what, err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for queries the Store does not cover.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := migrate(db, m); err != nil {
			return err
		}
	}
	return nil
}

func migrate(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.stmt); err != nil {
		return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("set user_version %d: %w", m.version, err)
	}
	return tx.Commit()
}

// pragmaValue reads the current value of a pragma as SQLite reports it.
func (s *Store) pragmaValue(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
