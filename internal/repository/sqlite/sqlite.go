// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — a single file inside the deployment, no
// separate server to run. The habit tracker is a single-instance API, so a
// file-backed store with WAL is plenty, and ":memory:" makes tests trivial.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which needs a C compiler and makes
// cross-compilation painful. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
package sqlite

import (
	"database/sql"
	"fmt"

	// Side-effect import: the driver registers itself with database/sql
	// under the name "sqlite" in its init().
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/habits.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests, lost on close)
//
// sql.Open does NOT actually connect — it creates a pool manager. Ping forces
// an immediate connection so a bad path surfaces here, not on the first query.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows a single writer, and a ":memory:" database exists per
	// connection — letting the pool fan out would hand some queries an empty
	// database. One connection serves both cases.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in progress — SQLite's
	// default journal mode locks the whole file during writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite for backwards compatibility.
	// activity_days references users, so turn them on.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer it next to New —
// closing flushes the WAL and releases the file lock.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it idempotent,
// which is enough at this scale — no migration tracking needed.
func (db *DB) migrate() error {
	// users: one row per GitHub account.
	// github_id is UNIQUE — each GitHub account maps to exactly one row.
	// email is UNIQUE but nullable; we store NULL (not '') when GitHub hides
	// the email, because SQLite's UNIQUE constraint ignores NULLs. Two users
	// without a public email must not collide.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			github_id  INTEGER NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			email      TEXT UNIQUE,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// activity_days: the per-date counters making up a user's track.
	// One row per (user, day); RecordActivity accumulates into it.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS activity_days (
			user_id             TEXT NOT NULL REFERENCES users(id),
			day                 TEXT NOT NULL,
			lines_created       INTEGER NOT NULL DEFAULT 0,
			lines_deleted       INTEGER NOT NULL DEFAULT 0,
			total_lines_changed INTEGER NOT NULL DEFAULT 0,
			files_created       INTEGER NOT NULL DEFAULT 0,
			files_deleted       INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, day)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating activity_days table: %w", err)
	}

	return nil
}
