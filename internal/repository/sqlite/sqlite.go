// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. Perfect for:
// - Single-server deployments (which is most apps, honestly)
// - Development and testing (use ":memory:" for an in-memory DB)
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code — no C compiler needed, works everywhere Go works.
//
// SCHEMA:
// The User↔Group relation is stored once, in the group_members join table.
// A user's group ids and a group's member ids are both derived from it on
// load, so the two in-memory sides can never disagree about what is stored.
package sqlite

import (
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The underscore import `_ "modernc.org/sqlite"` is a "side-effect only" import.
	// The sqlite package's init() function registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"

	"github.com/sakif/roster/internal/model"
)

// DB wraps a sql.DB connection pool. Repository implementations hang off it
// via the Users() and Groups() accessors so each interface gets its own
// receiver type while sharing one pool.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/roster.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
func New(dbPath string) (*DB, error) {
	// sql.Open() does NOT actually open a connection — it just creates a pool
	// manager. Ping() forces an immediate connection so a bad path or
	// permissions issue surfaces here instead of on the first query.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL (Write-Ahead Logging) mode:
	// Default SQLite locks the entire database during writes. WAL allows
	// concurrent reads WHILE a write is happening — needed once multiple
	// requests hit the store at the same time.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite (backwards compatibility).
	// We need them ON: group_members rows must die with their user or group.
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

// Close closes the database connection pool.
// Wherever you call New(), immediately defer Close().
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the UserRepository implementation backed by this pool.
func (db *DB) Users() *UserStore {
	return &UserStore{db: db}
}

// Groups returns the GroupRepository implementation backed by this pool.
func (db *DB) Groups() *GroupStore {
	return &GroupStore{db: db}
}

// migrate creates the schema and seeds the reserved groups.
// CREATE TABLE IF NOT EXISTS keeps it safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			username    TEXT NOT NULL UNIQUE,
			secret      TEXT NOT NULL DEFAULT '',
			first_name  TEXT NOT NULL DEFAULT '',
			middle_name TEXT NOT NULL DEFAULT '',
			last_name   TEXT NOT NULL DEFAULT '',
			nickname    TEXT NOT NULL DEFAULT '',
			pronouns    TEXT NOT NULL DEFAULT '',
			bio         TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS user_roles (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role    TEXT NOT NULL,
			PRIMARY KEY (user_id, role)
		);

		CREATE TABLE IF NOT EXISTS groups (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			short_name TEXT NOT NULL,
			long_name  TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS group_members (
			group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
			user_id  INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (group_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_group_members_user_id ON group_members(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}

	// Seed the reserved groups. They pre-exist for the lifetime of the
	// system; INSERT OR IGNORE makes re-running the migration harmless.
	//
	// NOTE ON id 0: SQLite's AUTOINCREMENT only ever hands out ids above the
	// largest ever used, so explicitly inserting 0 and 1 here doesn't
	// collide with ordinary groups created later.
	_, err = db.conn.Exec(`
		INSERT OR IGNORE INTO groups (id, short_name, long_name) VALUES
			(?, 'Teaching Staff', 'Teaching Staff'),
			(?, 'Members Without a Group', 'Members Without a Group');
	`, model.TeachingStaffGroupID, model.MembersWithoutAGroupID)
	if err != nil {
		return fmt.Errorf("seeding reserved groups: %w", err)
	}

	return nil
}
