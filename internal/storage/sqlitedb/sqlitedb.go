// Package sqlitedb opens the site's SQLite database and keeps its schema
// current. Consent grants and notifications share the one handle.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/sanctuaryweb/site/internal/storage/sqlitedb/migrations"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

const migrationTable = "schema_migrations"

const pragmas = "?_pragma=journal_mode(WAL)" +
	"&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(1)"

// Open opens (creating if needed) the database at path, verifies the
// connection and applies the embedded migrations.
func Open(ctx context.Context, dbPath string) (*sql.DB, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, xerrors.New("sqlitedb: database path is required")
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+pragmas)
	if err != nil {
		return nil, xerrors.Wrap(err, "open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(err, "ping sqlite db")
	}
	if err := ApplyMigrations(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(err, "run migrations")
	}
	return db, nil
}

// ApplyMigrations runs every *.sql file under root in name order, each at
// most once. Applied files are recorded in schema_migrations. Only the
// "-- +migrate Up" section of a file is executed.
func ApplyMigrations(ctx context.Context, db *sql.DB, fsys fs.FS, root string) error {
	if db == nil {
		return xerrors.New("sqlitedb: db is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return xerrors.Wrap(err, "read migrations dir")
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return xerrors.Wrap(err, "ensure migration table")
	}

	for _, name := range files {
		applied, err := isApplied(ctx, db, name)
		if err != nil {
			return xerrors.Wrapf(err, "check migration %s", name)
		}
		if applied {
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(root, name))
		if err != nil {
			return xerrors.Wrapf(err, "read migration %s", name)
		}
		up := UpSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		if err := applyOne(ctx, db, name, up); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, name, up string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrapf(err, "begin migration %s", name)
	}
	if _, err := tx.ExecContext(ctx, up); err != nil && !isAlreadyExists(err) {
		_ = tx.Rollback()
		return xerrors.Wrapf(err, "exec migration %s", name)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO `+migrationTable+` (name, applied_at) VALUES (?, ?)`,
		name, ToMillis(time.Now()),
	); err != nil {
		_ = tx.Rollback()
		return xerrors.Wrapf(err, "record migration %s", name)
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Wrapf(err, "commit migration %s", name)
	}
	return nil
}

// UpSection returns the SQL between "-- +migrate Up" and "-- +migrate Down".
// Content without an Up marker is returned whole.
func UpSection(content string) string {
	const upMark, downMark = "-- +migrate Up", "-- +migrate Down"
	i := strings.Index(content, upMark)
	if i == -1 {
		return content
	}
	rest := content[i+len(upMark):]
	if j := strings.Index(rest, downMark); j != -1 {
		return rest[:j]
	}
	return rest
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

// IsConstraint reports whether err is a primary key or unique violation.
func IsConstraint(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// ToMillis is the storage representation of timestamps.
func ToMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

// FromMillis reverses ToMillis.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// NullMillis maps an optional timestamp to a nullable column value.
func NullMillis(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ToMillis(*t), Valid: true}
}

// TimePtr maps a nullable column back to an optional timestamp.
func TimePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := FromMillis(v.Int64)
	return &t
}
