package consent

import (
	"context"
	"database/sql"
	"time"

	"github.com/sanctuaryweb/site/internal/storage/sqlitedb"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

// SQLStore keeps grants in the consent_grants table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Load(ctx context.Context, visitorID string) (map[Category]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category FROM consent_grants WHERE visitor_id = ?`, visitorID)
	if err != nil {
		return nil, xerrors.Wrap(err, "query consent grants")
	}
	defer rows.Close()

	out := make(map[Category]bool)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, xerrors.Wrap(err, "scan consent grant")
		}
		// rows for categories that were since removed are ignored
		if _, ok := registry[Category(c)]; ok {
			out[Category(c)] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err, "iterate consent grants")
	}
	return out, nil
}

func (s *SQLStore) Grant(ctx context.Context, visitorID string, c Category, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO consent_grants (visitor_id, category, granted_at) VALUES (?, ?, ?)`,
		visitorID, string(c), sqlitedb.ToMillis(at))
	if err != nil {
		return xerrors.Wrapf(err, "insert consent grant %s", c)
	}
	return nil
}
