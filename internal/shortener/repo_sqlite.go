package shortener

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

// seq keeps rows in insertion order so "first match wins" is stable.
const (
	sqliteSchema = `
CREATE TABLE IF NOT EXISTS short_domains (
	seq                      INTEGER PRIMARY KEY AUTOINCREMENT,
	id                       TEXT    NOT NULL,
	name                     TEXT    NOT NULL DEFAULT '',
	domain                   TEXT    NOT NULL,
	active                   BOOLEAN NOT NULL DEFAULT 0,
	can_create_dynamic_links BOOLEAN NOT NULL DEFAULT 0,
	default_redirect_to      TEXT
);
CREATE TABLE IF NOT EXISTS short_links (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT    NOT NULL DEFAULT '',
	domain_id   TEXT    NOT NULL,
	"key"       TEXT    NOT NULL,
	redirect_to TEXT    NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT 0,
	active_from INTEGER,
	active_to   INTEGER
);`
)

// SQLiteDriverName picks the database/sql driver for url: libsql for remote
// Turso databases, the embedded sqlite driver otherwise.
func SQLiteDriverName(url string) string {
	if strings.HasPrefix(url, "libsql://") || strings.HasPrefix(url, "wss://") {
		return "libsql"
	}
	return "sqlite"
}

// SQLiteSource reads domains and links from a SQLite or libsql database.
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLiteSource opens and pings the database at url.
func OpenSQLiteSource(ctx context.Context, url string) (*SQLiteSource, error) {
	const op = "shortener.sqlite.Open"

	db, err := sql.Open(SQLiteDriverName(url), url)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errx.E(op, errx.Unavailable, err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func (s *SQLiteSource) Init(ctx context.Context) error {
	const op = "shortener.sqlite.Init"

	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (s *SQLiteSource) Domains(ctx context.Context) ([]Domain, error) {
	const op = "shortener.sqlite.Domains"

	return querySQLite(ctx, s.db, op, selectDomains, func(rows *sql.Rows) (Domain, error) {
		var d Domain
		err := rows.Scan(&d.ID, &d.Name, &d.Domain, &d.Active, &d.CanCreateDynamicLinks, &d.DefaultRedirectTo)
		return d, err
	})
}

func (s *SQLiteSource) Links(ctx context.Context) ([]Link, error) {
	const op = "shortener.sqlite.Links"

	return querySQLite(ctx, s.db, op, selectLinks, func(rows *sql.Rows) (Link, error) {
		var l Link
		err := rows.Scan(&l.Name, &l.DomainID, &l.Key, &l.RedirectTo, &l.Active, &l.ActiveFrom, &l.ActiveTo)
		return l, err
	})
}

// querySQLite reports query failures as Unavailable and rows that do not
// scan into T as Corrupt.
func querySQLite[T any](ctx context.Context, db *sql.DB, op, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, errx.E(op, errx.Corrupt, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}
	return out, nil
}
