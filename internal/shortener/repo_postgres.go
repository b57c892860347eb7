package shortener

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgQuerier is the subset of *pgxpool.Pool used by PostgresSource.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// seq keeps rows in insertion order so "first match wins" is stable.
const (
	createDomainsTable = `
CREATE TABLE IF NOT EXISTS short_domains (
	seq                      BIGSERIAL PRIMARY KEY,
	id                       TEXT    NOT NULL,
	name                     TEXT    NOT NULL DEFAULT '',
	domain                   TEXT    NOT NULL,
	active                   BOOLEAN NOT NULL DEFAULT FALSE,
	can_create_dynamic_links BOOLEAN NOT NULL DEFAULT FALSE,
	default_redirect_to      TEXT
)`

	createLinksTable = `
CREATE TABLE IF NOT EXISTS short_links (
	seq         BIGSERIAL PRIMARY KEY,
	name        TEXT    NOT NULL DEFAULT '',
	domain_id   TEXT    NOT NULL,
	"key"       TEXT    NOT NULL,
	redirect_to TEXT    NOT NULL,
	active      BOOLEAN NOT NULL DEFAULT FALSE,
	active_from BIGINT,
	active_to   BIGINT
)`

	selectDomains = `
SELECT id, name, domain, active, can_create_dynamic_links, default_redirect_to
FROM short_domains
ORDER BY seq`

	selectLinks = `
SELECT name, domain_id, "key", redirect_to, active, active_from, active_to
FROM short_links
ORDER BY seq`
)

// PostgresSource reads domains and links from PostgreSQL tables.
type PostgresSource struct {
	q pgQuerier
}

// NewPostgresSource creates a Source backed by q, usually a *pgxpool.Pool.
func NewPostgresSource(q pgQuerier) *PostgresSource {
	return &PostgresSource{q: q}
}

func (s *PostgresSource) Init(ctx context.Context) error {
	const op = "shortener.postgres.Init"

	for _, stmt := range []string{createDomainsTable, createLinksTable} {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return mapPostgresError(op, err)
		}
	}
	return nil
}

func (s *PostgresSource) Domains(ctx context.Context) ([]Domain, error) {
	const op = "shortener.postgres.Domains"

	rows, err := s.q.Query(ctx, selectDomains)
	if err != nil {
		return nil, mapPostgresError(op, err)
	}
	domains, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Domain, error) {
		var d Domain
		err := row.Scan(&d.ID, &d.Name, &d.Domain, &d.Active, &d.CanCreateDynamicLinks, &d.DefaultRedirectTo)
		return d, wrapScan(err)
	})
	if err != nil {
		return nil, mapPostgresError(op, err)
	}
	return domains, nil
}

func (s *PostgresSource) Links(ctx context.Context) ([]Link, error) {
	const op = "shortener.postgres.Links"

	rows, err := s.q.Query(ctx, selectLinks)
	if err != nil {
		return nil, mapPostgresError(op, err)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Link, error) {
		var l Link
		err := row.Scan(&l.Name, &l.DomainID, &l.Key, &l.RedirectTo, &l.Active, &l.ActiveFrom, &l.ActiveTo)
		return l, wrapScan(err)
	})
	if err != nil {
		return nil, mapPostgresError(op, err)
	}
	return links, nil
}
