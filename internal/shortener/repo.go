package shortener

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

var (
	ErrDomainNotFound = errors.New("domain not found")
	ErrLinkNotFound   = errors.New("link not found")
)

// Source loads whole tables from persisted storage. Every call reads the
// current state of the backing store.
type Source interface {
	// Init creates empty tables if they do not exist yet. It is idempotent.
	Init(ctx context.Context) error
	Domains(ctx context.Context) ([]Domain, error)
	Links(ctx context.Context) ([]Link, error)
}

// Repository defines read access to domains and links.
// Lookups report a miss as an errx.NotFound error; any other error means the
// underlying table could not be loaded.
type Repository interface {
	ListDomains(ctx context.Context) ([]Domain, error)
	ListLinks(ctx context.Context) ([]Link, error)
	FindDomainByOrigin(ctx context.Context, origin string) (Domain, error)
	FindLinkByKey(ctx context.Context, key string) (Link, error)
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	// CacheTTL memoises each table for at most this long. Zero reloads the
	// table on every call.
	CacheTTL time.Duration
}

const tableKey = "table"

type repo struct {
	src     Source
	domains *expirable.LRU[string, []Domain]
	links   *expirable.LRU[string, []Link]
}

// NewRepository creates a Repository reading from src.
func NewRepository(src Source, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	r := &repo{src: src}
	// expirable treats a non-positive ttl as "never expire", so only build
	// the caches when a real TTL is configured.
	if config.CacheTTL > 0 {
		r.domains = expirable.NewLRU[string, []Domain](1, nil, config.CacheTTL)
		r.links = expirable.NewLRU[string, []Link](1, nil, config.CacheTTL)
	}
	return r
}

func loadTable[T any](ctx context.Context, cache *expirable.LRU[string, []T], load func(context.Context) ([]T, error)) ([]T, error) {
	if cache != nil {
		if rows, ok := cache.Get(tableKey); ok {
			return rows, nil
		}
	}
	rows, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Add(tableKey, rows)
	}
	return rows, nil
}

func (r *repo) ListDomains(ctx context.Context) ([]Domain, error) {
	const op = "shortener.repo.ListDomains"

	domains, err := loadTable(ctx, r.domains, r.src.Domains)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return domains, nil
}

func (r *repo) ListLinks(ctx context.Context) ([]Link, error) {
	const op = "shortener.repo.ListLinks"

	links, err := loadTable(ctx, r.links, r.src.Links)
	if err != nil {
		return nil, errx.E(op, errx.KindOf(err), err)
	}
	return links, nil
}

// FindDomainByOrigin returns the first domain whose host equals origin exactly.
func (r *repo) FindDomainByOrigin(ctx context.Context, origin string) (Domain, error) {
	const op = "shortener.repo.FindDomainByOrigin"

	domains, err := r.ListDomains(ctx)
	if err != nil {
		return Domain{}, errx.E(op, errx.KindOf(err), err)
	}
	for _, d := range domains {
		if d.Domain == origin {
			return d, nil
		}
	}
	return Domain{}, errx.E(op, errx.NotFound, ErrDomainNotFound)
}

// FindLinkByKey returns the first link whose key equals key exactly.
func (r *repo) FindLinkByKey(ctx context.Context, key string) (Link, error) {
	const op = "shortener.repo.FindLinkByKey"

	links, err := r.ListLinks(ctx)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	for _, l := range links {
		if l.Key == key {
			return l, nil
		}
	}
	return Link{}, errx.E(op, errx.NotFound, ErrLinkNotFound)
}
