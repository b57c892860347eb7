package shortener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sundayezeilo/shortlinker/internal/accesslog"
	"github.com/sundayezeilo/shortlinker/internal/errx"
)

// Outcome is the kind of a resolution result.
type Outcome uint8

const (
	// NotFound means no active domain matched the origin.
	NotFound Outcome = iota
	// DomainOnly means the domain matched but no usable link did.
	DomainOnly
	// Resolved means domain and link matched and an access entry was logged.
	Resolved
)

func (o Outcome) String() string {
	switch o {
	case NotFound:
		return "not_found"
	case DomainOnly:
		return "domain_only"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("Outcome(%d)", o)
	}
}

// Result is the outcome of a resolve call. Domain is set for DomainOnly and
// Resolved, Link only for Resolved.
type Result struct {
	Outcome Outcome
	Domain  *Domain
	Link    *Link
}

// RedirectTarget returns where the caller should be sent: the link target
// when resolved, the domain fallback when only the domain matched.
func (r Result) RedirectTarget() (string, bool) {
	switch r.Outcome {
	case Resolved:
		return r.Link.RedirectTo, true
	case DomainOnly:
		if r.Domain.DefaultRedirectTo != nil && *r.Domain.DefaultRedirectTo != "" {
			return *r.Domain.DefaultRedirectTo, true
		}
	}
	return "", false
}

// ResolveRequest carries the already extracted request attributes.
type ResolveRequest struct {
	Key       string
	IP        string
	UserAgent string
	Referer   string
	Origin    string
}

// Appender persists access log entries.
type Appender interface {
	Append(e accesslog.Entry) error
}

// Stats receives one call per resolve with the outcome name.
type Stats interface {
	Resolution(outcome string)
}

type nopStats struct{}

func (nopStats) Resolution(string) {}

// Service defines the resolution of short links.
type Service interface {
	Resolve(ctx context.Context, req ResolveRequest) (Result, error)
}

// service implements the Service interface.
type service struct {
	repo     Repository
	appender Appender
	logger   *slog.Logger
	stats    Stats
	now      func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Logger *slog.Logger
	Stats  Stats
	Now    func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, appender Appender, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	s := &service{
		repo:     repo,
		appender: appender,
		logger:   config.Logger,
		stats:    config.Stats,
		now:      config.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.stats == nil {
		s.stats = nopStats{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Resolve checks, in order: domain exists and is active, link exists, link
// belongs to the domain, link is active, link window has started, link window
// has not ended. The order decides between NotFound and DomainOnly and must
// not change. Only storage read failures are returned as errors; a failed
// access log write is logged and does not affect the result.
func (s *service) Resolve(ctx context.Context, req ResolveRequest) (Result, error) {
	const op = "shortener.service.Resolve"

	now := s.now()

	domain, err := s.repo.FindDomainByOrigin(ctx, req.Origin)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return s.finish(Result{Outcome: NotFound}), nil
		}
		return Result{}, errx.E(op, errx.KindOf(err), err)
	}
	if !domain.Active {
		return s.finish(Result{Outcome: NotFound}), nil
	}

	domainOnly := Result{Outcome: DomainOnly, Domain: &domain}

	link, err := s.repo.FindLinkByKey(ctx, req.Key)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			return s.finish(domainOnly), nil
		}
		return Result{}, errx.E(op, errx.KindOf(err), err)
	}

	// A key owned by another domain is a miss on this origin, not a fallback.
	if link.DomainID != domain.ID {
		return s.finish(Result{Outcome: NotFound}), nil
	}
	if !link.Active || link.notYetActive(now) || link.expired(now) {
		return s.finish(domainOnly), nil
	}

	s.logAccess(ctx, domain, link, req, now)

	return s.finish(Result{Outcome: Resolved, Domain: &domain, Link: &link}), nil
}

func (s *service) finish(r Result) Result {
	s.stats.Resolution(r.Outcome.String())
	return r
}

func (s *service) logAccess(ctx context.Context, domain Domain, link Link, req ResolveRequest, now time.Time) {
	err := s.appender.Append(accesslog.Entry{
		DomainID:  domain.ID,
		LinkKey:   link.Key,
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Referer:   req.Referer,
		Timestamp: now,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to write access log entry",
			"domain_id", domain.ID,
			"link_key", link.Key,
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
			"operation", errx.OpOf(err),
		)
	}
}
