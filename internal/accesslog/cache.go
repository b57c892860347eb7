package accesslog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sundayezeilo/shortlinker/internal/errx"
)

const (
	DefaultIdleThreshold = time.Hour
	DefaultSweepInterval = time.Minute

	// maxAcquireAttempts bounds retries when a sweep closes a handle between
	// lookup and write.
	maxAcquireAttempts = 3
)

var (
	ErrClosed       = errors.New("access log cache is closed")
	errHandleClosed = errors.New("handle closed concurrently")
)

// Stats receives access log events. Implementations must be safe for concurrent use.
type Stats interface {
	AccessLogged(domainID, linkKey string)
	HandlesOpen(n int)
	HandleClosed()
}

type nopStats struct{}

func (nopStats) AccessLogged(string, string) {}
func (nopStats) HandlesOpen(int)             {}
func (nopStats) HandleClosed()               {}

// Config holds configuration for the cache.
type Config struct {
	Dir           string // root of the per-domain log directories
	IdleThreshold time.Duration
	SweepInterval time.Duration
	Logger        *slog.Logger
	Stats         Stats
	Now           func() time.Time // defaults to time.Now
}

type handle struct {
	key       string
	filePath  string
	createdAt time.Time

	// lastUsedAt is guarded by Cache.mu.
	lastUsedAt time.Time

	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

// write reports false when the handle was closed before the write could start.
func (h *handle) write(line string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false, nil
	}
	_, err := io.WriteString(h.w, line)
	return true, err
}

func (h *handle) close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	return h.w.Close()
}

// Cache keeps at most one open append handle per link key and closes handles
// that stay idle longer than the idle threshold. It is safe for concurrent use.
type Cache struct {
	dir           string
	idleThreshold time.Duration
	sweepInterval time.Duration
	logger        *slog.Logger
	stats         Stats
	now           func() time.Time

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Cache rooted at cfg.Dir, creating the directory if needed.
// The idle sweep does not run until Start is called.
func New(cfg Config) (*Cache, error) {
	const op = "accesslog.New"

	if cfg.Dir == "" {
		return nil, errx.E(op, errx.Invalid, errors.New("log directory cannot be empty"))
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errx.E(op, errx.IO, err)
	}

	c := &Cache{
		dir:           cfg.Dir,
		idleThreshold: cfg.IdleThreshold,
		sweepInterval: cfg.SweepInterval,
		logger:        cfg.Logger,
		stats:         cfg.Stats,
		now:           cfg.Now,
		handles:       make(map[string]*handle),
	}
	if c.idleThreshold <= 0 {
		c.idleThreshold = DefaultIdleThreshold
	}
	if c.sweepInterval <= 0 {
		c.sweepInterval = DefaultSweepInterval
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.stats == nil {
		c.stats = nopStats{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Append writes e to the file of its link, opening a handle on first use.
// The table lock is held for the lookup only, never across the write.
func (c *Cache) Append(e Entry) error {
	const op = "accesslog.cache.Append"

	line := FormatLine(e)
	for range maxAcquireAttempts {
		h, err := c.acquire(e.DomainID, e.LinkKey)
		if err != nil {
			return errx.E(op, errx.KindOf(err), err)
		}
		written, err := h.write(line)
		if err != nil {
			return errx.E(op, errx.IO, fmt.Errorf("write %s: %w", h.filePath, err))
		}
		if written {
			c.stats.AccessLogged(e.DomainID, e.LinkKey)
			return nil
		}
	}
	return errx.E(op, errx.IO, errHandleClosed)
}

func (c *Cache) acquire(domainID, linkKey string) (*handle, error) {
	const op = "accesslog.cache.acquire"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errx.E(op, errx.Unavailable, ErrClosed)
	}

	now := c.now()
	if h, ok := c.handles[linkKey]; ok {
		h.lastUsedAt = now
		return h, nil
	}

	path, err := c.pathFor(domainID, linkKey)
	if err != nil {
		return nil, errx.E(op, errx.Invalid, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errx.E(op, errx.IO, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errx.E(op, errx.IO, err)
	}

	h := &handle{
		key:        linkKey,
		filePath:   path,
		createdAt:  now,
		lastUsedAt: now,
		w:          f,
	}
	c.handles[linkKey] = h
	c.stats.HandlesOpen(len(c.handles))
	c.logger.Debug("opened access log handle", "link_key", linkKey, "file_path", path)
	return h, nil
}

// pathFor rejects identifiers that would escape the domain directory.
func (c *Cache) pathFor(domainID, linkKey string) (string, error) {
	for name, v := range map[string]string{"domain id": domainID, "link key": linkKey} {
		if v == "" {
			return "", fmt.Errorf("%s cannot be empty", name)
		}
		if strings.ContainsAny(v, `/\`) || !filepath.IsLocal(v) {
			return "", fmt.Errorf("%s %q is not a valid file name", name, v)
		}
	}
	return filepath.Join(c.dir, domainID, linkKey+".log"), nil
}

// Sweep closes every handle whose last use is older than the idle threshold
// and returns how many were closed. A failure closing one handle is logged
// and the sweep moves on to the next.
func (c *Cache) Sweep() int {
	cutoff := c.now().Add(-c.idleThreshold)

	c.mu.Lock()
	if len(c.handles) == 0 {
		c.mu.Unlock()
		return 0
	}
	c.logger.Debug("sweeping access log handles", "handles", len(c.handles))
	var idle []*handle
	for key, h := range c.handles {
		if h.lastUsedAt.Before(cutoff) {
			idle = append(idle, h)
			delete(c.handles, key)
		}
	}
	// Published under the lock so a concurrent acquire cannot be overwritten
	// by a stale count.
	if len(idle) > 0 {
		c.stats.HandlesOpen(len(c.handles))
	}
	c.mu.Unlock()

	if len(idle) == 0 {
		return 0
	}

	for _, h := range idle {
		c.logger.Info("closing access log handle", "link_key", h.key, "file_path", h.filePath)
		if err := h.close(); err != nil {
			c.logger.Error("failed to close access log handle",
				"link_key", h.key,
				"file_path", h.filePath,
				"error", err.Error(),
			)
			continue
		}
		c.stats.HandleClosed()
	}
	return len(idle)
}

// Start launches the periodic sweep. Calling Start on a running cache is a no-op.
func (c *Cache) Start() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)
}

func (c *Cache) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Stop cancels the periodic sweep and waits for it to exit. Open handles are
// left as they are.
func (c *Cache) Stop() {
	c.lifecycle.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.lifecycle.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// Close stops the sweep and closes every open handle. Appends after Close fail.
func (c *Cache) Close() error {
	const op = "accesslog.cache.Close"

	c.Stop()

	c.mu.Lock()
	c.closed = true
	open := c.handles
	c.handles = make(map[string]*handle)
	c.stats.HandlesOpen(0)
	c.mu.Unlock()

	var errs []error
	for _, h := range open {
		if err := h.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", h.filePath, err))
		}
	}
	return errx.E(op, errx.IO, errors.Join(errs...))
}

// Len returns the number of open handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}
