package shortener

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sundayezeilo/shortlinker/internal/errx"
	"github.com/sundayezeilo/shortlinker/internal/httpx"
)

// LinkKeyPathValue is the ServeMux wildcard name holding the link key.
const LinkKeyPathValue = "linkKey"

// ignoredKeys are requested by browsers on their own and never name a link.
var ignoredKeys = map[string]bool{
	"":               true,
	"chrome.css.map": true,
}

// Handler provides the HTTP redirect endpoint.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
	}
}

// Redirect resolves the link key of the request path on the request host and
// redirects to the link target, or to the domain fallback when only the
// domain matched.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := httpx.GetRequestID(ctx)
	logger := h.logger.With(
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
	)

	key := r.PathValue(LinkKeyPathValue)
	if ignoredKeys[key] {
		writeNotFound(w)
		return
	}

	result, err := h.service.Resolve(ctx, ResolveRequest{
		Key:       key,
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Origin:    r.Host,
	})
	if err != nil {
		h.handleResolveError(ctx, w, err, key, r.Host)
		return
	}

	target, ok := result.RedirectTarget()
	if !ok {
		logger.DebugContext(ctx, "no redirect for link",
			"link_key", key,
			"origin", r.Host,
			"outcome", result.Outcome.String(),
		)
		writeNotFound(w)
		return
	}

	logger.InfoContext(ctx, "link resolved",
		"link_key", key,
		"origin", r.Host,
		"outcome", result.Outcome.String(),
		"redirect_to", target,
	)
	http.Redirect(w, r, target, http.StatusFound)
}

// handleResolveError handles errors from the Resolve service method.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, key, origin string) {
	kind := errx.KindOf(err)
	h.logger.ErrorContext(ctx, "failed to resolve link",
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"link_key", key,
		"origin", origin,
	)
	httpx.WriteError(w, httpx.ErrorKindToStatus(kind), httpx.ErrorKindToCode(kind),
		"Unable to resolve this link at this time", nil)
}

func writeNotFound(w http.ResponseWriter) {
	httpx.WriteText(w, http.StatusNotFound, "Not found")
}
