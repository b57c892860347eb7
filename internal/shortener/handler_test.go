package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sundayezeilo/shortlinker/internal/errx"
	"github.com/sundayezeilo/shortlinker/internal/httpx"
)

/***************
 * Mocks
 ***************/

// mockService implements Service interface for testing.
type mockService struct {
	resolveFunc func(ctx context.Context, req ResolveRequest) (Result, error)

	calls   int
	lastReq ResolveRequest
}

func (m *mockService) Resolve(ctx context.Context, req ResolveRequest) (Result, error) {
	m.calls++
	m.lastReq = req
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, req)
	}
	return Result{Outcome: NotFound}, nil
}

func newTestHandler(svc Service) *Handler {
	return NewHandler(HandlerConfig{
		Service: svc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func redirectRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/"+key, nil)
	req.Host = "sho.rt"
	req.SetPathValue(LinkKeyPathValue, key)
	return req
}

/***************
 * Tests
 ***************/

func TestHandlerRedirect(t *testing.T) {
	domain := activeDomain()
	link := activeLink()
	noFallback := activeDomain()
	noFallback.DefaultRedirectTo = nil
	emptyFallback := activeDomain()
	emptyFallback.DefaultRedirectTo = ptr("")

	tests := []struct {
		name         string
		result       Result
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "resolved redirects to link",
			result:       Result{Outcome: Resolved, Domain: &domain, Link: &link},
			wantStatus:   http.StatusFound,
			wantLocation: "https://example.com/promo",
		},
		{
			name:         "domain only redirects to fallback",
			result:       Result{Outcome: DomainOnly, Domain: &domain},
			wantStatus:   http.StatusFound,
			wantLocation: "https://fallback.example",
		},
		{
			name:       "domain only without fallback",
			result:     Result{Outcome: DomainOnly, Domain: &noFallback},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "domain only with empty fallback",
			result:     Result{Outcome: DomainOnly, Domain: &emptyFallback},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "not found",
			result:     Result{Outcome: NotFound},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				resolveFunc: func(ctx context.Context, req ResolveRequest) (Result, error) {
					return tt.result, nil
				},
			}
			h := newTestHandler(svc)

			rr := httptest.NewRecorder()
			h.Redirect(rr, redirectRequest("promo"))

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if tt.wantStatus == http.StatusNotFound && rr.Body.String() != "Not found" {
				t.Errorf("body = %q, want %q", rr.Body.String(), "Not found")
			}
		})
	}
}

func TestHandlerRedirect_PassesRequestAttributes(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc)

	req := redirectRequest("promo")
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set(httpx.ForwardedForHeader, "198.51.100.4, 10.0.0.2")
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://news.example")

	h.Redirect(httptest.NewRecorder(), req)

	want := ResolveRequest{
		Key:       "promo",
		IP:        "198.51.100.4",
		UserAgent: "curl/8.0",
		Referer:   "https://news.example",
		Origin:    "sho.rt",
	}
	if svc.lastReq != want {
		t.Errorf("request = %+v, want %+v", svc.lastReq, want)
	}
}

func TestHandlerRedirect_IgnoredKeys(t *testing.T) {
	for _, key := range []string{"", "chrome.css.map"} {
		t.Run("key "+key, func(t *testing.T) {
			svc := &mockService{}
			h := newTestHandler(svc)

			rr := httptest.NewRecorder()
			h.Redirect(rr, redirectRequest(key))

			if rr.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
			}
			if svc.calls != 0 {
				t.Errorf("Resolve called %d times, want 0", svc.calls)
			}
		})
	}
}

func TestHandlerRedirect_StorageErrors(t *testing.T) {
	tests := []struct {
		name       string
		kind       errx.Kind
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unavailable",
			kind:       errx.Unavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "storage_unavailable",
		},
		{
			name:       "corrupt",
			kind:       errx.Corrupt,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "storage_corrupt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				resolveFunc: func(ctx context.Context, req ResolveRequest) (Result, error) {
					return Result{}, errx.E("shortener.service.Resolve", tt.kind, errors.New("boom"))
				},
			}
			h := newTestHandler(svc)

			rr := httptest.NewRecorder()
			h.Redirect(rr, redirectRequest("promo"))

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}

			var resp httpx.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
		})
	}
}
