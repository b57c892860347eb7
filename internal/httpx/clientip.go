package httpx

import (
	"net"
	"net/http"
	"strings"
)

const (
	// CFConnectingIPHeader is set by Cloudflare to the visitor address.
	CFConnectingIPHeader = "CF-Connecting-IP"
	// ForwardedForHeader is the de facto proxy chain header.
	ForwardedForHeader = "X-Forwarded-For"
)

// ClientIP returns the address of the original client. A CDN supplied
// address wins over the first X-Forwarded-For hop, which wins over the
// peer address of the connection.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get(CFConnectingIPHeader)); ip != "" {
		return ip
	}

	if xff := r.Header.Get(ForwardedForHeader); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
