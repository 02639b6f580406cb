// Package metadata extracts client metadata from inbound requests and makes
// it available through the request context.
package metadata

import (
	"net/http"
	"strings"

	"mediglot/pkg/requestcontext"
)

// HeaderUserID optionally carries an opaque user identifier supplied by a
// fronting system. It is hashed before it ever reaches the audit trail.
const HeaderUserID = "X-User-ID"

// ClientMetadata extracts the client IP address and optional user identifier
// from the request and adds them to the context for the pipeline and audit
// layer. Apply early in the chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = requestcontext.WithClientIP(ctx, ClientIPFromRequest(r))
		if userID := r.Header.Get(HeaderUserID); userID != "" {
			ctx = requestcontext.WithUserID(ctx, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIPFromRequest extracts the best-effort client IP, handling proxies
// and load balancers. The value is never authenticated; it exists for the
// audit trail only.
func ClientIPFromRequest(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...);
	// the first is the original client.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// X-Real-IP is used by nginx and other proxies.
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "ip:port" for IPv4 and "[::1]:port" for IPv6.
	if addr := r.RemoteAddr; addr != "" {
		if idx := strings.LastIndex(addr, ":"); idx != -1 {
			return addr[:idx]
		}
		return addr
	}
	return "unknown"
}
