// Package policy computes the fixed security-header set every response must
// carry. The service handles regulated health text, so caching is disabled
// outright and the CSP allowlists only the translation collaborator's origin
// for outbound connections.
package policy

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Rate-limit advertisement. Static for now: enforcement lives at the edge,
// the headers communicate the contract to clients.
const (
	RateLimitLimit     = "100"
	RateLimitRemaining = "99"
)

// Headers holds the computed header set for one response.
type Headers map[string]string

// Policy produces response headers. ConnectSrc is the origin of the
// translation collaborator, the only non-self origin the CSP permits.
type Policy struct {
	ConnectSrc string
}

// New builds a header policy allowlisting the given collaborator origin.
func New(connectSrc string) Policy {
	return Policy{ConnectSrc: connectSrc}
}

// Compute returns the full header set for a response. requestID must be
// unique per request; elapsed is the time from pipeline entry to header
// emission.
func (p Policy) Compute(requestID string, elapsed time.Duration) Headers {
	csp := fmt.Sprintf("default-src 'self'; script-src 'self'; style-src 'self'; "+
		"img-src 'self' data:; connect-src 'self' %s; frame-ancestors 'none'; form-action 'self';",
		p.ConnectSrc)

	return Headers{
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains; preload",
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "1; mode=block",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
		"Content-Security-Policy":   csp,
		"Cache-Control":             "no-store, no-cache, must-revalidate",
		"Pragma":                    "no-cache",
		"X-RateLimit-Limit":         RateLimitLimit,
		"X-RateLimit-Remaining":     RateLimitRemaining,
		"X-Request-ID":              requestID,
		"X-Processing-Time":         strconv.FormatInt(elapsed.Milliseconds(), 10),
	}
}

// Apply stamps the computed set onto an http.Header.
func (h Headers) Apply(dst http.Header) {
	for name, value := range h {
		dst.Set(name, value)
	}
}
