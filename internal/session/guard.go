// Package session enforces the session-lifetime policy. Sessions are not
// stored server-side: the client supplies its session start as an
// epoch-millisecond header and the guard checks it against the maximum
// allowed duration.
package session

import (
	"strconv"
	"time"
)

// MaxDuration is the compliance limit on a single translation session.
const MaxDuration = 15 * time.Minute

// HeaderSessionStart carries the client's session start in epoch milliseconds.
const HeaderSessionStart = "X-Session-Start"

// Expired reports whether a session that started at start has outlived max
// as of now. Pure function; a session exactly at the limit is still valid.
func Expired(start, now time.Time, max time.Duration) bool {
	return now.Sub(start) > max
}

// ParseStart decodes an epoch-millisecond header value. ok is false for an
// empty or malformed value.
func ParseStart(value string) (start time.Time, ok bool) {
	if value == "" {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// Policy decides how to treat requests that carry no session start at all.
//
// The permissive default (absent header is not expired) preserves the
// established client contract, but it is fail-open: a client that never
// sends the header never times out. Strict mode closes that gap by treating
// an absent or malformed header as an expired session.
type Policy struct {
	Strict bool
	Max    time.Duration
}

// NewPolicy returns a policy with the standard duration limit.
func NewPolicy(strict bool) Policy {
	return Policy{Strict: strict, Max: MaxDuration}
}

// Check evaluates a raw header value at time now.
// present is false when the header was absent or unparseable.
func (p Policy) Check(headerValue string, now time.Time) (expired, present bool) {
	start, ok := ParseStart(headerValue)
	if !ok {
		return p.Strict, false
	}
	return Expired(start, now, p.Max), true
}
