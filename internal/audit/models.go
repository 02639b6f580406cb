package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// EventType classifies audit events by their primary purpose. The set is
// fixed; sinks and downstream consumers key retention and routing off it.
type EventType string

const (
	TypeTranslation    EventType = "translation"
	TypeAccess         EventType = "access"
	TypeError          EventType = "error"
	TypeAuthentication EventType = "authentication"
)

// Event is emitted from the request pipeline to capture one outcome. Keep it
// transport-agnostic so sinks can fan out without knowing about HTTP.
//
// Events are immutable once recorded: Timestamp is assigned and Details is
// scrubbed by the Log, never by callers. UserHash and IPAddress are
// best-effort and may be empty.
type Event struct {
	Type      EventType `json:"eventType"`
	Action    string    `json:"action"`
	UserHash  string    `json:"userHash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Details   string    `json:"details"`
}

// Well-known action labels recorded by the translation pipeline.
const (
	ActionMedicalTranslation = "medical_translation"
	ActionValidationFailed   = "translation_validation_failed"
	ActionSessionTimeout     = "session_timeout"
	ActionTranslationFailed  = "translation_failed"
	ActionSessionMissing     = "session_start_missing"
)

// HashUser returns a one-way SHA-256 hex digest of a user identifier so the
// trail can correlate a user without ever storing raw identity.
func HashUser(id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
