package service

import (
	"strings"
)

// Canonical event types produced by ClassifyEvent. The classifier lower-cases
// whatever the provider sends, so the transition engine additionally accepts
// the provider synonyms ("completed", "signed", "cancelled", ...).
const (
	EventSigningCompletedAll = "signing_completed_all"
	EventSigningCompleted    = "signing_completed"
	EventSigningCanceled     = "signing_canceled"
	EventSignCreating        = "sign_creating"
	EventExpired             = "expired"
	EventRejected            = "rejected"
	EventUnknown             = "unknown"
)

// eventTagFields are the top-level field names providers have been observed
// to use for the event tag, in priority order.
var eventTagFields = []string{"event", "type", "eventType", "webhookType", "action"}

// ClassifyEvent normalizes a raw webhook payload into one canonical event
// type. It returns the canonical event and the raw tag or status string it
// was derived from (kept for the diagnostic status mirror).
//
// The provider's webhook contract is not strictly typed across event
// versions, so classification is two-tier: a direct event tag wins; absent
// that, the status field is mapped through a fixed precedence table. A
// payload matching neither tier degrades to "unknown" rather than failing.
func ClassifyEvent(payload map[string]any) (event string, raw string) {
	for _, field := range eventTagFields {
		if v, ok := stringField(payload, field); ok {
			return strings.ToLower(v), v
		}
	}

	status, ok := stringField(payload, "status")
	if !ok {
		return EventUnknown, ""
	}

	return classifyStatus(status), status
}

// classifyStatus maps known status strings to canonical event types.
// Precedence order matters: the substring check for "cancel" sits between
// the exact completion matches and the creation ones.
func classifyStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case s == "completed" || s == EventSigningCompletedAll:
		return EventSigningCompletedAll
	case s == "signed" || s == EventSigningCompleted:
		return EventSigningCompleted
	case strings.Contains(s, "cancel"):
		return EventSigningCanceled
	case s == "created" || s == "sent":
		return EventSignCreating
	case s == "expired":
		return EventExpired
	case s == "rejected" || s == "declined":
		return EventRejected
	default:
		return EventUnknown
	}
}

// stringField returns payload[key] if it is a non-empty string.
func stringField(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
