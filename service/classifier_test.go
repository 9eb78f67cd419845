package service

import (
	"testing"
)

func TestClassifyEventDirectTag(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{"event field", map[string]any{"event": "signing_completed_all"}, "signing_completed_all"},
		{"type field", map[string]any{"type": "Signing_Completed"}, "signing_completed"},
		{"eventType field", map[string]any{"eventType": "OPENED"}, "opened"},
		{"webhookType field", map[string]any{"webhookType": "Expired"}, "expired"},
		{"action field", map[string]any{"action": "declined"}, "declined"},
		{"unrecognized tag passes through", map[string]any{"event": "foo_bar"}, "foo_bar"},
		{"event field wins over status", map[string]any{"event": "opened", "status": "completed"}, "opened"},
		{"field priority order", map[string]any{"type": "signed", "action": "expired"}, "signed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, _ := ClassifyEvent(tt.payload)
			if event != tt.expected {
				t.Errorf("Expected event '%s', got '%s'", tt.expected, event)
			}
		})
	}
}

func TestClassifyEventStatusFallback(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected string
	}{
		{"completed", "completed", EventSigningCompletedAll},
		{"signing_completed_all", "signing_completed_all", EventSigningCompletedAll},
		{"signed", "signed", EventSigningCompleted},
		{"signing_completed", "signing_completed", EventSigningCompleted},
		{"canceled", "canceled", EventSigningCanceled},
		{"cancelled substring", "signing_cancelled_by_user", EventSigningCanceled},
		{"created", "created", EventSignCreating},
		{"sent", "sent", EventSignCreating},
		{"expired", "expired", EventExpired},
		{"rejected", "rejected", EventRejected},
		{"declined", "declined", EventRejected},
		{"uppercase normalized", "COMPLETED", EventSigningCompletedAll},
		{"unknown status", "somewhere_in_between", EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, raw := ClassifyEvent(map[string]any{"status": tt.status})
			if event != tt.expected {
				t.Errorf("Expected event '%s', got '%s'", tt.expected, event)
			}
			if raw != tt.status {
				t.Errorf("Expected raw '%s', got '%s'", tt.status, raw)
			}
		})
	}
}

func TestClassifyEventNothingUsable(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"empty payload", map[string]any{}},
		{"irrelevant fields", map[string]any{"documentId": "D1", "foo": 42}},
		{"non-string event tag", map[string]any{"event": 7}},
		{"blank event tag", map[string]any{"event": "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, raw := ClassifyEvent(tt.payload)
			if event != EventUnknown {
				t.Errorf("Expected '%s', got '%s'", EventUnknown, event)
			}
			if raw != "" {
				t.Errorf("Expected empty raw value, got '%s'", raw)
			}
		})
	}
}

func TestClassifyEventRawPreservesCase(t *testing.T) {
	event, raw := ClassifyEvent(map[string]any{"event": "Signing_Completed_All"})
	if event != EventSigningCompletedAll {
		t.Errorf("Expected '%s', got '%s'", EventSigningCompletedAll, event)
	}
	if raw != "Signing_Completed_All" {
		t.Errorf("Expected raw tag preserved, got '%s'", raw)
	}
}
