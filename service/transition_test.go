package service

import (
	"testing"
	"time"

	"github.com/signdesk/esign-backend/model"
)

func testNow() time.Time {
	return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestTransitionCompletedAll(t *testing.T) {
	contract := &model.Contract{ID: "c-1", Status: model.StatusSigned}
	signedAt := testNow().Add(-time.Hour)
	contract.SignedAt = &signedAt

	res := Transition(contract, EventSigningCompletedAll, "signing_completed_all", map[string]any{}, testNow())

	if res.NewStatus != model.StatusCompleted {
		t.Errorf("Expected status '%s', got '%s'", model.StatusCompleted, res.NewStatus)
	}
	if !res.FetchArtifacts {
		t.Error("Expected artifact fetch directive")
	}
	if res.Update.CompletedAt == nil || !res.Update.CompletedAt.Equal(testNow()) {
		t.Error("Expected completedAt to be stamped")
	}
	if res.Update.SignedAt != nil {
		t.Error("Expected signedAt untouched for an already-signed contract")
	}
}

func TestTransitionCompletedAllFromSent(t *testing.T) {
	// Completion without an intermediate signed event also stamps signedAt.
	contract := &model.Contract{ID: "c-1", Status: model.StatusSent}

	res := Transition(contract, EventSigningCompletedAll, "completed", map[string]any{}, testNow())

	if res.Update.SignedAt == nil {
		t.Error("Expected signedAt stamped when completing an unsigned contract")
	}
	if res.Update.CompletedAt == nil {
		t.Error("Expected completedAt stamped")
	}
}

func TestTransitionSignedRegressionGuard(t *testing.T) {
	completedAt := testNow().Add(-time.Hour)
	contract := &model.Contract{
		ID:          "c-1",
		Status:      model.StatusCompleted,
		CompletedAt: &completedAt,
	}

	res := Transition(contract, EventSigningCompleted, "signed", map[string]any{}, testNow())

	if res.NewStatus != model.StatusCompleted {
		t.Errorf("Expected status to stay '%s', got '%s'", model.StatusCompleted, res.NewStatus)
	}
	if res.Update.Status != nil {
		t.Error("Expected no status update for stale signer event")
	}
	if res.Update.CompletedAt != nil || res.Update.SignedAt != nil {
		t.Error("Expected no timestamp changes for stale signer event")
	}
	if res.Update.SignedPDFURL != nil || res.Update.AuditTrailURL != nil {
		t.Error("Expected artifact fields untouched")
	}
	if res.FetchArtifacts {
		t.Error("Expected no artifact fetch for stale signer event")
	}
	// The mirror is still stamped so the duplicate stays visible.
	if res.Update.ProviderStatus == nil || *res.Update.ProviderStatus != "signed" {
		t.Error("Expected provider status mirror to be set")
	}
}

func TestTransitionSignedAppendsSignerFacts(t *testing.T) {
	contract := &model.Contract{ID: "c-1", Status: model.StatusViewed}
	payload := map[string]any{
		"signerName":   "Jane Roe",
		"signerEmail":  "jane@example.com",
		"signingOrder": float64(2),
	}

	res := Transition(contract, EventSigningCompleted, "signed", payload, testNow())

	if res.NewStatus != model.StatusSigned {
		t.Errorf("Expected status '%s', got '%s'", model.StatusSigned, res.NewStatus)
	}
	if res.Update.SignedAt == nil {
		t.Error("Expected signedAt stamped")
	}
	if res.Update.ContractData["last_signer_name"] != "Jane Roe" {
		t.Errorf("Expected last signer fact, got %v", res.Update.ContractData)
	}
	if res.Update.ContractData["last_signer_email"] != "jane@example.com" {
		t.Error("Expected last signer email fact")
	}
	if res.Update.ContractData["signing_order"] != float64(2) {
		t.Error("Expected signing order fact")
	}
}

func TestTransitionSignedAtSetOnce(t *testing.T) {
	signedAt := testNow().Add(-time.Hour)
	contract := &model.Contract{ID: "c-1", Status: model.StatusSigned, SignedAt: &signedAt}

	res := Transition(contract, EventSigningCompleted, "signed", map[string]any{}, testNow())

	if res.Update.SignedAt != nil {
		t.Error("Expected signedAt to be set at most once")
	}
}

func TestTransitionCanceled(t *testing.T) {
	contract := &model.Contract{ID: "c-2", Status: model.StatusSent}
	payload := map[string]any{"reason": "user request"}

	res := Transition(contract, EventSigningCanceled, "canceled", payload, testNow())

	if res.NewStatus != model.StatusRejected {
		t.Errorf("Expected status '%s', got '%s'", model.StatusRejected, res.NewStatus)
	}
	if res.Update.ContractData["cancel_reason"] != "user request" {
		t.Errorf("Expected cancel reason fact, got %v", res.Update.ContractData)
	}
	if res.Update.ContractData["canceled_at"] == nil {
		t.Error("Expected cancellation timestamp fact")
	}
}

func TestTransitionCreating(t *testing.T) {
	tests := []struct {
		name           string
		current        string
		expectedStatus string
		statusChanged  bool
	}{
		{"draft becomes sent", model.StatusDraft, model.StatusSent, true},
		{"already sent is kept", model.StatusSent, model.StatusSent, false},
		{"signed is kept", model.StatusSigned, model.StatusSigned, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := &model.Contract{ID: "c-3", Status: tt.current}
			res := Transition(contract, EventSignCreating, "created", map[string]any{}, testNow())

			if res.NewStatus != tt.expectedStatus {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedStatus, res.NewStatus)
			}
			if tt.statusChanged {
				if res.Update.Status == nil || res.Update.SentAt == nil {
					t.Error("Expected status and sentAt updates")
				}
			} else if res.Update.Status != nil {
				t.Error("Expected no status update")
			}
		})
	}
}

func TestTransitionViewed(t *testing.T) {
	tests := []struct {
		name           string
		current        string
		expectedStatus string
		statusChanged  bool
	}{
		{"sent becomes viewed", model.StatusSent, model.StatusViewed, true},
		{"draft kept", model.StatusDraft, model.StatusDraft, false},
		{"signed kept", model.StatusSigned, model.StatusSigned, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := &model.Contract{ID: "c-4", Status: tt.current}
			res := Transition(contract, "opened", "opened", map[string]any{}, testNow())

			if res.NewStatus != tt.expectedStatus {
				t.Errorf("Expected status '%s', got '%s'", tt.expectedStatus, res.NewStatus)
			}
			// Mirror updated in every branch.
			if res.Update.ProviderStatus == nil || *res.Update.ProviderStatus != "opened" {
				t.Error("Expected provider status mirror to be set")
			}
			if tt.statusChanged && res.Update.ViewedAt == nil {
				t.Error("Expected viewedAt stamped")
			}
		})
	}
}

func TestTransitionTerminalEvents(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		expected string
	}{
		{"expired", EventExpired, model.StatusExpired},
		{"rejected", EventRejected, model.StatusRejected},
		{"declined", "declined", model.StatusRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := &model.Contract{ID: "c-5", Status: model.StatusViewed}
			res := Transition(contract, tt.event, tt.event, map[string]any{}, testNow())

			if res.NewStatus != tt.expected {
				t.Errorf("Expected status '%s', got '%s'", tt.expected, res.NewStatus)
			}
			if res.FetchArtifacts {
				t.Error("Expected no artifact fetch")
			}
		})
	}
}

func TestTransitionTerminalStatusIsAbsorbing(t *testing.T) {
	// A redelivered or late terminal event on an already-terminal contract
	// mirrors the raw status but changes nothing else: in particular it must
	// not re-stamp canceled_at.
	tests := []struct {
		name    string
		current string
		event   string
	}{
		{"cancel after rejected", model.StatusRejected, EventSigningCanceled},
		{"cancel after expired", model.StatusExpired, EventSigningCanceled},
		{"expiry after rejected", model.StatusRejected, EventExpired},
		{"rejection after expired", model.StatusExpired, EventRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := &model.Contract{ID: "c-8", Status: tt.current}
			res := Transition(contract, tt.event, tt.event, map[string]any{"reason": "late"}, testNow())

			if res.NewStatus != tt.current {
				t.Errorf("Expected status to stay '%s', got '%s'", tt.current, res.NewStatus)
			}
			if res.Update.Status != nil {
				t.Error("Expected no status update")
			}
			if len(res.Update.ContractData) != 0 {
				t.Errorf("Expected no audit facts, got %v", res.Update.ContractData)
			}
			if res.Update.ProviderStatus == nil || *res.Update.ProviderStatus != tt.event {
				t.Error("Expected provider status mirror to be set")
			}
		})
	}
}

func TestTransitionUnrecognizedEventMirrorsOnly(t *testing.T) {
	contract := &model.Contract{ID: "c-6", Status: model.StatusSent}

	res := Transition(contract, "foo_bar", "foo_bar", map[string]any{}, testNow())

	if res.NewStatus != model.StatusSent {
		t.Errorf("Expected status unchanged, got '%s'", res.NewStatus)
	}
	if res.Update.Status != nil {
		t.Error("Expected no status update")
	}
	if res.Update.ProviderStatus == nil || *res.Update.ProviderStatus != "foo_bar" {
		t.Error("Expected provider status mirror set to raw value")
	}
}

func TestTransitionIdempotentCompletion(t *testing.T) {
	// Applying signing_completed_all twice gives the same final state as
	// applying it once.
	contract := &model.Contract{ID: "c-7", Status: model.StatusSigned}
	signedAt := testNow().Add(-2 * time.Hour)
	contract.SignedAt = &signedAt

	first := Transition(contract, EventSigningCompletedAll, "completed", map[string]any{}, testNow())
	first.Update.ApplyTo(contract)

	later := testNow().Add(time.Minute)
	second := Transition(contract, EventSigningCompletedAll, "completed", map[string]any{}, later)
	second.Update.ApplyTo(contract)

	if contract.Status != model.StatusCompleted {
		t.Errorf("Expected status '%s', got '%s'", model.StatusCompleted, contract.Status)
	}
	if contract.CompletedAt == nil || !contract.CompletedAt.Equal(testNow()) {
		t.Error("Expected completedAt to keep its first value")
	}
	if contract.SignedAt == nil || !contract.SignedAt.Equal(signedAt) {
		t.Error("Expected signedAt to keep its first value")
	}
}
