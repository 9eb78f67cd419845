package service

import (
	"time"

	"github.com/signdesk/esign-backend/model"
)

// TransitionResult is what the engine decided for one event: the partial
// update to persist, a human-readable summary for the webhook response, and
// whether the orchestrator should fetch completion artifacts.
type TransitionResult struct {
	Update         model.ContractUpdate
	NewStatus      string
	Summary        string
	FetchArtifacts bool
}

// Transition computes how a canonical event moves a contract through its
// lifecycle. Pure function: it never touches storage or the provider.
//
// Every branch stamps the provider-status mirror with the raw event/status
// string, even when the canonical status does not move, so each received
// event stays visible in diagnostics. Lifecycle timestamps are set at most
// once, on the first transition into the corresponding status.
//
// Providers redeliver events, so duplicates must be harmless: a partial
// "signed" event arriving after full completion is an explicit no-op and
// must never regress the contract.
func Transition(c *model.Contract, event, raw string, payload map[string]any, now time.Time) TransitionResult {
	res := TransitionResult{NewStatus: c.Status}
	if raw == "" {
		raw = event
	}
	res.Update.ProviderStatus = &raw

	switch event {
	case EventSigningCompletedAll, "completed":
		res.NewStatus = model.StatusCompleted
		res.Update.Status = strPtr(model.StatusCompleted)
		res.FetchArtifacts = true
		res.Summary = "signing completed by all parties"
		if c.CompletedAt == nil {
			res.Update.CompletedAt = &now
		}
		// A contract can complete without an intermediate "signed" event.
		if c.Status != model.StatusSigned && c.SignedAt == nil {
			res.Update.SignedAt = &now
		}

	case EventSigningCompleted, "signed":
		if c.Status == model.StatusCompleted {
			// Stale or duplicate partial-signer event after full
			// completion: mirror only, no regression.
			res.Summary = "already completed, signer event ignored"
			return res
		}
		res.NewStatus = model.StatusSigned
		res.Update.Status = strPtr(model.StatusSigned)
		res.Summary = "signed by a signer"
		if c.SignedAt == nil {
			res.Update.SignedAt = &now
		}
		res.Update.ContractData = lastSignerFacts(payload, now)

	case EventSigningCanceled, "cancelled", "canceled":
		if model.IsTerminalStatus(c.Status) {
			// Redelivered terminal events must not churn the audit facts.
			res.Summary = "already terminal, cancel event ignored"
			return res
		}
		res.NewStatus = model.StatusRejected
		res.Update.Status = strPtr(model.StatusRejected)
		res.Summary = "signing canceled"
		res.Update.ContractData = cancelFacts(payload, now)

	case EventSignCreating, "created":
		if c.Status != model.StatusDraft {
			res.Summary = "creation event on non-draft contract, status kept"
			return res
		}
		res.NewStatus = model.StatusSent
		res.Update.Status = strPtr(model.StatusSent)
		res.Summary = "contract sent for signing"
		if c.SentAt == nil {
			res.Update.SentAt = &now
		}

	case "opened", "viewed":
		if c.Status != model.StatusSent {
			res.Summary = "view event outside sent state, status kept"
			return res
		}
		res.NewStatus = model.StatusViewed
		res.Update.Status = strPtr(model.StatusViewed)
		res.Summary = "contract viewed by signer"
		if c.ViewedAt == nil {
			res.Update.ViewedAt = &now
		}

	case EventExpired:
		if model.IsTerminalStatus(c.Status) {
			res.Summary = "already terminal, expiry event ignored"
			return res
		}
		res.NewStatus = model.StatusExpired
		res.Update.Status = strPtr(model.StatusExpired)
		res.Summary = "signing request expired"

	case EventRejected, "declined":
		if model.IsTerminalStatus(c.Status) {
			res.Summary = "already terminal, rejection event ignored"
			return res
		}
		res.NewStatus = model.StatusRejected
		res.Update.Status = strPtr(model.StatusRejected)
		res.Summary = "signing rejected"

	default:
		res.Summary = "unrecognized event, status mirror updated"
	}

	return res
}

// lastSignerFacts collects the last-signer audit fact from a payload, if
// present. Field names vary across provider versions.
func lastSignerFacts(payload map[string]any, now time.Time) map[string]any {
	facts := map[string]any{
		"last_signed_at": now.Format(time.RFC3339),
	}
	if name := firstString(payload, "signerName", "signer_name", "signer"); name != "" {
		facts["last_signer_name"] = name
	}
	if email := firstString(payload, "signerEmail", "signer_email", "email"); email != "" {
		facts["last_signer_email"] = email
	}
	if order, ok := payload["signingOrder"]; ok {
		facts["signing_order"] = order
	} else if order, ok := payload["signing_order"]; ok {
		facts["signing_order"] = order
	}
	return facts
}

// cancelFacts collects the cancellation reason, if present.
func cancelFacts(payload map[string]any, now time.Time) map[string]any {
	facts := map[string]any{
		"canceled_at": now.Format(time.RFC3339),
	}
	if reason := firstString(payload, "reason", "cancelReason", "cancel_reason", "message"); reason != "" {
		facts["cancel_reason"] = reason
	}
	return facts
}

func firstString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := stringField(payload, k); ok {
			return s
		}
	}
	return ""
}

func strPtr(s string) *string {
	return &s
}
