package model

import (
	"time"
)

// Contract represents a contract document dispatched for electronic signing.
// Provider identifiers are assigned once when the contract is sent to the
// e-signature provider and never change afterwards.
type Contract struct {
	ID          string `json:"id"`
	Tenant      string `json:"tenant"`
	Title       string `json:"title"`
	SignerName  string `json:"signer_name,omitempty"`
	SignerEmail string `json:"signer_email,omitempty"`

	ProviderDocumentID string `json:"provider_document_id,omitempty"`
	ProviderRequestID  string `json:"provider_request_id,omitempty"`

	// Status is the locally-owned lifecycle status. ProviderStatus mirrors
	// the last raw status string reported by the provider and is kept for
	// diagnostics only.
	Status         string `json:"status"`
	ProviderStatus string `json:"provider_status,omitempty"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	ViewedAt    *time.Time `json:"viewed_at,omitempty"`
	SignedAt    *time.Time `json:"signed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ContractData is an open mapping used to append audit facts
	// (last signer, cancellation reason). Updates merge into the existing
	// map; prior keys are never dropped.
	ContractData map[string]any `json:"contract_data,omitempty"`

	SignedPDFURL  string `json:"signed_pdf_url,omitempty"`
	AuditTrailURL string `json:"audit_trail_url,omitempty"`

	BillingKey string `json:"billing_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Contract status constants
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusViewed    = "viewed"
	StatusSigned    = "signed"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
	StatusExpired   = "expired"
)

// IsTerminalStatus reports whether a status is absorbing: once a contract
// is rejected or expired no further transition is modeled.
func IsTerminalStatus(status string) bool {
	return status == StatusRejected || status == StatusExpired
}

// ContractUpdate is a partial update applied against a contract by primary
// id. Only non-nil fields are written; ContractData entries are merged into
// the stored mapping without dropping existing keys.
type ContractUpdate struct {
	Status         *string
	ProviderStatus *string

	SentAt      *time.Time
	ViewedAt    *time.Time
	SignedAt    *time.Time
	CompletedAt *time.Time

	SignedPDFURL  *string
	AuditTrailURL *string
	BillingKey    *string

	ContractData map[string]any
}

// IsEmpty reports whether the update would write nothing.
func (u *ContractUpdate) IsEmpty() bool {
	return u.Status == nil && u.ProviderStatus == nil &&
		u.SentAt == nil && u.ViewedAt == nil && u.SignedAt == nil && u.CompletedAt == nil &&
		u.SignedPDFURL == nil && u.AuditTrailURL == nil && u.BillingKey == nil &&
		len(u.ContractData) == 0
}

// ApplyTo writes the update onto a contract in place. Used by the in-memory
// store; the Postgres store applies the same semantics in SQL.
func (u *ContractUpdate) ApplyTo(c *Contract) {
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.ProviderStatus != nil {
		c.ProviderStatus = *u.ProviderStatus
	}
	if u.SentAt != nil {
		c.SentAt = u.SentAt
	}
	if u.ViewedAt != nil {
		c.ViewedAt = u.ViewedAt
	}
	if u.SignedAt != nil {
		c.SignedAt = u.SignedAt
	}
	if u.CompletedAt != nil {
		c.CompletedAt = u.CompletedAt
	}
	if u.SignedPDFURL != nil {
		c.SignedPDFURL = *u.SignedPDFURL
	}
	if u.AuditTrailURL != nil {
		c.AuditTrailURL = *u.AuditTrailURL
	}
	if u.BillingKey != nil {
		c.BillingKey = *u.BillingKey
	}
	if len(u.ContractData) > 0 {
		if c.ContractData == nil {
			c.ContractData = make(map[string]any, len(u.ContractData))
		}
		for k, v := range u.ContractData {
			c.ContractData[k] = v
		}
	}
	c.UpdatedAt = time.Now()
}
