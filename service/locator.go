package service

import (
	"context"
	"log/slog"

	"github.com/signdesk/esign-backend/model"
)

// idExtractor is one strategy for pulling an identifier out of a raw
// payload. Returns "" when the payload does not carry the identifier in the
// shape this strategy understands.
type idExtractor func(payload map[string]any) string

// Field-name alternatives observed across provider event versions, in
// priority order. Nested variants look under a "result" or "data" wrapper.
var (
	documentIDExtractors = buildExtractors([]string{"documentId", "document_id", "id"})
	requestIDExtractors  = buildExtractors([]string{"requestId", "request_id", "signingRequestId"})
)

func buildExtractors(fields []string) []idExtractor {
	extractors := make([]idExtractor, 0, len(fields)+2)
	for _, f := range fields {
		field := f
		extractors = append(extractors, func(p map[string]any) string {
			s, _ := stringField(p, field)
			return s
		})
	}
	for _, w := range []string{"result", "data"} {
		wrapper := w
		extractors = append(extractors, func(p map[string]any) string {
			nested, ok := p[wrapper].(map[string]any)
			if !ok {
				return ""
			}
			for _, f := range fields {
				if s, ok := stringField(nested, f); ok {
					return s
				}
			}
			return ""
		})
	}
	return extractors
}

func extractID(payload map[string]any, extractors []idExtractor) string {
	for _, extract := range extractors {
		if id := extract(payload); id != "" {
			return id
		}
	}
	return ""
}

// ContractLocator resolves a webhook payload to the locally-owned contract
// it refers to. The provider's payload shape varies across event types, so
// the locator tries several field shapes for each identifier before giving
// up. A miss is not an error: unmatched webhooks are acknowledged and
// ignored upstream.
type ContractLocator struct {
	store ContractStore
}

func NewContractLocator(store ContractStore) *ContractLocator {
	return &ContractLocator{store: store}
}

// Locate returns the matching contract or nil when no record matches.
// Document id is tried first as the more reliable key; request id second.
// A storage error on one lookup is logged and treated as no match for that
// key rather than propagated.
func (l *ContractLocator) Locate(ctx context.Context, payload map[string]any) *model.Contract {
	if docID := extractID(payload, documentIDExtractors); docID != "" {
		c, err := l.store.FindByProviderDocumentID(ctx, docID)
		if err != nil {
			slog.Warn("contract lookup by document id failed", "document_id", docID, "error", err)
		} else if c != nil {
			return c
		}
	}

	if reqID := extractID(payload, requestIDExtractors); reqID != "" {
		c, err := l.store.FindByProviderRequestID(ctx, reqID)
		if err != nil {
			slog.Warn("contract lookup by request id failed", "request_id", reqID, "error", err)
		} else if c != nil {
			return c
		}
	}

	return nil
}
