package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/signdesk/esign-backend/model"
	"github.com/signdesk/esign-backend/pkg/logger"
	"github.com/signdesk/esign-backend/service"
)

// WebhookHandler processes lifecycle events from the e-signature provider.
//
// The provider delivers at-least-once and retries on any non-2xx response,
// so every internal failure on this path is converted into a 200
// acknowledgment carrying the error in the body. Retrying a handler that is
// failing on a downstream outage would only loop; redelivery is the
// provider's job and idempotent transitions make it safe.
type WebhookHandler struct {
	store   service.ContractStore
	locator *service.ContractLocator
	esign   *service.ESignService
	archive *service.ArchiveService // optional, nil disables archiving
}

func NewWebhookHandler(store service.ContractStore, esign *service.ESignService, archive *service.ArchiveService) *WebhookHandler {
	return &WebhookHandler{
		store:   store,
		locator: service.NewContractLocator(store),
		esign:   esign,
		archive: archive,
	}
}

// WebhookResponse is the acknowledgment envelope returned for every event.
type WebhookResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	ContractID string `json:"contractId,omitempty"`
	NewStatus  string `json:"newStatus,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HandleWebhook receives a provider event. Only POST reaches this handler;
// OPTIONS preflight is answered by the CORS middleware and other methods
// are rejected by the router.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		// Even an unreadable body is acknowledged; see type comment.
		c.JSON(http.StatusOK, WebhookResponse{Success: false, Error: "invalid JSON payload"})
		return
	}

	resp := h.process(c.Request.Context(), payload)
	c.JSON(http.StatusOK, resp)
}

// process runs the webhook pipeline and is the single place its outcome is
// converted into a response.
func (h *WebhookHandler) process(ctx context.Context, payload map[string]any) WebhookResponse {
	event, raw := service.ClassifyEvent(payload)
	logger.Debug(ctx, "webhook event classified", "event", event, "raw", raw)

	contract := h.locator.Locate(ctx, payload)
	if contract == nil {
		// An unmatched webhook is not an application error: the document
		// may belong to another system sharing the provider account.
		logger.Info(ctx, "webhook for unknown contract ignored", "event", event)
		return WebhookResponse{Success: true, Message: "no matching contract, ignored"}
	}

	// Every log line from here on carries the contract id.
	ctx = context.WithValue(ctx, logger.ContractIDKey, contract.ID)

	res := service.Transition(contract, event, raw, payload, time.Now().UTC())

	if res.FetchArtifacts {
		h.attachArtifacts(ctx, contract, &res)
	}

	if err := h.store.Update(ctx, contract.ID, res.Update); err != nil {
		logger.Error(ctx, "failed to persist contract update", "event", event, "error", err)
		return WebhookResponse{Success: false, ContractID: contract.ID, Error: err.Error()}
	}

	logger.Info(ctx, "webhook processed", "event", event, "new_status", res.NewStatus)

	return WebhookResponse{
		Success:    true,
		Message:    res.Summary,
		ContractID: contract.ID,
		NewStatus:  res.NewStatus,
	}
}

// attachArtifacts fetches the completion artifacts and merges whatever was
// retrieved into the pending update. A failed fetch leaves its field unset.
func (h *WebhookHandler) attachArtifacts(ctx context.Context, contract *model.Contract, res *service.TransitionResult) {
	if h.esign == nil || contract.ProviderDocumentID == "" {
		return
	}

	arts := h.esign.FetchArtifacts(ctx, contract.ProviderDocumentID)
	if arts.SignedPDFURL != "" {
		res.Update.SignedPDFURL = &arts.SignedPDFURL
		h.archiveSignedPDF(ctx, contract.ID, arts.SignedPDFURL, res)
	}
	if arts.AuditTrailURL != "" {
		res.Update.AuditTrailURL = &arts.AuditTrailURL
	}
}

// archiveSignedPDF keeps a durable copy of the signed document. Best-effort:
// the provider reference expires eventually, but a failed archive must not
// block completion.
func (h *WebhookHandler) archiveSignedPDF(ctx context.Context, contractID, downloadURL string, res *service.TransitionResult) {
	if h.archive == nil {
		return
	}

	objectName, err := h.archive.ArchiveSignedPDF(ctx, contractID, downloadURL)
	if err != nil {
		logger.Warn(ctx, "failed to archive signed document", "error", err)
		return
	}
	if res.Update.ContractData == nil {
		res.Update.ContractData = make(map[string]any)
	}
	res.Update.ContractData["archived_pdf_object"] = objectName
}
