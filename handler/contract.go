package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signdesk/esign-backend/middleware"
	"github.com/signdesk/esign-backend/model"
	"github.com/signdesk/esign-backend/pkg/logger"
	"github.com/signdesk/esign-backend/service"
)

type ContractHandler struct {
	store   service.ContractStore
	archive *service.ArchiveService // optional, nil disables archive links
}

func NewContractHandler(store service.ContractStore, archive *service.ArchiveService) *ContractHandler {
	return &ContractHandler{store: store, archive: archive}
}

// contractDetail is the response body of Get: the contract record plus a
// time-limited link to the durable copy of the signed document, when one
// was archived.
type contractDetail struct {
	*model.Contract
	ArchiveURL string `json:"archive_url,omitempty"`
}

// List returns the contracts of the current tenant, optionally filtered by
// status.
func (h *ContractHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	status := c.Query("status")

	contracts, err := h.store.ListByTenant(c.Request.Context(), tenant, status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list contracts"})
		return
	}

	result := make([]gin.H, len(contracts))
	for i, contract := range contracts {
		result[i] = gin.H{
			"id":              contract.ID,
			"title":           contract.Title,
			"signer_name":     contract.SignerName,
			"status":          contract.Status,
			"provider_status": contract.ProviderStatus,
			"created_at":      contract.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"updated_at":      contract.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{"contracts": result})
}

// Get returns a single contract with its full detail.
func (h *ContractHandler) Get(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	contract, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load contract"})
		return
	}
	if contract == nil || contract.Tenant != tenant {
		c.JSON(http.StatusNotFound, gin.H{"error": "Contract not found"})
		return
	}

	c.JSON(http.StatusOK, contractDetail{
		Contract:   contract,
		ArchiveURL: h.archiveURL(c, contract),
	})
}

// archiveURL presigns the archived signed document, if the contract has one.
// The provider's own download reference expires, so the archive link is the
// durable way to retrieve the document. Best-effort: a presign failure
// leaves the link empty rather than failing the read.
func (h *ContractHandler) archiveURL(c *gin.Context, contract *model.Contract) string {
	if h.archive == nil {
		return ""
	}
	objectName, ok := contract.ContractData["archived_pdf_object"].(string)
	if !ok || objectName == "" {
		return ""
	}

	url, err := h.archive.PresignedURL(c.Request.Context(), objectName)
	if err != nil {
		logger.Warn(c.Request.Context(), "failed to presign archived document",
			"contract_id", contract.ID, "object", objectName, "error", err)
		return ""
	}
	return url
}
