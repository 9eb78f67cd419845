package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/signdesk/esign-backend/model"
	"github.com/signdesk/esign-backend/pkg/logger"
	"github.com/signdesk/esign-backend/service"
)

// BillingHandler confirms card billing keys. One linear call sequence:
// exchange the auth key with the billing provider, then persist the billing
// key on the contract when one is referenced. Unlike the webhook path this
// endpoint has no provider retry loop behind it, so failures surface as
// normal HTTP error statuses.
type BillingHandler struct {
	billing *service.BillingService
	store   service.ContractStore
}

func NewBillingHandler(billing *service.BillingService, store service.ContractStore) *BillingHandler {
	return &BillingHandler{billing: billing, store: store}
}

type ConfirmBillingRequest struct {
	AuthKey     string `json:"authKey" binding:"required"`
	CustomerKey string `json:"customerKey" binding:"required"`
	ContractID  string `json:"contractId"`
}

// Confirm exchanges a card-auth key for a billing key.
func (h *BillingHandler) Confirm(c *gin.Context) {
	var req ConfirmBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authKey and customerKey are required"})
		return
	}

	ctx := c.Request.Context()

	result, err := h.billing.ConfirmBillingKey(ctx, req.AuthKey, req.CustomerKey)
	if err != nil {
		logger.Error(ctx, "billing key confirmation failed", "customer_key", req.CustomerKey, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Billing key confirmation failed"})
		return
	}

	if req.ContractID != "" {
		upd := model.ContractUpdate{
			BillingKey: &result.BillingKey,
			ContractData: map[string]any{
				"card_company": result.CardCompany,
				"card_number":  result.CardNumber,
			},
		}
		if err := h.store.Update(ctx, req.ContractID, upd); err != nil {
			logger.Error(ctx, "failed to persist billing key",
				"contract_id", req.ContractID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save billing key"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"billingKey":  result.BillingKey,
		"cardCompany": result.CardCompany,
		"contractId":  req.ContractID,
	})
}
