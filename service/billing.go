package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/signdesk/esign-backend/config"
)

// BillingService confirms card billing keys with the card-billing provider.
// One linear call: exchange the auth key issued by the card form for a
// reusable billing key.
type BillingService struct {
	config     *config.BillingConfig
	httpClient *http.Client
}

func NewBillingService(cfg *config.BillingConfig) *BillingService {
	return &BillingService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type billingKeyRequest struct {
	AuthKey     string `json:"authKey"`
	CustomerKey string `json:"customerKey"`
}

// BillingKeyResult is the confirmed billing key plus the card facts the
// provider returns alongside it.
type BillingKeyResult struct {
	BillingKey  string `json:"billingKey"`
	CustomerKey string `json:"customerKey"`
	CardCompany string `json:"cardCompany"`
	CardNumber  string `json:"cardNumber"`
}

// ConfirmBillingKey exchanges a card-auth key for a billing key.
func (s *BillingService) ConfirmBillingKey(ctx context.Context, authKey, customerKey string) (*BillingKeyResult, error) {
	reqBody, err := json.Marshal(billingKeyRequest{
		AuthKey:     authKey,
		CustomerKey: customerKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/v1/billing/authorizations/confirm", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.config.SecretKey+":")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing key confirmation failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result BillingKeyResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if result.BillingKey == "" {
		return nil, fmt.Errorf("response contained no billing key")
	}

	return &result, nil
}
