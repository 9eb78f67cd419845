package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/signdesk/esign-backend/config"
)

// ESignService talks to the e-signature provider: credential exchange for a
// short-lived access token, and retrieval of the download references the
// provider derives once signing completes.
type ESignService struct {
	config     *config.ESignConfig
	httpClient *http.Client
}

func NewESignService(cfg *config.ESignConfig) *ESignService {
	return &ESignService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type downloadResponse struct {
	DownloadURL string `json:"download_url"`
	ExpiresAt   string `json:"expires_at"`
}

// Artifacts holds the download references for a completed signing
// transaction. Either field may be empty when its retrieval failed.
type Artifacts struct {
	SignedPDFURL  string
	AuditTrailURL string
}

// GetAccessToken exchanges the static API credential for a short-lived
// bearer token.
func (s *ESignService) GetAccessToken(ctx context.Context) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"api_key":    s.config.APIKey,
		"api_secret": s.config.APISecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.APIURL+"/oauth/token", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result tokenResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	return result.AccessToken, nil
}

// SignedDocumentURL retrieves a transient download reference for the signed
// PDF of a document. A fresh token is obtained per retrieval.
func (s *ESignService) SignedDocumentURL(ctx context.Context, documentID string) (string, error) {
	return s.fetchDownloadURL(ctx, fmt.Sprintf("%s/documents/%s/file", s.config.APIURL, documentID))
}

// AuditTrailURL retrieves a transient download reference for the audit
// certificate of a document.
func (s *ESignService) AuditTrailURL(ctx context.Context, documentID string) (string, error) {
	return s.fetchDownloadURL(ctx, fmt.Sprintf("%s/documents/%s/audit-trail", s.config.APIURL, documentID))
}

func (s *ESignService) fetchDownloadURL(ctx context.Context, url string) (string, error) {
	token, err := s.GetAccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to obtain access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download reference request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result downloadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.DownloadURL == "" {
		return "", fmt.Errorf("response contained no download URL")
	}

	return result.DownloadURL, nil
}

// FetchArtifacts retrieves both completion artifacts for a document. The
// two retrievals are independent: a failure on one is logged and leaves its
// field empty without aborting the other or the overall transition.
func (s *ESignService) FetchArtifacts(ctx context.Context, documentID string) Artifacts {
	var arts Artifacts

	pdfURL, err := s.SignedDocumentURL(ctx, documentID)
	if err != nil {
		slog.Warn("failed to fetch signed document reference", "document_id", documentID, "error", err)
	} else {
		arts.SignedPDFURL = pdfURL
	}

	auditURL, err := s.AuditTrailURL(ctx, documentID)
	if err != nil {
		slog.Warn("failed to fetch audit trail reference", "document_id", documentID, "error", err)
	} else {
		arts.AuditTrailURL = auditURL
	}

	return arts
}
