package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signdesk/esign-backend/model"
)

// PostgresStore is the production ContractStore backed by pgx. Row-level
// update semantics of the database are the only serialization point the
// webhook core relies on; no additional locking is taken.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const contractsSchema = `
CREATE TABLE IF NOT EXISTS contracts (
	id                   TEXT PRIMARY KEY,
	tenant               TEXT NOT NULL DEFAULT '',
	title                TEXT NOT NULL DEFAULT '',
	signer_name          TEXT NOT NULL DEFAULT '',
	signer_email         TEXT NOT NULL DEFAULT '',
	provider_document_id TEXT,
	provider_request_id  TEXT,
	status               TEXT NOT NULL DEFAULT 'draft',
	provider_status      TEXT NOT NULL DEFAULT '',
	sent_at              TIMESTAMPTZ,
	viewed_at            TIMESTAMPTZ,
	signed_at            TIMESTAMPTZ,
	completed_at         TIMESTAMPTZ,
	contract_data        JSONB NOT NULL DEFAULT '{}'::jsonb,
	signed_pdf_url       TEXT NOT NULL DEFAULT '',
	audit_trail_url      TEXT NOT NULL DEFAULT '',
	billing_key          TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS contracts_provider_document_id_idx
	ON contracts (provider_document_id) WHERE provider_document_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS contracts_provider_request_id_idx
	ON contracts (provider_request_id) WHERE provider_request_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS contracts_tenant_idx ON contracts (tenant);
`

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse store dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, contractsSchema); err != nil {
		return fmt.Errorf("failed to ensure contracts schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const contractColumns = `id, tenant, title, signer_name, signer_email,
	provider_document_id, provider_request_id, status, provider_status,
	sent_at, viewed_at, signed_at, completed_at, contract_data,
	signed_pdf_url, audit_trail_url, billing_key, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, c *model.Contract) error {
	data, err := json.Marshal(orEmptyMap(c.ContractData))
	if err != nil {
		return fmt.Errorf("failed to marshal contract data: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO contracts (id, tenant, title, signer_name, signer_email,
			provider_document_id, provider_request_id, status, provider_status,
			sent_at, viewed_at, signed_at, completed_at, contract_data,
			signed_pdf_url, audit_trail_url, billing_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.Tenant, c.Title, c.SignerName, c.SignerEmail,
		nullIfEmpty(c.ProviderDocumentID), nullIfEmpty(c.ProviderRequestID),
		c.Status, c.ProviderStatus,
		c.SentAt, c.ViewedAt, c.SignedAt, c.CompletedAt, data,
		c.SignedPDFURL, c.AuditTrailURL, c.BillingKey,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contract: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*model.Contract, error) {
	return s.queryOne(ctx, "SELECT "+contractColumns+" FROM contracts WHERE id = $1", id)
}

func (s *PostgresStore) FindByProviderDocumentID(ctx context.Context, docID string) (*model.Contract, error) {
	return s.queryOne(ctx, "SELECT "+contractColumns+" FROM contracts WHERE provider_document_id = $1", docID)
}

func (s *PostgresStore) FindByProviderRequestID(ctx context.Context, reqID string) (*model.Contract, error) {
	return s.queryOne(ctx, "SELECT "+contractColumns+" FROM contracts WHERE provider_request_id = $1", reqID)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg any) (*model.Contract, error) {
	row := s.pool.QueryRow(ctx, query, arg)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Zero rows is "no match", distinguishable from a query failure.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query contract: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenant, status string) ([]*model.Contract, error) {
	query := "SELECT " + contractColumns + " FROM contracts WHERE tenant = $1"
	args := []any{tenant}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var result []*model.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Update applies a partial update by primary id. Unset fields are left
// untouched; contract_data merges into the stored JSONB so earlier audit
// facts survive.
func (s *PostgresStore) Update(ctx context.Context, id string, upd model.ContractUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	next := 2

	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, next))
		args = append(args, value)
		next++
	}

	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.ProviderStatus != nil {
		add("provider_status", *upd.ProviderStatus)
	}
	if upd.SentAt != nil {
		add("sent_at", *upd.SentAt)
	}
	if upd.ViewedAt != nil {
		add("viewed_at", *upd.ViewedAt)
	}
	if upd.SignedAt != nil {
		add("signed_at", *upd.SignedAt)
	}
	if upd.CompletedAt != nil {
		add("completed_at", *upd.CompletedAt)
	}
	if upd.SignedPDFURL != nil {
		add("signed_pdf_url", *upd.SignedPDFURL)
	}
	if upd.AuditTrailURL != nil {
		add("audit_trail_url", *upd.AuditTrailURL)
	}
	if upd.BillingKey != nil {
		add("billing_key", *upd.BillingKey)
	}
	if len(upd.ContractData) > 0 {
		data, err := json.Marshal(upd.ContractData)
		if err != nil {
			return fmt.Errorf("failed to marshal contract data: %w", err)
		}
		sets = append(sets, fmt.Sprintf("contract_data = contract_data || $%d::jsonb", next))
		args = append(args, data)
		next++
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE contracts SET "+strings.Join(sets, ", ")+" WHERE id = $1", args...)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContractNotFound
	}
	return nil
}

func scanContract(row pgx.Row) (*model.Contract, error) {
	var (
		c            model.Contract
		docID, reqID *string
		data         []byte
	)
	err := row.Scan(&c.ID, &c.Tenant, &c.Title, &c.SignerName, &c.SignerEmail,
		&docID, &reqID, &c.Status, &c.ProviderStatus,
		&c.SentAt, &c.ViewedAt, &c.SignedAt, &c.CompletedAt, &data,
		&c.SignedPDFURL, &c.AuditTrailURL, &c.BillingKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if docID != nil {
		c.ProviderDocumentID = *docID
	}
	if reqID != nil {
		c.ProviderRequestID = *reqID
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &c.ContractData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contract data: %w", err)
		}
	}
	return &c, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
