package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/signdesk/esign-backend/model"
)

// ErrContractNotFound is returned by point operations addressing an id that
// does not exist. Reads by provider identifier return (nil, nil) instead so
// callers can tell "no match" from a query failure.
var ErrContractNotFound = errors.New("contract not found")

// ContractStore is the persistence contract required by the webhook core
// and the read endpoints. Lookups by provider identifier are point queries
// expecting at most one match; Update applies partial field updates without
// clobbering unspecified fields.
type ContractStore interface {
	Save(ctx context.Context, c *model.Contract) error
	GetByID(ctx context.Context, id string) (*model.Contract, error)
	FindByProviderDocumentID(ctx context.Context, docID string) (*model.Contract, error)
	FindByProviderRequestID(ctx context.Context, reqID string) (*model.Contract, error)
	ListByTenant(ctx context.Context, tenant, status string) ([]*model.Contract, error)
	Update(ctx context.Context, id string, upd model.ContractUpdate) error
}

// MemoryStore is a mutex-guarded in-memory ContractStore used for tests and
// dev mode. Production runs the Postgres store.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[string]*model.Contract
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]*model.Contract),
	}
}

func (s *MemoryStore) Save(_ context.Context, c *model.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	s.contracts[c.ID] = cloneContract(c)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, nil
	}
	return cloneContract(c), nil
}

func (s *MemoryStore) FindByProviderDocumentID(_ context.Context, docID string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contracts {
		if c.ProviderDocumentID != "" && c.ProviderDocumentID == docID {
			return cloneContract(c), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindByProviderRequestID(_ context.Context, reqID string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contracts {
		if c.ProviderRequestID != "" && c.ProviderRequestID == reqID {
			return cloneContract(c), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListByTenant(_ context.Context, tenant, status string) ([]*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Contract
	for _, c := range s.contracts {
		if c.Tenant != tenant {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		result = append(result, cloneContract(c))
	}
	return result, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, upd model.ContractUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return ErrContractNotFound
	}
	upd.ApplyTo(c)
	return nil
}

// cloneContract copies a contract so callers cannot mutate stored state
// behind the lock.
func cloneContract(c *model.Contract) *model.Contract {
	cp := *c
	if c.ContractData != nil {
		cp.ContractData = make(map[string]any, len(c.ContractData))
		for k, v := range c.ContractData {
			cp.ContractData[k] = v
		}
	}
	return &cp
}
