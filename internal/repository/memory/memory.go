// Package memory holds in-process repositories with the same semantics as the
// MySQL ones; used by component tests and local tooling.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/lead-gateway/internal/model"
	"github.com/jmehdipour/lead-gateway/internal/repository"
)

// Store keeps tenants and grants behind one mutex, like a single database.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]model.Tenant
	byKey   map[string]string // publishable key -> tenant id
	grants  []model.Grant     // append-only, id = index+1

	// Calls counts repository calls by method name; tests use it to assert
	// which lookups happened.
	Calls map[string]int
}

func NewStore() *Store {
	return &Store{
		tenants: make(map[string]model.Tenant),
		byKey:   make(map[string]string),
		Calls:   make(map[string]int),
	}
}

var (
	_ repository.TenantsRepository     = (*Store)(nil)
	_ repository.CredentialsRepository = (*Store)(nil)
)

func (s *Store) count(name string) { s.Calls[name]++ }

// CallCount returns how many times the named method ran.
func (s *Store) CallCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Calls[name]
}

func (s *Store) GetByPublishableKey(_ context.Context, key string) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("GetByPublishableKey")

	id, ok := s.byKey[key]
	if !ok {
		return nil, nil
	}
	t := s.tenants[id]
	return &t, nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("GetByID")

	t, ok := s.tenants[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) Create(_ context.Context, t model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Create")

	if _, ok := s.tenants[t.ID]; ok {
		return fmt.Errorf("duplicate tenant id %q", t.ID)
	}
	if _, ok := s.byKey[t.PublishableKey]; ok {
		return fmt.Errorf("duplicate publishable key %q", t.PublishableKey)
	}
	if t.Status == "" {
		t.Status = model.TenantActive
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	s.tenants[t.ID] = t
	s.byKey[t.PublishableKey] = t.ID
	return nil
}

func (s *Store) UpdateOrigins(_ context.Context, id string, origins model.Origins) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("UpdateOrigins")

	t, ok := s.tenants[id]
	if !ok {
		return repository.ErrTenantNotFound
	}
	t.AllowedOrigins = append(model.Origins(nil), origins...)
	t.UpdatedAt = time.Now().UTC()
	s.tenants[id] = t
	return nil
}

func (s *Store) Save(_ context.Context, c model.Credential, b model.SheetBinding) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("Save")

	if _, ok := s.tenants[c.TenantID]; !ok {
		return 0, false, repository.ErrTenantNotFound
	}
	for _, g := range s.grants {
		if g.TenantID == c.TenantID && g.SheetID == b.SheetID {
			return g.ID, false, nil
		}
	}
	now := time.Now().UTC()
	for i := range s.grants {
		if s.grants[i].TenantID == c.TenantID && s.grants[i].Status == model.CredentialActive {
			s.grants[i].Status = model.CredentialSuperseded
			s.grants[i].UpdatedAt = now
		}
	}

	c.ID = int64(len(s.grants) + 1)
	c.Status = model.CredentialActive
	c.CreatedAt, c.UpdatedAt = now, now
	s.grants = append(s.grants, model.Grant{Credential: c, SheetBinding: b})
	return c.ID, true, nil
}

func (s *Store) LoadActive(_ context.Context, tenantID string) (*model.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("LoadActive")

	for i := len(s.grants) - 1; i >= 0; i-- {
		g := s.grants[i]
		if g.TenantID == tenantID && g.Status == model.CredentialActive {
			return &g, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateToken(_ context.Context, id int64, accessToken, refreshToken string, expiry sql.NullTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("UpdateToken")

	g, err := s.grant(id)
	if err != nil {
		return err
	}
	g.AccessToken = accessToken
	if refreshToken != "" {
		g.RefreshToken = refreshToken
	}
	g.Expiry = expiry
	g.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) SetStatus(_ context.Context, id int64, status model.CredentialStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("SetStatus")

	if !status.Valid() {
		return fmt.Errorf("invalid credential status %q", status)
	}
	g, err := s.grant(id)
	if err != nil {
		return err
	}
	g.Status = status
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// Grants returns a copy of every stored grant for the tenant, oldest first.
func (s *Store) Grants(tenantID string) []model.Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Grant
	for _, g := range s.grants {
		if g.TenantID == tenantID {
			out = append(out, g)
		}
	}
	return out
}

func (s *Store) grant(id int64) (*model.Grant, error) {
	if id <= 0 || id > int64(len(s.grants)) {
		return nil, fmt.Errorf("grant %d not found", id)
	}
	return &s.grants[id-1], nil
}
