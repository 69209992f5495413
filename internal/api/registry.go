package api

import (
	"context"
	"sync"

	"nexus.chat/internal/account"
	"nexus.chat/internal/auth"
	"nexus.chat/internal/cloudsync"
	"nexus.chat/internal/localstore"
)

// Registry hands each auth subject its own account manager. Anonymous
// requests share one manager backed by the local store, mirroring a signed-
// out client. Each account is edited from one manager at a time.
type Registry struct {
	store *localstore.Store
	sync  cloudsync.Service
	opts  []account.Option

	mu        sync.Mutex
	anonymous *account.Manager
	byUser    map[string]*account.Manager
}

func NewRegistry(store *localstore.Store, svc cloudsync.Service, opts ...account.Option) *Registry {
	return &Registry{
		store:  store,
		sync:   svc,
		opts:   opts,
		byUser: map[string]*account.Manager{},
	}
}

// ManagerFor resolves the manager for a request. A valid token whose session
// is gone gets its state resumed from the backend.
func (reg *Registry) ManagerFor(ctx context.Context, claims *auth.Claims) *account.Manager {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if claims == nil {
		if reg.anonymous == nil {
			reg.anonymous = account.NewManager(reg.store, reg.sync, reg.opts...)
		}
		return reg.anonymous
	}

	if m, ok := reg.byUser[claims.UserID]; ok {
		return m
	}
	m := account.NewManager(reg.store, reg.sync, reg.opts...)
	m.Resume(ctx, claims.UserID, claims.Email)
	reg.byUser[claims.UserID] = m
	return m
}

// Bind registers a freshly authenticated manager under its user id.
func (reg *Registry) Bind(userID string, m *account.Manager) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.byUser[userID] = m
}

// Drop forgets an account's manager, typically at logout.
func (reg *Registry) Drop(userID string) {
	reg.mu.Lock()
	m := reg.byUser[userID]
	delete(reg.byUser, userID)
	reg.mu.Unlock()

	if m != nil {
		m.Wait()
	}
}

// ExpireTrials sweeps every live manager. Implements jobs.TrialExpirer.
func (reg *Registry) ExpireTrials() int {
	reg.mu.Lock()
	managers := make([]*account.Manager, 0, len(reg.byUser)+1)
	if reg.anonymous != nil {
		managers = append(managers, reg.anonymous)
	}
	for _, m := range reg.byUser {
		managers = append(managers, m)
	}
	reg.mu.Unlock()

	n := 0
	for _, m := range managers {
		if m.ExpireTrial() {
			n++
		}
	}
	return n
}

// Wait flushes pending saves on every live manager.
func (reg *Registry) Wait() {
	reg.mu.Lock()
	managers := make([]*account.Manager, 0, len(reg.byUser)+1)
	if reg.anonymous != nil {
		managers = append(managers, reg.anonymous)
	}
	for _, m := range reg.byUser {
		managers = append(managers, m)
	}
	reg.mu.Unlock()

	for _, m := range managers {
		m.Wait()
	}
}
