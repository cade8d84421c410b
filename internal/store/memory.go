package store

import (
	"context"
	"sync"

	"github.com/aquatrade/backend/internal/core"
)

// MemoryUserStore is a mutex-guarded in-memory UserRepository, used in tests
// and single-node local runs.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]core.UserAccount
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]core.UserAccount)}
}

func (m *MemoryUserStore) Get(_ context.Context, walletAddress string) (*core.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[walletAddress]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryUserStore) CreateIfAbsent(_ context.Context, walletAddress string) (*core.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[walletAddress]; ok {
		return &u, nil
	}
	u := core.UserAccount{WalletAddress: walletAddress}
	m.users[walletAddress] = u
	return &u, nil
}

func (m *MemoryUserStore) SetViewingKeys(_ context.Context, walletAddress, sscrtKey, susdcKey string) (*core.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[walletAddress]
	if !ok {
		return nil, ErrNotFound
	}
	u.SscrtKey = sscrtKey
	u.SusdcKey = susdcKey
	m.users[walletAddress] = u
	return &u, nil
}

func (m *MemoryUserStore) SetAllowanceFlags(_ context.Context, walletAddress string, sscrtAllowed, susdcAllowed bool) (*core.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[walletAddress]
	if !ok {
		return nil, ErrNotFound
	}
	u.SscrtAllowed = sscrtAllowed
	u.SusdcAllowed = susdcAllowed
	m.users[walletAddress] = u
	return &u, nil
}
