package auth

import "sync"

// MockStore is an in-memory CredentialStore for tests.
type MockStore struct {
	mu      sync.RWMutex
	entries map[string]Credentials
	// FailStore makes Store return ErrStoreUnavailable, for fallback tests.
	FailStore bool
}

func NewMockStore() *MockStore {
	return &MockStore{entries: make(map[string]Credentials)}
}

func (m *MockStore) Store(creds *Credentials) error {
	if m.FailStore {
		return ErrStoreUnavailable
	}
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[creds.Username] = *creds
	return nil
}

func (m *MockStore) Retrieve(username string) (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	creds, ok := m.entries[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &creds, nil
}

func (m *MockStore) List() ([]*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Credentials
	for _, creds := range m.entries {
		c := creds
		out = append(out, &c)
	}
	return out, nil
}

func (m *MockStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.entries, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[username]
	return ok
}
