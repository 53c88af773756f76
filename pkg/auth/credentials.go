// Package auth stores platform login credentials outside the database, with
// system-keychain, encrypted-file and environment backends.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Credentials is one account's login material.
type Credentials struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves credentials for a given account
	Store(creds *Credentials) error

	// Retrieve gets credentials for a specific username
	Retrieve(username string) (*Credentials, error)

	// List returns all stored credentials
	List() ([]*Credentials, error)

	// Delete removes credentials for a specific username
	Delete(username string) error

	// Exists checks if credentials exist for a username
	Exists(username string) bool
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Manager layers the available backends: keychain when present, encrypted
// file always, environment as a read-only last resort.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the usable backends.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("resolving config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("creating encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a manager over explicit backends, mainly for
// tests.
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials using the first backend that accepts them.
func (m *Manager) Store(creds *Credentials) error {
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}
	if creds.Password == "" {
		return ErrInvalidCredentials
	}
	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("storing credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first backend that has them.
func (m *Manager) Retrieve(username string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(username); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("%w for user %s", ErrCredentialsNotFound, username)
}

// List merges all backends, keeping the most recently modified entry per
// username.
func (m *Manager) List() ([]*Credentials, error) {
	byUser := make(map[string]*Credentials)
	for _, store := range m.stores {
		entries, err := store.List()
		if err != nil {
			continue
		}
		for _, creds := range entries {
			if existing, ok := byUser[creds.Username]; !ok || creds.LastModified.After(existing.LastModified) {
				byUser[creds.Username] = creds
			}
		}
	}
	var out []*Credentials
	for _, creds := range byUser {
		out = append(out, creds)
	}
	return out, nil
}

// Delete removes credentials from every backend that holds them.
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	if !deleted && lastErr != nil {
		return fmt.Errorf("deleting credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for user %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// configDir returns the per-user configuration directory, created on demand.
func configDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "igmirror")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "igmirror")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "igmirror")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "igmirror")
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// Sanitize returns a copy safe for logging, with the password masked.
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}
	return &Credentials{
		Username:     creds.Username,
		Password:     "********",
		LastModified: creds.LastModified,
	}
}
