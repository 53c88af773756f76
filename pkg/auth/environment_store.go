package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from IGMIRROR_USERNAME and
// IGMIRROR_PASSWORD. Read only.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Credentials) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(username string) (*Credentials, error) {
	envUser := os.Getenv("IGMIRROR_USERNAME")
	password := os.Getenv("IGMIRROR_PASSWORD")
	if envUser == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}
	return &Credentials{
		Username:     envUser,
		Password:     password,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
