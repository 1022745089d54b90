// Package apikey stores the portal API key in the OS keyring.
package apikey

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// Service is the keyring service name.
	Service = "secretvm-cli"
	// User is the keyring entry holding the API key.
	User = "api-key"
)

// ErrNotFound is returned when no API key is stored.
var ErrNotFound = errors.New("no API key stored in keyring")

// Store reads and writes the API key entry.
type Store struct {
	service string
}

// NewStore returns a store using the default service name.
func NewStore() *Store {
	return &Store{service: Service}
}

// Get returns the stored API key.
func (s *Store) Get() (string, error) {
	key, err := keyring.Get(s.service, User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read API key from keyring: %w", err)
	}
	return key, nil
}

// Set stores key, replacing any previous value.
func (s *Store) Set(key string) error {
	if key == "" {
		return errors.New("API key cannot be empty")
	}
	if err := keyring.Set(s.service, User, key); err != nil {
		return fmt.Errorf("failed to store API key in keyring: %w", err)
	}
	return nil
}

// Delete removes the stored key. Deleting a missing key is not an error.
func (s *Store) Delete() error {
	if err := keyring.Delete(s.service, User); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}

// Lookup returns the stored key, or "" when none is stored or the keyring
// is unavailable.
func (s *Store) Lookup() string {
	key, err := s.Get()
	if err != nil {
		return ""
	}
	return key
}
