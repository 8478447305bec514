package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotLoggedIn is returned when no stored credential exists.
var ErrNotLoggedIn = errors.New("not logged in")

const credentialsFile = "credentials.json"

// Credentials is the signed-in subscriber as stored on disk.
type Credentials struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
}

// Expired reports whether the credential is past its expiry at now.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// CredentialStore persists the credential in a 0600 file. It also serves as
// the entitlement session context.
type CredentialStore struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	loaded bool
	creds  *Credentials
}

// NewCredentialStore creates a store in dir.
func NewCredentialStore(dir string) *CredentialStore {
	return &CredentialStore{path: filepath.Join(dir, credentialsFile), now: time.Now}
}

// Path returns the credential file location.
func (s *CredentialStore) Path() string { return s.path }

// Load returns the stored credential or ErrNotLoggedIn.
func (s *CredentialStore) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *CredentialStore) loadLocked() (*Credentials, error) {
	if s.loaded {
		if s.creds == nil {
			return nil, ErrNotLoggedIn
		}
		c := *s.creds
		return &c, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.loaded = true
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	if c.Token == "" {
		s.loaded = true
		return nil, ErrNotLoggedIn
	}
	s.loaded, s.creds = true, &c
	out := c
	return &out, nil
}

// Save writes the credential atomically with owner-only permissions.
func (s *CredentialStore) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create credentials file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credentials file: %w", err)
	}

	s.loaded, s.creds = true, &c
	return nil
}

// Clear removes the stored credential.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loaded, s.creds = true, nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// Identity returns the signed-in user ID, or "" when signed out.
func (s *CredentialStore) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.loadLocked()
	if err != nil {
		return ""
	}
	return c.UserID
}

// Credential returns the bearer token if one is stored and unexpired.
func (s *CredentialStore) Credential() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.loadLocked()
	if err != nil || c.Expired(s.now()) {
		return "", false
	}
	return c.Token, true
}
