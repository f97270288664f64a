package auth

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "nnpu"
	keyringUser    = "data_token"
	tokenFileName  = "data_token"

	// TokenEnvVar holds a bearer token sent with dataset downloads. It takes
	// precedence over the stored token.
	TokenEnvVar = "NNPU_DATA_TOKEN"
)

// ErrNoToken is returned when neither the keychain nor the fallback file
// holds a token.
var ErrNoToken = errors.New("no data token stored")

// Store keeps the dataset download token in the OS keychain. When the
// keychain is unavailable and Dir is set, the token lives in a 0600 file
// under Dir instead.
type Store struct {
	Dir string
}

// NewStore returns a store that falls back to files under dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Save stores token, removing any legacy fallback file on success.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is required")
	}

	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		if s.Dir == "" {
			return errors.Wrap(err, "error saving token to keychain")
		}
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return os.WriteFile(s.path(), []byte(token), 0600)
	}

	s.removeFile()
	return nil
}

// Get returns the stored token. A token found only in the fallback file is
// migrated to the keychain when possible.
func (s *Store) Get() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if err == nil && token != "" {
		return token, nil
	}

	if s.Dir == "" {
		return "", ErrNoToken
	}

	b, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoToken
		}
		return "", errors.Wrapf(err, "error reading token file %s", s.path())
	}

	token = strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}

	if migrateErr := keyring.Set(keyringService, keyringUser, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		s.removeFile()
	}

	return token, nil
}

// Delete removes the token from both the keychain and the fallback file.
func (s *Store) Delete() error {
	err := keyring.Delete(keyringService, keyringUser)
	s.removeFile()
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return errors.Wrap(err, "error deleting token from keychain")
	}
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.Dir, tokenFileName)
}

func (s *Store) removeFile() {
	if s.Dir == "" {
		return
	}
	os.Remove(s.path())
}

// Token resolves the download token: the environment variable first, then
// the store, which falls back to files under dir when the keychain has none.
// It returns an empty string when no token is configured.
func Token(dir string) string {
	if v := strings.TrimSpace(os.Getenv(TokenEnvVar)); v != "" {
		return v
	}
	token, err := NewStore(dir).Get()
	if err != nil {
		slog.Debug("no stored data token", "error", err)
		return ""
	}
	return token
}
