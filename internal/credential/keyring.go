package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	keyringService = "order-alerts"
	keyringKey     = "cookie"
)

// KeyringSource keeps the cookie string in the OS keyring.
type KeyringSource struct {
	ring keyring.Keyring
}

// OpenKeyring opens the keyring with the platform backends, falling back to
// an encrypted file under fileDir.
func OpenKeyring(fileDir string) (*KeyringSource, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringService + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringSource(ring), nil
}

// NewKeyringSource wraps an already opened keyring.
func NewKeyringSource(ring keyring.Keyring) *KeyringSource {
	return &KeyringSource{ring: ring}
}

func (s *KeyringSource) Cookie(context.Context) (string, error) {
	item, err := s.ring.Get(keyringKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting cookie from keyring: %w", err)
	}
	return string(item.Data), nil
}

// SetCookie stores the cookie string.
func (s *KeyringSource) SetCookie(cookies string) error {
	if err := s.ring.Set(keyring.Item{Key: keyringKey, Data: []byte(cookies)}); err != nil {
		return fmt.Errorf("storing cookie in keyring: %w", err)
	}
	return nil
}
