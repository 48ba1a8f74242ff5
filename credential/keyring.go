// Package credential keeps the IMAP password in the system keyring.
package credential

import (
	"github.com/99designs/keyring"
	"github.com/pkg/errors"
)

const serviceName = "mailsheet"

// ErrNotFound means no password is stored for the account.
var ErrNotFound = errors.New("no stored credential")

type Store struct {
	ring keyring.Keyring
}

// Open returns a store backed by the first available system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailsheet/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailsheet-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening keyring")
	}
	return NewStore(ring), nil
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func imapKey(username string) string {
	return "imap:" + username
}

// IMAPPassword returns the stored password for username.
func (s *Store) IMAPPassword(username string) (string, error) {
	item, err := s.ring.Get(imapKey(username))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", errors.Wrapf(err, "getting IMAP password for %q", username)
	}
	return string(item.Data), nil
}

func (s *Store) SetIMAPPassword(username, password string) error {
	err := s.ring.Set(keyring.Item{
		Key:   imapKey(username),
		Data:  []byte(password),
		Label: "mailsheet IMAP password for " + username,
	})
	return errors.Wrapf(err, "setting IMAP password for %q", username)
}

func (s *Store) DeleteIMAPPassword(username string) error {
	err := s.ring.Remove(imapKey(username))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	return errors.Wrapf(err, "deleting IMAP password for %q", username)
}

// ResolveIMAPPassword prefers an explicit password, typically from the
// environment, over the keyring.
func ResolveIMAPPassword(explicit, username string, open func() (*Store, error)) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	s, err := open()
	if err != nil {
		return "", err
	}
	pw, err := s.IMAPPassword(username)
	if errors.Is(err, ErrNotFound) {
		return "", errors.Errorf("no IMAP password for %q: set IMAP_PASSWORD or run the imap-password command", username)
	}
	return pw, err
}
