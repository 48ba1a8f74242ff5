package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(keyring.NewArrayKeyring(nil))
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newTestStore()

	_, err := s.IMAPPassword("ops@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetIMAPPassword("ops@example.com", "s3cret"))
	pw, err := s.IMAPPassword("ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	require.NoError(t, s.DeleteIMAPPassword("ops@example.com"))
	_, err = s.IMAPPassword("ops@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveIMAPPassword(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.SetIMAPPassword("ops", "from-ring"))
	open := func() (*Store, error) { return s, nil }

	pw, err := ResolveIMAPPassword("from-env", "ops", func() (*Store, error) {
		t.Fatal("keyring must not be opened when a password is given")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)

	pw, err = ResolveIMAPPassword("", "ops", open)
	require.NoError(t, err)
	assert.Equal(t, "from-ring", pw)

	_, err = ResolveIMAPPassword("", "someone-else", open)
	assert.ErrorContains(t, err, "imap-password")

	_, err = ResolveIMAPPassword("", "ops", func() (*Store, error) { return nil, errors.New("no backend") })
	assert.Error(t, err)
}
