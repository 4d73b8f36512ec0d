// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfkit/cli/internal/session"
)

func TestSessionRoundTrip(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	m := NewManager(ring)

	_, err := m.LoadSession()
	assert.True(t, errors.Is(err, ErrNotLoggedIn))

	s := session.Session{
		AccessToken: "00Dx!AQ", RefreshToken: "5Aep", InstanceURL: "https://acme.my.example.com",
		APIVersion: "60.0", ClientID: "3MVG9", ClientSecret: "shh", UserID: "005x",
	}
	require.NoError(t, m.SaveSession(s))

	raw, err := ring.Get(KeySession)
	require.NoError(t, err)
	assert.NotContains(t, string(raw.Data), "shh")

	got, err := m.LoadSession()
	require.NoError(t, err)
	assert.Equal(t, s, got)

	// Saving without a secret drops the previous one.
	s.ClientSecret = ""
	require.NoError(t, m.SaveSession(s))
	got, err = m.LoadSession()
	require.NoError(t, err)
	assert.Empty(t, got.ClientSecret)

	require.NoError(t, m.ClearSession())
	_, err = m.LoadSession()
	assert.True(t, errors.Is(err, ErrNotLoggedIn))
}

func TestLoadSession_Corrupt(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: KeySession, Data: []byte("{")}})
	_, err := NewManager(ring).LoadSession()
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotLoggedIn))
}

func TestDBDSN(t *testing.T) {
	m := NewManager(keyring.NewArrayKeyring(nil))

	dsn, err := m.LoadDBDSN()
	require.NoError(t, err)
	assert.Empty(t, dsn)

	require.NoError(t, m.SaveDBDSN("postgresql://app@db/crm"))
	dsn, err = m.LoadDBDSN()
	require.NoError(t, err)
	assert.Equal(t, "postgresql://app@db/crm", dsn)

	require.NoError(t, m.ClearDB())
	dsn, _ = m.LoadDBDSN()
	assert.Empty(t, dsn)
}

func TestClearAll(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	m := NewManager(ring)
	require.NoError(t, m.SaveSession(session.Session{AccessToken: "a", InstanceURL: "https://x.example.com", ClientSecret: "s"}))
	require.NoError(t, m.SaveDBDSN("postgresql://app@db/crm"))

	require.NoError(t, m.ClearAll())
	keys, err := ring.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
