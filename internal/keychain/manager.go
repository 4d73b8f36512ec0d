// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores sfkit secrets in the OS credential store: the
// session record (tokens, instance, connected app) and the DSN of the SQL
// batch source. Access is serialized through a process-wide Manager.
package keychain

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/terminal"
	"sfkit/cli/internal/xdg"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "sfkit"

// Keys used for storing secrets in the OS keychain.
const (
	KeySession      = "session"
	KeyClientSecret = "client_secret"
	KeyDBDSN        = "db_dsn"
)

// ErrNotLoggedIn is returned when no session record is stored.
var ErrNotLoggedIn = sferrors.New(sferrors.Config, "not logged in; run 'sfkit login'")

var (
	globalManager *Manager
	mu            sync.Mutex
)

// Manager provides thread-safe access to one keyring.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager wraps an opened keyring.
func NewManager(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the process-wide manager, opening the OS keyring on
// first use. A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalManager != nil {
		return globalManager, nil
	}
	ring, err := openRing()
	if err != nil {
		return nil, sferrors.Wrap(sferrors.Config, "secure storage unavailable", err)
	}
	globalManager = NewManager(ring)
	return globalManager, nil
}

// openRing opens the native credential store of the platform. On Linux an
// encrypted file under the XDG state dir is the last resort.
func openRing() (keyring.Keyring, error) {
	cfg := keyring.Config{
		ServiceName:             ServiceName,
		PassPrefix:              ServiceName,
		WinCredPrefix:           ServiceName,
		KWalletAppID:            ServiceName,
		KWalletFolder:           ServiceName,
		LibSecretCollectionName: ServiceName,
	}
	switch runtime.GOOS {
	case "darwin":
		cfg.AllowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		cfg.AllowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
		dir, err := xdg.StateDir()
		if err != nil {
			return nil, err
		}
		cfg.FileDir = filepath.Join(dir, "keyring")
		cfg.FilePasswordFunc = terminal.ReadSecret
	}
	return keyring.Open(cfg)
}

// SaveSession stores s. The client secret is kept under its own key since
// it is excluded from the session's JSON form.
func (m *Manager) SaveSession(s session.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ring.Set(keyring.Item{Key: KeySession, Data: data, Label: "sfkit session"}); err != nil {
		return err
	}
	if s.ClientSecret == "" {
		return remove(m.ring, KeyClientSecret)
	}
	return m.ring.Set(keyring.Item{Key: KeyClientSecret, Data: []byte(s.ClientSecret), Label: "sfkit client secret"})
}

// LoadSession returns the stored session or ErrNotLoggedIn.
func (m *Manager) LoadSession() (session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var s session.Session
	it, err := m.ring.Get(KeySession)
	if errors.Is(err, keyring.ErrKeyNotFound) || (err == nil && len(it.Data) == 0) {
		return s, ErrNotLoggedIn
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(it.Data, &s); err != nil {
		return s, sferrors.Wrap(sferrors.Config, "stored session is corrupt; run 'sfkit login'", err)
	}
	if secret, err := m.ring.Get(KeyClientSecret); err == nil {
		s.ClientSecret = string(secret.Data)
	}
	return s, nil
}

// ClearSession removes the session record and client secret.
func (m *Manager) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := remove(m.ring, KeySession); err != nil {
		return err
	}
	return remove(m.ring, KeyClientSecret)
}

// SaveDBDSN stores the database DSN.
func (m *Manager) SaveDBDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: KeyDBDSN, Data: []byte(dsn), Label: "sfkit SQL source"})
}

// LoadDBDSN returns the stored DSN, or "" when none is saved.
func (m *Manager) LoadDBDSN() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, err := m.ring.Get(KeyDBDSN)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

// ClearDB removes the stored DSN.
func (m *Manager) ClearDB() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.ring, KeyDBDSN)
}

// ClearAll removes every sfkit secret.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range []string{KeySession, KeyClientSecret, KeyDBDSN} {
		if err := remove(m.ring, k); err != nil {
			return err
		}
	}
	return nil
}

func remove(ring keyring.Keyring, key string) error {
	if err := ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
