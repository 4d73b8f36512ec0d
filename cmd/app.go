// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/pterm/pterm"

	"sfkit/cli/internal/auth"
	"sfkit/cli/internal/httperrors"
	"sfkit/cli/internal/keychain"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/transport"
)

// unavailableStore stands in when no keyring can be opened. Every call
// reports the open failure.
type unavailableStore struct{ err error }

func (s unavailableStore) SaveSession(session.Session) error { return s.err }
func (s unavailableStore) LoadSession() (session.Session, error) {
	return session.Session{}, s.err
}
func (s unavailableStore) ClearSession() error { return s.err }

// newAuthService wires the auth service to the OS keychain and the shared
// logger. The --api-version override applies to every transport it makes.
func newAuthService() *auth.Service {
	var store auth.Store
	km, err := keychain.GetManager()
	if err != nil {
		store = unavailableStore{err: err}
	} else {
		store = km
	}
	svc := auth.NewService(store, &http.Client{}, logger)
	if apiVersion != "" {
		svc.UseAPIVersion(apiVersion)
	}
	return svc
}

// openTransport returns a transport for the stored session, printing a
// hint when nobody is logged in.
func openTransport() (*transport.Transport, error) {
	tr, err := newAuthService().Transport()
	if errors.Is(err, keychain.ErrNotLoggedIn) {
		pterm.Println("🔒 You're not logged in yet!")
		pterm.Println("   Run 'sfkit login' to get started.")
	}
	return tr, err
}

// networkError prints connectivity guidance for err, if it is a network
// failure, and returns it.
func networkError(err error, action, instanceURL string) error {
	if err == nil {
		return nil
	}
	return httperrors.FormatNetworkError(err, action, firstNonEmpty(instanceURL, cfg.InstanceURL))
}

// getenv is replaceable in tests.
var getenv = os.Getenv

// timeAfter is replaceable in tests.
var timeAfter = time.After
