// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package auth provides authentication services for the sfkit CLI.
// It obtains sessions through the OAuth token endpoint of an org, keeps the
// session record in secure storage and hands out transports whose token
// refreshes are written back to that storage.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/oauth2"

	"sfkit/cli/internal/backend"
	"sfkit/cli/internal/discovery"
	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/keychain"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/transport"
)

// Store persists the session record.
type Store interface {
	SaveSession(s session.Session) error
	LoadSession() (session.Session, error)
	ClearSession() error
}

// Service centralizes authentication-related operations against the org
// and local secure storage.
type Service struct {
	store  Store
	client *http.Client
	logger *slog.Logger
	// apiVersion overrides the stored session's version when set.
	apiVersion string
}

// NewService constructs an auth Service. A nil client uses a default one.
func NewService(store Store, client *http.Client, logger *slog.Logger) *Service {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, client: client, logger: logger}
}

// LoginRequest carries one of three credential sets: an access token, a
// refresh token, or a username and password (with the security token
// appended to the password when the org requires it).
type LoginRequest struct {
	InstanceURL  string
	APIVersion   string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	Username     string
	Password     string
}

// Validate checks that exactly one usable credential set is present.
func (r LoginRequest) Validate() error {
	needsClient := r.AccessToken == "" && (r.RefreshToken != "" || r.Username != "")
	return validation.ValidateStruct(&r,
		validation.Field(&r.InstanceURL, validation.Required, is.RequestURL),
		validation.Field(&r.ClientID, validation.When(needsClient, validation.Required.Error("is required for refresh token and password login"))),
		validation.Field(&r.Password, validation.When(r.Username != "" && r.AccessToken == "" && r.RefreshToken == "", validation.Required)),
		validation.Field(&r.AccessToken, validation.When(r.RefreshToken == "" && r.Username == "",
			validation.Required.Error("provide an access token, a refresh token or a username"))),
	)
}

// Login obtains a session, verifies it against the userinfo endpoint,
// resolves the API version when none was given and stores the result.
func (s *Service) Login(ctx context.Context, req LoginRequest) (session.Session, backend.UserInfo, error) {
	if err := req.Validate(); err != nil {
		return session.Session{}, backend.UserInfo{}, sferrors.Wrap(sferrors.Validation, "login", err)
	}

	sess := session.Session{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		InstanceURL:  strings.TrimRight(req.InstanceURL, "/"),
		APIVersion:   req.APIVersion,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	}
	if sess.AccessToken == "" {
		tok, err := s.token(ctx, sess, req)
		if err != nil {
			return session.Session{}, backend.UserInfo{}, err
		}
		instance, _ := tok.Extra("instance_url").(string)
		sess = sess.WithRefresh(tok.AccessToken, tok.RefreshToken, instance)
	}

	tr, err := s.transport(sess)
	if err != nil {
		return session.Session{}, backend.UserInfo{}, err
	}
	api := backend.New(tr)
	me, err := api.UserInfo(ctx)
	if err != nil {
		return session.Session{}, backend.UserInfo{}, fmt.Errorf("verify login: %w", err)
	}
	sess = tr.Session()
	sess.UserID, sess.OrgID = me.UserID, me.OrganizationID

	if sess.APIVersion == "" {
		v, err := discovery.Latest(ctx, api, sess.InstanceURL)
		if err != nil {
			s.logger.Warn("api version discovery failed; using default", "error", err, "version", session.DefaultAPIVersion)
			v = session.DefaultAPIVersion
		}
		sess.APIVersion = v
	}

	if err := s.store.SaveSession(sess); err != nil {
		return session.Session{}, backend.UserInfo{}, sferrors.Wrap(sferrors.Config, "save session", err)
	}
	return sess, me, nil
}

func (s *Service) token(ctx context.Context, sess session.Session, req LoginRequest) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     sess.ClientID,
		ClientSecret: sess.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  sess.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	var (
		tok *oauth2.Token
		err error
	)
	if req.RefreshToken != "" {
		tok, err = conf.TokenSource(ctx, &oauth2.Token{RefreshToken: req.RefreshToken}).Token()
	} else {
		tok, err = conf.PasswordCredentialsToken(ctx, req.Username, req.Password)
	}
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			e := sferrors.Wrap(sferrors.AuthExpired, "login rejected", err)
			e.Status, e.Code = re.Response.StatusCode, re.ErrorCode
			return nil, e
		}
		return nil, sferrors.Wrap(sferrors.Transport, "login", err)
	}
	return tok, nil
}

// UseAPIVersion makes transports from this service call version v instead
// of the stored one. The stored session keeps its own version.
func (s *Service) UseAPIVersion(v string) { s.apiVersion = v }

// Transport returns a transport for the stored session. Refreshed
// sessions are persisted as soon as they are issued.
func (s *Service) Transport() (*transport.Transport, error) {
	sess, err := s.store.LoadSession()
	if err != nil {
		return nil, err
	}
	return s.transport(sess)
}

func (s *Service) transport(sess session.Session) (*transport.Transport, error) {
	stored := sess.APIVersion
	if s.apiVersion != "" {
		sess.APIVersion = s.apiVersion
	}
	return transport.New(transport.Config{
		Session:    sess,
		HTTPClient: s.client,
		Logger:     s.logger,
		OnRefresh: func(_ context.Context, next session.Session) {
			next.APIVersion = stored
			if err := s.store.SaveSession(next); err != nil {
				s.logger.Warn("could not persist refreshed session", "error", err)
			}
		},
	})
}

// WhoAmI returns the stored session and the identity behind it.
func (s *Service) WhoAmI(ctx context.Context) (session.Session, backend.UserInfo, error) {
	tr, err := s.Transport()
	if err != nil {
		return session.Session{}, backend.UserInfo{}, err
	}
	me, err := backend.New(tr).UserInfo(ctx)
	if err != nil {
		return tr.Session(), backend.UserInfo{}, err
	}
	return tr.Session(), me, nil
}

// Logout revokes the stored session on the org (best-effort) and clears
// it locally. Logging out when not logged in is not an error.
func (s *Service) Logout(ctx context.Context) error {
	sess, err := s.store.LoadSession()
	if errors.Is(err, keychain.ErrNotLoggedIn) {
		return nil
	}
	if err != nil {
		return err
	}

	token := sess.RefreshToken
	if token == "" {
		token = sess.AccessToken
	}
	if tr, err := s.transport(sess); err == nil {
		if err := backend.New(tr).Revoke(ctx, token); err != nil {
			s.logger.Warn("token revocation failed", "error", err)
		}
	}
	return s.store.ClearSession()
}
