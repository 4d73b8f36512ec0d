// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/session"
)

// refresh exchanges the refresh token for a new access token. Concurrent
// callers that observed the same stale token share one exchange; a caller
// whose stale token was already replaced gets the current session back
// without another exchange.
func (t *Transport) refresh(ctx context.Context, stale session.Session) (session.Session, error) {
	v, err, _ := t.group.Do(stale.AccessToken, func() (any, error) {
		cur := t.Session()
		if cur.AccessToken != stale.AccessToken {
			return cur, nil
		}
		next, err := t.exchange(ctx, cur)
		if err != nil {
			RefreshTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		RefreshTotal.WithLabelValues("ok").Inc()
		t.session.Store(&next)
		t.logger.Debug("session refreshed", "instance", next.BaseURL())
		if t.onRefresh != nil {
			t.onRefresh(ctx, next)
		}
		return next, nil
	})
	if err != nil {
		return session.Session{}, err
	}
	return v.(session.Session), nil
}

func (t *Transport) exchange(ctx context.Context, s session.Session) (session.Session, error) {
	tokenURL := t.tokenURL
	if tokenURL == "" {
		tokenURL = s.TokenURL()
	}
	conf := &oauth2.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, t.client)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.RefreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			e := sferrors.Wrap(sferrors.AuthExpired, "session refresh rejected", err)
			e.Status = re.Response.StatusCode
			e.Code = re.ErrorCode
			return session.Session{}, e
		}
		return session.Session{}, sferrors.Wrap(sferrors.AuthExpired, "session refresh failed", err)
	}

	instanceURL, _ := tok.Extra("instance_url").(string)
	return s.WithRefresh(tok.AccessToken, tok.RefreshToken, instanceURL), nil
}
