// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package session describes how to authenticate against a platform org and
// where to send requests. A Session is a plain value: it is never mutated in
// place, and a token refresh produces a new Session that is handed back to
// the owner through a callback.
package session

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DefaultAPIVersion is used when neither the caller nor the config pins one.
const DefaultAPIVersion = "59.0"

// Session holds the credentials and target of one logical user session.
type Session struct {
	// AccessToken is sent as the bearer token and the legacy session id header.
	AccessToken string `json:"access_token"`
	// RefreshToken enables the one-shot refresh-and-retry on expiry.
	RefreshToken string `json:"refresh_token,omitempty"`
	// InstanceURL is the org's base URL, e.g. "https://acme.my.example.com".
	InstanceURL string `json:"instance_url"`
	// APIVersion is the dotted API version, e.g. "59.0".
	APIVersion string `json:"api_version"`
	OrgID      string `json:"org_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	// ClientID and ClientSecret identify the connected app for refresh.
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"-"`
	// CallOptions is forwarded verbatim as the Sforce-Call-Options header.
	CallOptions string `json:"call_options,omitempty"`
}

// Validate checks the fields every request needs. The instance URL must
// be absolute.
func (s Session) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.AccessToken, validation.Required),
		validation.Field(&s.InstanceURL, validation.Required, is.RequestURL),
	)
}

// CanRefresh reports whether the session carries enough to exchange a
// refresh token for a new access token.
func (s Session) CanRefresh() bool {
	return s.RefreshToken != "" && s.ClientID != ""
}

// Version returns the API version, falling back to DefaultAPIVersion.
func (s Session) Version() string {
	v := strings.TrimPrefix(strings.TrimSpace(s.APIVersion), "v")
	if v == "" {
		return DefaultAPIVersion
	}
	return v
}

// BaseURL returns the instance URL without a trailing slash.
func (s Session) BaseURL() string {
	return strings.TrimRight(s.InstanceURL, "/")
}

// RESTPath is the versioned REST data path, e.g. "/services/data/v59.0".
func (s Session) RESTPath() string {
	return "/services/data/v" + s.Version()
}

// AsyncPath is the legacy bulk-ingest path, e.g. "/services/async/59.0".
func (s Session) AsyncPath() string {
	return "/services/async/" + s.Version()
}

// MetadataPath is the metadata SOAP endpoint path.
func (s Session) MetadataPath() string {
	return "/services/Soap/m/" + s.Version()
}

// TokenURL is the OAuth token endpoint of the instance.
func (s Session) TokenURL() string {
	return s.BaseURL() + "/services/oauth2/token"
}

// WithAccessToken returns a copy of s carrying a new access token.
func (s Session) WithAccessToken(token string) Session {
	s.AccessToken = token
	return s
}

// WithRefresh returns a copy of s updated from a token exchange. Empty
// values leave the current field untouched; the platform does not always
// rotate refresh tokens or move instances.
func (s Session) WithRefresh(accessToken, refreshToken, instanceURL string) Session {
	s.AccessToken = accessToken
	if refreshToken != "" {
		s.RefreshToken = refreshToken
	}
	if instanceURL != "" {
		s.InstanceURL = instanceURL
	}
	return s
}
