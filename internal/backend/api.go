// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package backend provides the REST calls the CLI needs outside of bulk
// ingest and metadata: API version discovery, identity, token revocation
// and SOQL queries. All calls go through a transport and inherit its
// refresh-and-retry behaviour.
package backend

import (
	"context"

	"sfkit/cli/internal/session"
	"sfkit/cli/internal/transport"
)

// API defines platform operations the CLI depends on.
// Implementations may call a real org or provide mocks for tests.
type API interface {
	// Versions lists the API versions the instance serves, oldest first.
	Versions(ctx context.Context) ([]Version, error)
	// UserInfo returns the identity behind the current access token.
	UserInfo(ctx context.Context) (UserInfo, error)
	// Revoke invalidates token on the platform. Revoking a refresh token
	// also invalidates the access tokens issued from it.
	Revoke(ctx context.Context, token string) error
	// Query runs a SOQL query. With fetchAll set, every page is fetched by
	// following nextRecordsUrl and the records are concatenated.
	Query(ctx context.Context, soql string, fetchAll bool) (*QueryResult, error)
	// QueryMore fetches the page at a nextRecordsUrl.
	QueryMore(ctx context.Context, next string) (*QueryResult, error)
}

// Doer executes platform requests.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
	Session() session.Session
}

// Version is one entry of the versions resource.
type Version struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// UserInfo is the subset of the OpenID userinfo document the CLI shows.
type UserInfo struct {
	UserID            string `json:"user_id"`
	OrganizationID    string `json:"organization_id"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
	Email             string `json:"email"`
}

// Account returns the best human identifier available.
func (u UserInfo) Account() string {
	switch {
	case u.PreferredUsername != "":
		return u.PreferredUsername
	case u.Email != "":
		return u.Email
	case u.UserID != "":
		return u.UserID
	}
	return "user"
}

// QueryResult is one page, or all pages, of a SOQL query.
type QueryResult struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl,omitempty"`
	Records        []map[string]any `json:"records"`
}
