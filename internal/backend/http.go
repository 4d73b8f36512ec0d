// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/transport"
)

// userInfoTTL bounds how long a fetched identity is reused.
const userInfoTTL = 10 * time.Minute

// HTTP implements API over a transport.
// The identity is cached in memory to cut repeated round trips during one
// command and to keep whoami usable when the org is briefly unreachable.
type HTTP struct {
	tr Doer
	// now is replaceable in tests.
	now func() time.Time

	mu       sync.Mutex
	me       *UserInfo
	meExpiry time.Time
}

// New creates an API client over tr.
func New(tr Doer) *HTTP {
	return &HTTP{tr: tr, now: time.Now}
}

// Versions calls GET /services/data/.
func (h *HTTP) Versions(ctx context.Context) ([]Version, error) {
	var out []Version
	if _, err := h.tr.Do(ctx, &transport.Request{URL: "/services/data/", Into: &out}); err != nil {
		return nil, fmt.Errorf("versions: %w", err)
	}
	return out, nil
}

// UserInfo calls GET /services/oauth2/userinfo. When the call fails and a
// previous identity is cached, the cached value is returned instead.
func (h *HTTP) UserInfo(ctx context.Context) (UserInfo, error) {
	h.mu.Lock()
	if h.me != nil && h.now().Before(h.meExpiry) {
		me := *h.me
		h.mu.Unlock()
		return me, nil
	}
	h.mu.Unlock()

	var me UserInfo
	_, err := h.tr.Do(ctx, &transport.Request{URL: "/services/oauth2/userinfo", Into: &me})

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		if h.me != nil && !sferrors.IsKind(err, sferrors.AuthExpired) {
			return *h.me, nil
		}
		return UserInfo{}, fmt.Errorf("userinfo: %w", err)
	}
	h.me = &me
	h.meExpiry = h.now().Add(userInfoTTL)
	return me, nil
}

// Revoke calls POST /services/oauth2/revoke and drops the cached identity.
func (h *HTTP) Revoke(ctx context.Context, token string) error {
	h.mu.Lock()
	h.me = nil
	h.meExpiry = time.Time{}
	h.mu.Unlock()

	if token == "" {
		return nil
	}
	_, err := h.tr.Do(ctx, &transport.Request{
		Method:      http.MethodPost,
		URL:         "/services/oauth2/revoke",
		Body:        url.Values{"token": {token}}.Encode(),
		RawBody:     true,
		ContentType: "application/x-www-form-urlencoded",
		Output:      transport.OutputNone,
	})
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

// Query calls GET {rest}/query?q=soql.
func (h *HTTP) Query(ctx context.Context, soql string, fetchAll bool) (*QueryResult, error) {
	if strings.TrimSpace(soql) == "" {
		return nil, sferrors.New(sferrors.Validation, "query: SOQL is required")
	}
	page, err := h.page(ctx, "query?q="+url.QueryEscape(soql))
	if err != nil {
		return nil, err
	}
	if !fetchAll {
		return page, nil
	}

	all := &QueryResult{TotalSize: page.TotalSize, Records: page.Records}
	for !page.Done && page.NextRecordsURL != "" {
		if page, err = h.page(ctx, page.NextRecordsURL); err != nil {
			return nil, err
		}
		all.Records = append(all.Records, page.Records...)
	}
	all.Done = true
	return all, nil
}

// QueryMore fetches the page at next, an instance-rooted nextRecordsUrl.
func (h *HTTP) QueryMore(ctx context.Context, next string) (*QueryResult, error) {
	if !strings.HasPrefix(next, "/services/") {
		return nil, sferrors.Newf(sferrors.Validation, "query: invalid next records URL %q", next)
	}
	return h.page(ctx, next)
}

func (h *HTTP) page(ctx context.Context, u string) (*QueryResult, error) {
	var out QueryResult
	if _, err := h.tr.Do(ctx, &transport.Request{URL: u, Into: &out}); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if out.Records == nil {
		out.Records = []map[string]any{}
	}
	return &out, nil
}
