// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package transport performs authenticated HTTP exchanges with a platform org.
//
// Every call goes through Do, which resolves the URL against the session,
// attaches the auth and tracing headers, and decodes the body according to
// the requested OutputType. When the server reports an expired session and
// the session can be refreshed, Do exchanges the refresh token exactly once,
// publishes the new session through the OnRefresh callback and retries the
// call exactly once. A second auth failure is returned to the caller.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/session"
)

// maxErrorBody bounds how much of a failed response is read for diagnostics.
const maxErrorBody = 1 << 20

// RefreshFunc receives every session produced by a token refresh.
type RefreshFunc func(ctx context.Context, s session.Session)

// Config holds configuration for creating a Transport.
type Config struct {
	Session session.Session
	// HTTPClient is used for all requests. If nil, a client without a
	// timeout is used; callers bound calls through the context.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// OnRefresh is invoked after a successful refresh, before the retry.
	OnRefresh RefreshFunc
	// TokenURL overrides the OAuth token endpoint derived from the session.
	TokenURL string
}

// Transport executes requests for one logical session.
type Transport struct {
	session   atomic.Pointer[session.Session]
	client    *http.Client
	logger    *slog.Logger
	onRefresh RefreshFunc
	tokenURL  string
	group     singleflight.Group
}

// New validates the session and returns a Transport.
func New(cfg Config) (*Transport, error) {
	if err := cfg.Session.Validate(); err != nil {
		return nil, sferrors.Wrap(sferrors.Validation, "invalid session", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	t := &Transport{
		client:    client,
		logger:    logger,
		onRefresh: cfg.OnRefresh,
		tokenURL:  cfg.TokenURL,
	}
	s := cfg.Session
	t.session.Store(&s)
	return t, nil
}

// Session returns the current session.
func (t *Transport) Session() session.Session {
	return *t.session.Load()
}

// Do executes req, refreshing the session and retrying once on auth expiry.
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	return t.do(ctx, req, true)
}

func (t *Transport) do(ctx context.Context, req *Request, allowRefresh bool) (*Response, error) {
	sess := t.Session()
	resp, err := t.send(ctx, sess, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out, detail, err := t.decode(resp, req)
		if err == nil || detail == nil {
			return out, err
		}
		// fault inside a 2xx SOAP envelope
		if allowRefresh && isAuthExpired(0, *detail) && sess.CanRefresh() && replayable(req) {
			return t.retry(ctx, sess, req, err)
		}
		return nil, settle(err, allowRefresh)
	}

	body, _ := io.ReadAll(io.LimitReader(bodyReader(resp), maxErrorBody))
	resp.Body.Close()
	detail := parseFailure(body)
	reqErr := failureError(resp.StatusCode, detail)

	if allowRefresh && reqErr.Kind == sferrors.AuthExpired && sess.CanRefresh() && replayable(req) {
		return t.retry(ctx, sess, req, reqErr)
	}
	return nil, settle(reqErr, allowRefresh)
}

// settle downgrades an auth failure on the retried call to a plain transport
// error: the session was just refreshed, so another refresh cannot help.
func settle(err error, allowRefresh bool) error {
	var e *sferrors.E
	if !allowRefresh && errors.As(err, &e) && e.Kind == sferrors.AuthExpired {
		e.Kind = sferrors.Transport
	}
	return err
}

func (t *Transport) retry(ctx context.Context, stale session.Session, req *Request, cause error) (*Response, error) {
	if _, err := t.refresh(ctx, stale); err != nil {
		return nil, fmt.Errorf("%w (after: %v)", err, cause)
	}
	if err := rewind(req); err != nil {
		return nil, cause
	}
	return t.do(ctx, req, false)
}

func failureError(status int, d failureDetail) *sferrors.E {
	msg := d.message
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := sferrors.Request(status, d.code, msg)
	if isAuthExpired(status, d) {
		e.Kind = sferrors.AuthExpired
	}
	return e
}

func (t *Transport) send(ctx context.Context, sess session.Session, req *Request) (*http.Response, error) {
	target := resolveURL(sess, req)
	body, contentType, err := encodeBody(req, req.body(sess))
	if err != nil {
		return nil, err
	}
	if gz, ok := body.(*gzipUpload); ok {
		// the compressor must stop reading the source before a retry rewinds it
		defer gz.Close()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, sferrors.Wrap(sferrors.Validation, "build request", err)
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	httpReq.Header.Set("X-SFDC-Session", sess.AccessToken)
	httpReq.Header.Set("X-Request-Id", requestID)
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if sess.CallOptions != "" {
		httpReq.Header.Set("Sforce-Call-Options", sess.CallOptions)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.Gzip && body != nil {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	elapsed := time.Since(start)
	RequestDuration.Observe(elapsed.Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues(httpReq.Method, "error").Inc()
		t.logger.Debug("platform request failed",
			"request_id", requestID, "method", httpReq.Method, "path", httpReq.URL.Path, "error", err)
		switch {
		case errors.Is(err, context.Canceled):
			return nil, sferrors.Wrap(sferrors.Canceled, "request canceled", err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, sferrors.Wrap(sferrors.Timeout, "request timed out", err)
		}
		return nil, sferrors.Wrap(sferrors.Transport, httpReq.Method+" "+httpReq.URL.Path, err)
	}
	RequestsTotal.WithLabelValues(httpReq.Method, strconv.Itoa(resp.StatusCode)).Inc()
	t.logger.Debug("platform request",
		"request_id", requestID, "method", httpReq.Method, "path", httpReq.URL.Path,
		"status", resp.StatusCode, "duration", elapsed)
	return resp, nil
}

// resolveURL turns req.URL into an absolute URL. Absolute URLs are kept,
// instance-rooted paths ("/services/...") are joined to the instance, and
// anything else is joined to BasePath or the REST data path.
func resolveURL(sess session.Session, req *Request) string {
	u := req.URL
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if strings.HasPrefix(u, "/services/") {
		return sess.BaseURL() + u
	}
	base := req.BasePath
	if base == "" {
		base = sess.RESTPath()
	}
	base = strings.TrimRight(base, "/")
	if u != "" && !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return sess.BaseURL() + base + u
}

func encodeBody(req *Request, payload any) (io.Reader, string, error) {
	if payload == nil {
		return nil, req.ContentType, nil
	}

	var r io.Reader
	contentType := req.ContentType
	if req.RawBody {
		switch b := payload.(type) {
		case []byte:
			r = bytes.NewReader(b)
		case string:
			r = strings.NewReader(b)
		case io.ReadCloser:
			// the HTTP client closes bodies; the caller owns this one
			r = struct{ io.Reader }{b}
		case io.Reader:
			r = b
		default:
			return nil, "", sferrors.Newf(sferrors.Validation, "raw body must be []byte, string or io.Reader, got %T", payload)
		}
	} else {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", sferrors.Wrap(sferrors.Validation, "encode request body", err)
		}
		r = bytes.NewReader(data)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	if req.Gzip {
		r = gzipReader(r)
	}
	return r, contentType, nil
}

// gzipUpload compresses a source on the fly so large uploads are never
// buffered. Close stops the compressor and waits until it has let go of the
// source.
type gzipUpload struct {
	*io.PipeReader
	done chan struct{}
}

func gzipReader(src io.Reader) *gzipUpload {
	pr, pw := io.Pipe()
	g := &gzipUpload{PipeReader: pr, done: make(chan struct{})}
	go func() {
		defer close(g.done)
		zw := gzip.NewWriter(pw)
		if _, err := io.Copy(zw, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(zw.Close())
	}()
	return g
}

func (g *gzipUpload) Close() error {
	err := g.PipeReader.Close()
	<-g.done
	return err
}

// replayable reports whether the request body can be sent a second time.
func replayable(req *Request) bool {
	if !req.RawBody || req.Body == nil || req.BodyFor != nil {
		return true
	}
	switch req.Body.(type) {
	case []byte, string, io.Seeker:
		return true
	}
	return false
}

func rewind(req *Request) error {
	if s, ok := req.Body.(io.Seeker); ok && req.RawBody {
		_, err := s.Seek(0, io.SeekStart)
		return err
	}
	return nil
}

// bodyReader returns the response body, transparently un-gzipped when the
// server compressed it.
func bodyReader(resp *http.Response) io.Reader {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return resp.Body
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return resp.Body
	}
	return zr
}

type gzipBody struct {
	io.Reader
	closer io.Closer
}

func (g gzipBody) Close() error { return g.closer.Close() }

func (t *Transport) decode(resp *http.Response, req *Request) (*Response, *failureDetail, error) {
	output := req.Output
	out := &Response{Status: resp.StatusCode, Header: resp.Header}

	switch output {
	case OutputResponse:
		out.Raw = resp
		return out, nil, nil
	case OutputStream:
		out.Stream = gzipBody{Reader: bodyReader(resp), closer: resp.Body}
		return out, nil, nil
	}

	defer resp.Body.Close()
	r := bodyReader(resp)

	switch output {
	case OutputNone:
		_, _ = io.Copy(io.Discard, r)
		return out, nil, nil
	case OutputText, OutputBuffer:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, sferrors.Wrap(sferrors.Transport, "read response body", err)
		}
		if output == OutputText {
			out.Text = string(data)
		} else {
			out.Bytes = data
		}
		return out, nil, nil
	case OutputXML, OutputSOAP:
		tree, err := DecodeXML(r)
		if err != nil {
			return nil, nil, sferrors.Wrap(sferrors.ProtocolShape, "decode xml response", err)
		}
		if output == OutputXML {
			out.Tree = tree
			return out, nil, nil
		}
		body, fault, ok := SOAPBody(tree)
		if !ok {
			return nil, nil, sferrors.New(sferrors.ProtocolShape, "response is not a SOAP envelope")
		}
		if fault != nil {
			d := faultDetail(fault)
			e := sferrors.Request(resp.StatusCode, d.code, d.message)
			if isAuthExpired(0, d) {
				e.Kind = sferrors.AuthExpired
			}
			return nil, &d, e
		}
		out.SOAP = body
		return out, nil, nil
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, sferrors.Wrap(sferrors.Transport, "read response body", err)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return out, nil, nil
		}
		target := any(&out.JSON)
		if req.Into != nil {
			target = req.Into
		}
		if err := json.Unmarshal(data, target); err != nil {
			return nil, nil, sferrors.Wrap(sferrors.ProtocolShape, "decode json response", err)
		}
		return out, nil, nil
	}
}
