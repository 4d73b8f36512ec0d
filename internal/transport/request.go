// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"io"
	"net/http"

	"sfkit/cli/internal/session"
)

// OutputType selects how a successful response body is decoded.
type OutputType int

const (
	// OutputJSON decodes the body as JSON into Request.Into or Response.JSON.
	OutputJSON OutputType = iota
	// OutputText returns the body as a string.
	OutputText
	// OutputBuffer returns the body as a byte slice.
	OutputBuffer
	// OutputStream hands the unread body to the caller, who must close it.
	OutputStream
	// OutputXML decodes the body into a generic tree keyed by root element.
	OutputXML
	// OutputSOAP decodes a SOAP envelope and returns the children of its Body.
	OutputSOAP
	// OutputResponse returns the raw *http.Response with its body unread.
	OutputResponse
	// OutputNone discards the body.
	OutputNone
)

func (o OutputType) String() string {
	switch o {
	case OutputJSON:
		return "json"
	case OutputText:
		return "text"
	case OutputBuffer:
		return "buffer"
	case OutputStream:
		return "stream"
	case OutputXML:
		return "xml"
	case OutputSOAP:
		return "soap"
	case OutputResponse:
		return "response"
	case OutputNone:
		return "none"
	}
	return "unknown"
}

// Request describes one call to the platform.
type Request struct {
	Method string
	// URL is absolute, instance-rooted ("/services/..."), or relative to BasePath.
	URL string
	// BasePath replaces the default REST data path for relative URLs.
	BasePath string
	// Body is serialized as JSON unless RawBody is set, in which case it must be
	// a []byte, a string or an io.Reader and is sent untouched.
	Body    any
	RawBody bool
	// BodyFor, when set, replaces Body and is rendered for every attempt
	// from the session in use, for payloads that embed the session id.
	BodyFor func(s session.Session) any
	// ContentType overrides the default content type of the body.
	ContentType string
	// Headers are applied last and override every default header.
	Headers map[string]string
	Output  OutputType
	// Into receives the decoded JSON body for OutputJSON.
	Into any
	// Gzip compresses the request body.
	Gzip bool
}

// Response carries the status, headers and the payload for the requested
// output contract. Only the field matching the contract is populated.
type Response struct {
	Status int
	Header http.Header

	JSON   any
	Text   string
	Bytes  []byte
	Stream io.ReadCloser
	Tree   map[string]any
	SOAP   map[string]any
	Raw    *http.Response
}

func (r *Request) body(s session.Session) any {
	if r.BodyFor != nil {
		return r.BodyFor(s)
	}
	return r.Body
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}
