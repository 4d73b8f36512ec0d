// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"encoding/json"
	"strings"

	"sfkit/cli/internal/normalize"
)

// SOAPBody returns the children of the envelope's Body, keyed by local name,
// along with the Fault element when the body carries one.
func SOAPBody(tree map[string]any) (body map[string]any, fault map[string]any, ok bool) {
	env, ok := tree["Envelope"].(map[string]any)
	if !ok {
		return nil, nil, false
	}
	b, ok := env["Body"].(map[string]any)
	if !ok {
		// <Body/> decodes to "" or a bare attribute holder
		return map[string]any{}, nil, true
	}
	body = make(map[string]any, len(b))
	for k, v := range b {
		if k == normalize.AttrKey {
			continue
		}
		body[k] = v
	}
	if f, ok := body["Fault"].(map[string]any); ok {
		return body, f, true
	}
	return body, nil, true
}

// failureDetail is what could be learnt from an error body.
type failureDetail struct {
	code    string
	message string
}

// parseFailure extracts an error code and message from the body of a failed
// exchange. REST errors are JSON arrays of {message, errorCode}; the OAuth
// endpoint answers {error, error_description}; bulk errors are
// <error><exceptionCode/><exceptionMessage/></error>; SOAP errors are faults.
// Anything else yields the trimmed body as the message.
func parseFailure(body []byte) failureDetail {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return failureDetail{}
	}

	switch text[0] {
	case '[':
		var list []struct {
			Message   string `json:"message"`
			ErrorCode string `json:"errorCode"`
		}
		if json.Unmarshal(body, &list) == nil && len(list) > 0 {
			return failureDetail{code: list[0].ErrorCode, message: list[0].Message}
		}
	case '{':
		var obj struct {
			Message     string `json:"message"`
			ErrorCode   string `json:"errorCode"`
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(body, &obj) == nil {
			switch {
			case obj.Message != "":
				return failureDetail{code: obj.ErrorCode, message: obj.Message}
			case obj.Error != "":
				msg := obj.Description
				if msg == "" {
					msg = obj.Error
				}
				return failureDetail{code: obj.Error, message: msg}
			}
		}
	case '<':
		tree, err := DecodeXML(strings.NewReader(text))
		if err != nil {
			break
		}
		if e, ok := tree["error"].(map[string]any); ok {
			return failureDetail{code: str(e["exceptionCode"]), message: str(e["exceptionMessage"])}
		}
		if _, fault, ok := SOAPBody(tree); ok && fault != nil {
			return faultDetail(fault)
		}
	}
	return failureDetail{message: text}
}

func faultDetail(fault map[string]any) failureDetail {
	return failureDetail{code: str(fault["faultcode"]), message: str(fault["faultstring"])}
}

// isAuthExpired reports whether a failure means the session is no longer
// valid and a refresh may help.
func isAuthExpired(status int, d failureDetail) bool {
	if status == 401 {
		return true
	}
	switch {
	case strings.HasSuffix(d.code, "INVALID_SESSION_ID"):
		return true
	case d.code == "InvalidSessionId":
		return true
	}
	return false
}

func str(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		s, _ := e[normalize.TextKey].(string)
		return s
	}
	return ""
}
