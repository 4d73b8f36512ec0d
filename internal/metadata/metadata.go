// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metadata calls the SOAP metadata API. Only deploy status polling
// is implemented; it is the call the CLI needs to report on deployments
// started by other tooling.
package metadata

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/normalize"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/transport"
)

// Namespace is the metadata API XML namespace.
const Namespace = "http://soap.sforce.com/2006/04/metadata"

// Doer executes platform requests.
type Doer interface {
	Do(ctx context.Context, req *transport.Request) (*transport.Response, error)
	Session() session.Session
}

// Client issues metadata API calls.
type Client struct {
	tr Doer
}

func New(tr Doer) *Client { return &Client{tr: tr} }

// ComponentFailure is one component the deploy could not apply.
type ComponentFailure struct {
	ComponentType string
	FullName      string
	FileName      string
	Problem       string
	ProblemType   string
	LineNumber    int64
	ColumnNumber  int64
}

// TestFailure is one failing test method.
type TestFailure struct {
	Name       string
	MethodName string
	Message    string
	StackTrace string
}

// TestResult summarizes the tests run by a deploy.
type TestResult struct {
	NumTestsRun int64
	NumFailures int64
	TotalTime   float64
	Failures    []TestFailure
}

// DeployResult is a normalized deploy status.
type DeployResult struct {
	ID            string
	Status        string
	StateDetail   string
	Done          bool
	Success       bool
	CheckOnly     bool
	ErrorMessage  string
	CreatedDate   time.Time
	CompletedDate time.Time

	NumberComponentsDeployed int64
	NumberComponentErrors    int64
	NumberComponentsTotal    int64
	NumberTestErrors         int64
	NumberTestsCompleted     int64
	NumberTestsTotal         int64

	// ComponentFailures and Tests are filled only when details were requested.
	ComponentFailures []ComponentFailure
	Tests             *TestResult
}

// CheckDeployStatus returns the status of an asynchronous deploy.
func (c *Client) CheckDeployStatus(ctx context.Context, id string, includeDetails bool) (DeployResult, error) {
	if strings.TrimSpace(id) == "" {
		return DeployResult{}, sferrors.New(sferrors.Validation, "metadata: deploy id is required")
	}
	resp, err := c.tr.Do(ctx, &transport.Request{
		Method:      http.MethodPost,
		URL:         c.tr.Session().MetadataPath(),
		RawBody:     true,
		ContentType: "text/xml; charset=UTF-8",
		Headers:     map[string]string{"SOAPAction": `""`},
		Output:      transport.OutputSOAP,
		BodyFor: func(s session.Session) any {
			return checkDeployStatusEnvelope(s.AccessToken, id, includeDetails)
		},
	})
	if err != nil {
		return DeployResult{}, fmt.Errorf("metadata: check deploy status %s: %w", id, err)
	}

	wrapper, ok := resp.SOAP["checkDeployStatusResponse"].(map[string]any)
	if !ok {
		return DeployResult{}, sferrors.New(sferrors.ProtocolShape, "metadata: missing checkDeployStatusResponse")
	}
	return deployResult(wrapper["result"])
}

func checkDeployStatusEnvelope(sessionID, id string, includeDetails bool) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:met="` + Namespace + `">`)
	b.WriteString(`<soapenv:Header><met:SessionHeader><met:sessionId>`)
	b.WriteString(escape(sessionID))
	b.WriteString(`</met:sessionId></met:SessionHeader></soapenv:Header>`)
	b.WriteString(`<soapenv:Body><met:checkDeployStatus><met:asyncProcessId>`)
	b.WriteString(escape(id))
	b.WriteString(`</met:asyncProcessId><met:includeDetails>`)
	if includeDetails {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
	b.WriteString(`</met:includeDetails></met:checkDeployStatus></soapenv:Body></soapenv:Envelope>`)
	return b.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func escape(s string) string { return xmlEscaper.Replace(s) }

func deployResult(raw any) (DeployResult, error) {
	node, bad := normalize.Normalize(raw, normalize.DeployNumericFields)
	if node == nil {
		return DeployResult{}, sferrors.New(sferrors.ProtocolShape, "metadata: empty deploy result")
	}
	if len(bad) > 0 {
		return DeployResult{}, sferrors.Newf(sferrors.ProtocolShape, "metadata: non-numeric counter %s", strings.Join(bad, ", "))
	}

	r := DeployResult{
		ID:            text(node["id"]),
		Status:        text(node["status"]),
		StateDetail:   text(node["stateDetail"]),
		Done:          node["done"] == true,
		Success:       node["success"] == true,
		CheckOnly:     node["checkOnly"] == true,
		ErrorMessage:  text(node["errorMessage"]),
		CreatedDate:   date(node["createdDate"]),
		CompletedDate: date(node["completedDate"]),

		NumberComponentsDeployed: count(node["numberComponentsDeployed"]),
		NumberComponentErrors:    count(node["numberComponentErrors"]),
		NumberComponentsTotal:    count(node["numberComponentsTotal"]),
		NumberTestErrors:         count(node["numberTestErrors"]),
		NumberTestsCompleted:     count(node["numberTestsCompleted"]),
		NumberTestsTotal:         count(node["numberTestsTotal"]),
	}

	details, ok := node["details"].(map[string]any)
	if !ok {
		return r, nil
	}
	r.ComponentFailures = []ComponentFailure{}
	for _, item := range normalize.ForceArray(details["componentFailures"]) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f, bad := normalize.CoerceNumeric([]string{"lineNumber", "columnNumber"}, m)
		if len(bad) > 0 {
			return DeployResult{}, sferrors.Newf(sferrors.ProtocolShape, "metadata: non-numeric %s in component failure", strings.Join(bad, ", "))
		}
		r.ComponentFailures = append(r.ComponentFailures, ComponentFailure{
			ComponentType: text(f["componentType"]),
			FullName:      text(f["fullName"]),
			FileName:      text(f["fileName"]),
			Problem:       text(f["problem"]),
			ProblemType:   text(f["problemType"]),
			LineNumber:    count(f["lineNumber"]),
			ColumnNumber:  count(f["columnNumber"]),
		})
	}

	if rt, ok := details["runTestResult"].(map[string]any); ok {
		tr, bad := normalize.CoerceNumeric(normalize.TestNumericFields, rt)
		if len(bad) > 0 {
			return DeployResult{}, sferrors.Newf(sferrors.ProtocolShape, "metadata: non-numeric %s in test result", strings.Join(bad, ", "))
		}
		tests := &TestResult{
			NumTestsRun: count(tr["numTestsRun"]),
			NumFailures: count(tr["numFailures"]),
			Failures:    []TestFailure{},
		}
		if v, ok := tr["totalTime"].(float64); ok {
			tests.TotalTime = v
		}
		for _, item := range normalize.ForceArray(tr["failures"]) {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			tests.Failures = append(tests.Failures, TestFailure{
				Name:       text(m["name"]),
				MethodName: text(m["methodName"]),
				Message:    text(m["message"]),
				StackTrace: text(m["stackTrace"]),
			})
		}
		r.Tests = tests
	}
	return r, nil
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func count(v any) int64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return int64(f)
}

func date(v any) time.Time {
	t, err := time.Parse(time.RFC3339Nano, text(v))
	if err != nil {
		return time.Time{}
	}
	return t
}
