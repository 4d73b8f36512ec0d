// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package metadata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/transport"
)

const deployResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns="http://soap.sforce.com/2006/04/metadata" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
 <soapenv:Body>
  <checkDeployStatusResponse>
   <result>
    <checkOnly>false</checkOnly>
    <completedDate>2024-03-01T10:05:00.000Z</completedDate>
    <createdDate>2024-03-01T10:00:00.000Z</createdDate>
    <details>
     <componentFailures>
      <componentType>ApexClass</componentType>
      <fileName>classes/Foo.cls</fileName>
      <fullName>Foo</fullName>
      <lineNumber>12</lineNumber>
      <columnNumber>5</columnNumber>
      <problem>Variable does not exist: bar</problem>
      <problemType>Error</problemType>
     </componentFailures>
     <runTestResult>
      <numFailures>1</numFailures>
      <numTestsRun>4</numTestsRun>
      <totalTime>1234.0</totalTime>
      <failures>
       <message>System.AssertException</message>
       <methodName>testIt</methodName>
       <name>FooTest</name>
       <stackTrace>Class.FooTest.testIt: line 9</stackTrace>
      </failures>
     </runTestResult>
    </details>
    <done>true</done>
    <errorMessage xsi:nil="true"/>
    <id>0Af5g00000ABCDE</id>
    <numberComponentErrors>1</numberComponentErrors>
    <numberComponentsDeployed>41</numberComponentsDeployed>
    <numberComponentsTotal>42</numberComponentsTotal>
    <numberTestErrors>1</numberTestErrors>
    <numberTestsCompleted>3</numberTestsCompleted>
    <numberTestsTotal>4</numberTestsTotal>
    <status>Failed</status>
    <success>false</success>
   </result>
  </checkDeployStatusResponse>
 </soapenv:Body>
</soapenv:Envelope>`

func TestCheckDeployStatus(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/Soap/m/59.0", r.URL.Path)
		assert.Equal(t, "text/xml; charset=UTF-8", r.Header.Get("Content-Type"))
		assert.Equal(t, `""`, r.Header.Get("SOAPAction"))
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		_, _ = w.Write([]byte(deployResponse))
	}))
	defer srv.Close()

	tr, err := transport.New(transport.Config{Session: session.Session{AccessToken: "tok&1", InstanceURL: srv.URL}})
	require.NoError(t, err)

	res, err := New(tr).CheckDeployStatus(context.Background(), "0Af5g00000ABCDE", true)
	require.NoError(t, err)

	assert.Contains(t, body, "<met:sessionId>tok&amp;1</met:sessionId>")
	assert.Contains(t, body, "<met:asyncProcessId>0Af5g00000ABCDE</met:asyncProcessId>")
	assert.Contains(t, body, "<met:includeDetails>true</met:includeDetails>")

	assert.Equal(t, "0Af5g00000ABCDE", res.ID)
	assert.Equal(t, "Failed", res.Status)
	assert.True(t, res.Done)
	assert.False(t, res.Success)
	assert.False(t, res.CheckOnly)
	assert.Empty(t, res.ErrorMessage)
	assert.Equal(t, int64(41), res.NumberComponentsDeployed)
	assert.Equal(t, int64(42), res.NumberComponentsTotal)
	assert.Equal(t, int64(3), res.NumberTestsCompleted)
	assert.Equal(t, 2024, res.CompletedDate.Year())

	require.Len(t, res.ComponentFailures, 1)
	assert.Equal(t, ComponentFailure{
		ComponentType: "ApexClass", FullName: "Foo", FileName: "classes/Foo.cls",
		Problem: "Variable does not exist: bar", ProblemType: "Error", LineNumber: 12, ColumnNumber: 5,
	}, res.ComponentFailures[0])

	require.NotNil(t, res.Tests)
	assert.Equal(t, int64(4), res.Tests.NumTestsRun)
	assert.Equal(t, 1234.0, res.Tests.TotalTime)
	require.Len(t, res.Tests.Failures, 1)
	assert.Equal(t, "testIt", res.Tests.Failures[0].MethodName)
}

func TestCheckDeployStatus_RefreshRerendersSessionHeader(t *testing.T) {
	var soapCalls atomic.Int32
	var sessionIDs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/services/oauth2/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer"}`))
			return
		}
		soapCalls.Add(1)
		data, _ := io.ReadAll(r.Body)
		start := strings.Index(string(data), "<met:sessionId>") + len("<met:sessionId>")
		end := strings.Index(string(data), "</met:sessionId>")
		sessionIDs = append(sessionIDs, string(data[start:end]))
		if soapCalls.Load() == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body><soapenv:Fault>` +
				`<faultcode>sf:INVALID_SESSION_ID</faultcode><faultstring>INVALID_SESSION_ID: Invalid Session ID found in SessionHeader</faultstring>` +
				`</soapenv:Fault></soapenv:Body></soapenv:Envelope>`))
			return
		}
		_, _ = w.Write([]byte(deployResponse))
	}))
	defer srv.Close()

	tr, err := transport.New(transport.Config{Session: session.Session{
		AccessToken: "stale", RefreshToken: "r", ClientID: "c", InstanceURL: srv.URL,
	}})
	require.NoError(t, err)

	_, err = New(tr).CheckDeployStatus(context.Background(), "0Af", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale", "fresh"}, sessionIDs)
}

func TestCheckDeployStatus_WithoutDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>` +
			`<checkDeployStatusResponse><result><id>0Af</id><done>false</done><status>InProgress</status>` +
			`<numberComponentsDeployed>10</numberComponentsDeployed><numberComponentsTotal>x</numberComponentsTotal></result>` +
			`</checkDeployStatusResponse></soapenv:Body></soapenv:Envelope>`))
	}))
	defer srv.Close()

	tr, err := transport.New(transport.Config{Session: session.Session{AccessToken: "tok", InstanceURL: srv.URL}})
	require.NoError(t, err)

	_, err = New(tr).CheckDeployStatus(context.Background(), "0Af", false)
	require.Error(t, err)
	assert.True(t, sferrors.IsKind(err, sferrors.ProtocolShape))
	assert.Contains(t, err.Error(), "numberComponentsTotal")
}

func TestCheckDeployStatus_RequiresID(t *testing.T) {
	_, err := New(nil).CheckDeployStatus(context.Background(), " ", false)
	assert.True(t, sferrors.IsKind(err, sferrors.Validation))
}
