// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeXML(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<batchInfoList xmlns="http://www.force.com/2009/06/asyncapi/dataload" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <batchInfo>
    <id>751A</id>
    <stateMessage xsi:nil="true"/>
  </batchInfo>
  <batchInfo>
    <id>751B</id>
    <state>Completed</state>
    <note lang="en">done</note>
    <empty></empty>
  </batchInfo>
</batchInfoList>`

	tree, err := DecodeXML(strings.NewReader(doc))
	require.NoError(t, err)

	root := tree["batchInfoList"].(map[string]any)
	attrs := root["$"].(map[string]any)
	assert.Equal(t, "http://www.force.com/2009/06/asyncapi/dataload", attrs["xmlns"])
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema-instance", attrs["xmlns:xsi"])

	list, ok := root["batchInfo"].([]any)
	require.True(t, ok, "repeated elements become a list")
	require.Len(t, list, 2)

	first := list[0].(map[string]any)
	assert.Equal(t, "751A", first["id"])
	assert.Equal(t, map[string]any{"$": map[string]any{"xsi:nil": "true"}}, first["stateMessage"])

	second := list[1].(map[string]any)
	assert.Equal(t, "Completed", second["state"])
	assert.Equal(t, map[string]any{"$": map[string]any{"lang": "en"}, "_": "done"}, second["note"])
	assert.Equal(t, "", second["empty"])
	assert.NotContains(t, second, "_", "whitespace between children is dropped")
}

func TestDecodeXML_SingleChildStaysScalar(t *testing.T) {
	tree, err := DecodeXML(strings.NewReader(`<result-list><result>752x</result></result-list>`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"result-list": map[string]any{"result": "752x"}}, tree)
}

func TestDecodeXML_Errors(t *testing.T) {
	_, err := DecodeXML(strings.NewReader(""))
	assert.Error(t, err)

	_, err = DecodeXML(strings.NewReader("<open><unclosed></open>"))
	assert.Error(t, err)
}

func TestSOAPBody(t *testing.T) {
	tree, err := DecodeXML(strings.NewReader(
		`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"><soapenv:Body>` +
			`<soapenv:Fault><faultcode>sf:INVALID_SESSION_ID</faultcode><faultstring>expired</faultstring></soapenv:Fault>` +
			`</soapenv:Body></soapenv:Envelope>`))
	require.NoError(t, err)

	_, fault, ok := SOAPBody(tree)
	require.True(t, ok)
	require.NotNil(t, fault)
	d := faultDetail(fault)
	assert.True(t, isAuthExpired(0, d))
	assert.Equal(t, "expired", d.message)

	_, _, ok = SOAPBody(map[string]any{"jobInfo": map[string]any{}})
	assert.False(t, ok)
}
