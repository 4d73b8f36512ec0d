// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixScalars(t *testing.T) {
	in := map[string]any{
		"done":    "true",
		"success": "false",
		"name":    "TRUE",
		"errorMessage": map[string]any{
			AttrKey: map[string]any{"xsi:nil": "true"},
		},
		"details": map[string]any{},
		"nested": map[string]any{
			"checkOnly": "false",
			"items":     []any{"true", "x"},
		},
	}

	got, ok := FixScalars(in).(map[string]any)
	require.True(t, ok)

	assert.Equal(t, true, got["done"])
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "TRUE", got["name"], "only exact lowercase literals are booleans")
	assert.Nil(t, got["errorMessage"])
	assert.Contains(t, got, "errorMessage")
	assert.Nil(t, got["details"])

	nested := got["nested"].(map[string]any)
	assert.Equal(t, false, nested["checkOnly"])
	assert.Equal(t, []any{true, "x"}, nested["items"])

	// input untouched
	assert.Equal(t, "true", in["done"])
}

func TestFixScalars_NilMarkerVariants(t *testing.T) {
	tests := []struct {
		name  string
		attrs map[string]any
		isNil bool
	}{
		{name: "xsi prefix", attrs: map[string]any{"xsi:nil": "true"}, isNil: true},
		{name: "bare nil", attrs: map[string]any{"nil": "true"}, isNil: true},
		{name: "nil false", attrs: map[string]any{"xsi:nil": "false"}, isNil: false},
		{name: "other attr", attrs: map[string]any{"type": "x"}, isNil: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := map[string]any{"f": map[string]any{AttrKey: tt.attrs, TextKey: "v"}}
			got := FixScalars(in).(map[string]any)
			if tt.isNil {
				assert.Nil(t, got["f"])
			} else {
				assert.NotNil(t, got["f"])
			}
		})
	}
}

func TestForceArray(t *testing.T) {
	one := map[string]any{"id": "751"}
	tests := []struct {
		name string
		in   any
		want []any
	}{
		{name: "nil", in: nil, want: []any{}},
		{name: "single object", in: one, want: []any{one}},
		{name: "single string", in: "752", want: []any{"752"}},
		{name: "array kept", in: []any{"a", "b", "c"}, want: []any{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForceArray(tt.in))
		})
	}
}

func TestForceArrayField(t *testing.T) {
	got := ForceArrayField(map[string]any{"batchInfo": map[string]any{"id": "1"}}, "batchInfo")
	assert.Len(t, got["batchInfo"], 1)

	empty := ForceArrayField(map[string]any{}, "batchInfo")
	assert.Equal(t, []any{}, empty["batchInfo"])

	assert.Nil(t, ForceArrayField(nil, "x"))
}

func TestCoerceNumeric(t *testing.T) {
	in := map[string]any{
		"numberRecordsProcessed": "251",
		"numberRecordsFailed":    "0",
		"totalProcessingTime":    "1.5",
		"numberRetries":          "abc",
		"numberBatchesTotal":     nil,
		"id":                     "750x0000000001",
		"apexProcessingTime":     true,
	}

	got, bad := CoerceNumeric(JobNumericFields, in)

	assert.Equal(t, 251.0, got["numberRecordsProcessed"])
	assert.Equal(t, 0.0, got["numberRecordsFailed"])
	assert.Equal(t, 1.5, got["totalProcessingTime"])
	assert.True(t, math.IsNaN(got["numberRetries"].(float64)))
	assert.True(t, math.IsNaN(got["apexProcessingTime"].(float64)), "booleans are not counters")
	assert.Nil(t, got["numberBatchesTotal"])
	assert.Equal(t, "750x0000000001", got["id"])
	assert.NotContains(t, got, "numberBatchesQueued")
	assert.ElementsMatch(t, []string{"numberRetries", "apexProcessingTime"}, bad)
}

func TestStripNamespaces(t *testing.T) {
	in := map[string]any{
		AttrKey: map[string]any{"xmlns": "http://www.force.com/2009/06/asyncapi/dataload"},
		"id":    "750",
		"child": map[string]any{AttrKey: map[string]any{"xsi:nil": "true"}},
	}
	got := StripNamespaces(in).(map[string]any)
	assert.NotContains(t, got, AttrKey)
	assert.Contains(t, got["child"].(map[string]any), AttrKey, "nested attributes stay")
	assert.Equal(t, "scalar", StripNamespaces("scalar"))
}

func TestNormalize_Order(t *testing.T) {
	in := map[string]any{
		AttrKey:                  map[string]any{"xmlns": "urn:x"},
		"numberRecordsProcessed": "251",
		"done":                   "true",
		"numberRetries":          "true",
	}
	got, bad := Normalize(in, append([]string{}, JobNumericFields...))

	assert.NotContains(t, got, AttrKey)
	assert.Equal(t, 251.0, got["numberRecordsProcessed"])
	assert.Equal(t, true, got["done"])
	// "true" is fixed to a boolean first, so coercion flags it instead of producing 1
	assert.True(t, math.IsNaN(got["numberRetries"].(float64)))
	assert.Equal(t, []string{"numberRetries"}, bad)

	gone, _ := Normalize(map[string]any{AttrKey: map[string]any{"xmlns": "urn:x"}}, nil)
	assert.Nil(t, gone)
}
