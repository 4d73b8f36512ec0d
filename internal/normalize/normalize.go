// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package normalize repairs the type ambiguity of decoded XML and SOAP trees.
//
// A decoded tree is built from map[string]any, []any, string, bool, float64
// and nil. XML carries no type information, so every scalar arrives as a
// string and a repeated element arrives as a single value when it happens to
// occur once. The functions here rewrite such a tree into a deterministic
// shape. They never touch their input: each returns a new tree.
//
// Order matters. Run StripNamespaces and FixScalars before CoerceNumeric so
// that "true" becomes a boolean and not a number, and run ForceArray on a
// collection field before iterating it. Normalize applies the fixed order.
package normalize

import (
	"math"
	"strconv"
	"strings"
)

const (
	// AttrKey holds an element's attributes in a decoded tree.
	AttrKey = "$"
	// TextKey holds an element's character data when it also has attributes.
	TextKey = "_"
)

// IsNil reports whether an attribute map marks its element as explicitly nil.
func IsNil(attrs map[string]any) bool {
	for _, k := range []string{"xsi:nil", "nil"} {
		if v, ok := attrs[k].(string); ok && v == "true" {
			return true
		}
	}
	return false
}

// FixScalars turns "true"/"false" strings held in object fields into booleans,
// nil-marked objects into nil, and empty objects into nil. Arrays are walked
// element by element; a bare string at the root is left as is.
func FixScalars(node any) any {
	switch v := node.(type) {
	case map[string]any:
		return fixObject(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fixValue(e)
		}
		return out
	default:
		return node
	}
}

func fixObject(m map[string]any) any {
	if attrs, ok := m[AttrKey].(map[string]any); ok && IsNil(attrs) {
		return nil
	}
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		if k == AttrKey {
			out[k] = e
			continue
		}
		out[k] = fixValue(e)
	}
	return out
}

func fixValue(v any) any {
	switch e := v.(type) {
	case string:
		switch e {
		case "true":
			return true
		case "false":
			return false
		}
		return e
	case map[string]any:
		return fixObject(e)
	case []any:
		out := make([]any, len(e))
		for i, x := range e {
			out[i] = fixValue(x)
		}
		return out
	default:
		return v
	}
}

// ForceArray returns v as a collection: nil becomes an empty slice, a lone
// value becomes a one-element slice, and a slice is returned unchanged.
func ForceArray(v any) []any {
	switch e := v.(type) {
	case nil:
		return []any{}
	case []any:
		return e
	default:
		return []any{e}
	}
}

// ForceArrayField rewrites field of node into a collection, returning a
// shallow copy of node. A nil node stays nil.
func ForceArrayField(node map[string]any, field string) map[string]any {
	if node == nil {
		return nil
	}
	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}
	out[field] = ForceArray(node[field])
	return out
}

// CoerceNumeric parses the named fields of node from text into float64.
// A value that does not parse becomes NaN so the defect stays visible;
// it is never defaulted to zero. Absent and nil fields are left alone, as
// are values that are already numbers. The returned slice lists the fields
// that became NaN.
func CoerceNumeric(fields []string, node map[string]any) (map[string]any, []string) {
	if node == nil {
		return nil, nil
	}
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = v
	}
	var bad []string
	for _, f := range fields {
		v, ok := out[f]
		if !ok || v == nil {
			continue
		}
		n := toNumber(v)
		if math.IsNaN(n) {
			bad = append(bad, f)
		}
		out[f] = n
	}
	return out, bad
}

func toNumber(v any) float64 {
	switch e := v.(type) {
	case float64:
		return e
	case int:
		return float64(e)
	case int64:
		return float64(e)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(e), 64)
		if err != nil {
			return math.NaN()
		}
		return n
	default:
		// booleans and nested values are not counters
		return math.NaN()
	}
}

// StripNamespaces drops the attribute metadata that accompanies the root of
// a parsed document (xmlns declarations and the like). Only the root is
// touched; nested attributes such as nil markers still matter to FixScalars.
func StripNamespaces(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == AttrKey {
			continue
		}
		out[k] = v
	}
	return out
}

// Normalize applies StripNamespaces, FixScalars and CoerceNumeric in that
// order to one object. A node that collapses to nil yields nil.
func Normalize(node any, numericFields []string) (map[string]any, []string) {
	fixed, ok := FixScalars(StripNamespaces(node)).(map[string]any)
	if !ok {
		return nil, nil
	}
	return CoerceNumeric(numericFields, fixed)
}
