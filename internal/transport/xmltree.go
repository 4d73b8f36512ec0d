// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package transport

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"sfkit/cli/internal/normalize"
)

const xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"

type xmlFrame struct {
	name  string
	node  map[string]any
	kids  int
	text  strings.Builder
	attrs bool
}

// DecodeXML parses a document into a generic tree of the form
// {rootName: value}. Elements are keyed by local name and a name that repeats
// under one parent becomes a []any. Attributes live under "$" and character
// data under "_" when the element also has attributes or children. A
// text-only element becomes its string, an empty one the empty string.
// No type conversion happens here; see package normalize.
func DecodeXML(r io.Reader) (map[string]any, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	var stack []*xmlFrame
	var root map[string]any
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			f := &xmlFrame{name: t.Name.Local, node: map[string]any{}}
			if len(t.Attr) > 0 {
				attrs := make(map[string]any, len(t.Attr))
				for _, a := range t.Attr {
					attrs[attrKey(a.Name)] = a.Value
				}
				f.node[normalize.AttrKey] = attrs
				f.attrs = true
			}
			if len(stack) > 0 {
				stack[len(stack)-1].kids++
			}
			stack = append(stack, f)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v := f.value()
			if len(stack) == 0 {
				root = map[string]any{f.name: v}
				continue
			}
			addChild(stack[len(stack)-1].node, f.name, v)
		}
	}
	if root == nil {
		return nil, errors.New("decode xml: empty document")
	}
	return root, nil
}

func (f *xmlFrame) value() any {
	text := f.text.String()
	if strings.TrimSpace(text) == "" {
		text = ""
	}
	if f.kids == 0 && !f.attrs {
		return text
	}
	if text != "" {
		f.node[normalize.TextKey] = text
	}
	return f.node
}

func addChild(parent map[string]any, name string, v any) {
	cur, ok := parent[name]
	if !ok {
		parent[name] = v
		return
	}
	if list, ok := cur.([]any); ok {
		parent[name] = append(list, v)
		return
	}
	parent[name] = []any{cur, v}
}

// attrKey renders an attribute name the way it appears in the source for
// namespace declarations and xsi attributes, and by local name otherwise.
func attrKey(n xml.Name) string {
	switch {
	case n.Space == "" && n.Local == "xmlns":
		return "xmlns"
	case n.Space == "xmlns":
		return "xmlns:" + n.Local
	case n.Space == xsiNamespace:
		return "xsi:" + n.Local
	default:
		return n.Local
	}
}
