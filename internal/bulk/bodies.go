// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulk

import (
	"encoding/xml"
	"strings"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// jobBody renders the create-job document. Element order is fixed by the
// server's schema.
func jobBody(r JobRequest) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<jobInfo xmlns="` + Namespace + `">`)
	element(&b, "operation", string(r.Operation))
	element(&b, "object", r.Object)
	if r.Operation == Upsert && r.ExternalIDField != "" {
		element(&b, "externalIdFieldName", r.ExternalIDField)
	}
	mode := "Parallel"
	if r.SerialMode {
		mode = "Serial"
	}
	element(&b, "concurrencyMode", mode)
	ct := CSV
	if r.ZipAttachment {
		ct = ZipCSV
	}
	element(&b, "contentType", string(ct))
	if r.AssignmentRuleID != "" {
		element(&b, "assignmentRuleId", r.AssignmentRuleID)
	}
	b.WriteString(`</jobInfo>`)
	return b.String()
}

// stateBody renders the document that closes or aborts a job.
func stateBody(state JobState) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<jobInfo xmlns="` + Namespace + `">`)
	element(&b, "state", string(state))
	b.WriteString(`</jobInfo>`)
	return b.String()
}

func element(b *strings.Builder, name, value string) {
	b.WriteString("<" + name + ">")
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString("</" + name + ">")
}
