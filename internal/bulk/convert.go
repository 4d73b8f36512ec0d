// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulk

import (
	"math"
	"strings"
	"time"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/normalize"
)

// snapshot reads typed values out of one normalized node.
type snapshot struct {
	node map[string]any
	err  error
}

func newSnapshot(what string, raw any, numeric []string) *snapshot {
	node, bad := normalize.Normalize(raw, numeric)
	s := &snapshot{node: node}
	switch {
	case node == nil:
		s.err = sferrors.Newf(sferrors.ProtocolShape, "%s: empty response", what)
	case len(bad) > 0:
		s.err = sferrors.Newf(sferrors.ProtocolShape, "%s: non-numeric counter %s", what, strings.Join(bad, ", "))
	}
	return s
}

func (s *snapshot) str(field string) string {
	switch v := s.node[field].(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

func (s *snapshot) count(field string) int64 {
	f, ok := s.node[field].(float64)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return int64(f)
}

func (s *snapshot) time(field string) time.Time {
	v := s.str(field)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000Z0700", time.RFC3339Nano} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func jobFromTree(raw any) (Job, error) {
	s := newSnapshot("job", raw, normalize.JobNumericFields)
	if s.err != nil {
		return Job{}, s.err
	}
	return Job{
		ID:              s.str("id"),
		Operation:       Operation(s.str("operation")),
		Object:          s.str("object"),
		State:           JobState(s.str("state")),
		ExternalIDField: s.str("externalIdFieldName"),
		ConcurrencyMode: s.str("concurrencyMode"),
		ContentType:     ContentType(s.str("contentType")),
		CreatedByID:     s.str("createdById"),
		CreatedDate:     s.time("createdDate"),
		SystemModstamp:  s.time("systemModstamp"),
		APIVersion:      s.str("apiVersion"),

		NumberBatchesQueued:     s.count("numberBatchesQueued"),
		NumberBatchesInProgress: s.count("numberBatchesInProgress"),
		NumberBatchesCompleted:  s.count("numberBatchesCompleted"),
		NumberBatchesFailed:     s.count("numberBatchesFailed"),
		NumberBatchesTotal:      s.count("numberBatchesTotal"),
		NumberRecordsProcessed:  s.count("numberRecordsProcessed"),
		NumberRecordsFailed:     s.count("numberRecordsFailed"),
		NumberRetries:           s.count("numberRetries"),
		TotalProcessingTime:     s.count("totalProcessingTime"),
		APIActiveProcessingTime: s.count("apiActiveProcessingTime"),
		ApexProcessingTime:      s.count("apexProcessingTime"),
	}, nil
}

func batchFromTree(raw any) (Batch, error) {
	s := newSnapshot("batch", raw, normalize.BatchNumericFields)
	if s.err != nil {
		return Batch{}, s.err
	}
	return Batch{
		ID:             s.str("id"),
		JobID:          s.str("jobId"),
		State:          BatchState(s.str("state")),
		StateMessage:   s.str("stateMessage"),
		CreatedDate:    s.time("createdDate"),
		SystemModstamp: s.time("systemModstamp"),

		NumberRecordsProcessed:  s.count("numberRecordsProcessed"),
		NumberRecordsFailed:     s.count("numberRecordsFailed"),
		TotalProcessingTime:     s.count("totalProcessingTime"),
		APIActiveProcessingTime: s.count("apiActiveProcessingTime"),
		ApexProcessingTime:      s.count("apexProcessingTime"),
	}, nil
}

// listItems returns the entries named item under a list document root,
// always as a slice.
func listItems(raw any, item string) []any {
	m, ok := normalize.StripNamespaces(raw).(map[string]any)
	if !ok {
		return []any{}
	}
	return normalize.ForceArray(m[item])
}
