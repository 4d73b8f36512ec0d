// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfkit/cli/internal/bulk"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "0 B", formatBytes(0))
	assert.Equal(t, "1023 B", formatBytes(1023))
	assert.Equal(t, "1.0 KiB", formatBytes(1024))
	assert.Equal(t, "1.5 MiB", formatBytes(3<<19))
	assert.Equal(t, "2.0 GiB", formatBytes(2<<30))
}

func TestRecordColumns(t *testing.T) {
	cols := recordColumns([]map[string]any{
		{"attributes": map[string]any{}, "Name": "Acme", "Id": "001a"},
		{"Id": "001b", "Industry": "Energy"},
	})
	assert.Equal(t, []string{"Id", "Industry", "Name"}, cols)
	assert.Empty(t, recordColumns(nil))
}

func TestResolveDSN_Precedence(t *testing.T) {
	env := map[string]string{
		"SFKIT_DSN":    "",
		"DATABASE_URL": " postgres://app@db/crm ",
	}
	orig := getenv
	getenv = func(k string) string { return env[k] }
	t.Cleanup(func() { getenv = orig })

	dsn, source, err := resolveDSN("postgres://flag@db/crm")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag@db/crm", dsn)
	assert.Equal(t, "--dsn", source)

	dsn, source, err = resolveDSN("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@db/crm", dsn)
	assert.Equal(t, "DATABASE_URL environment variable", source)

	env["SFKIT_DSN"] = "postgres://sf@db/crm"
	dsn, source, err = resolveDSN("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://sf@db/crm", dsn)
	assert.Equal(t, "SFKIT_DSN environment variable", source)
}

func TestJobProgress(t *testing.T) {
	rows := jobProgress(bulk.Job{
		State:                  bulk.JobClosed,
		NumberBatchesCompleted: 2,
		NumberBatchesTotal:     3,
		NumberBatchesQueued:    1,
		NumberRecordsProcessed: 400,
		NumberRecordsFailed:    7,
	})
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"State", "Closed"}, rows[0])
	assert.Equal(t, "2/3 completed, 0 failed, 1 queued, 0 in progress", rows[1][1])
	assert.Equal(t, "400 processed, 7 failed", rows[2][1])
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
