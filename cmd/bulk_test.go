// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfkit/cli/internal/bulk"
)

func TestJobRequestFromFlags(t *testing.T) {
	t.Cleanup(func() {
		bulkOperation, bulkObject, bulkExternalID, bulkAssignment = "", "", "", ""
		bulkSerial, bulkZip = false, false
	})

	require.NoError(t, bulkCreateCmd.Flags().Parse([]string{
		"--operation", "insert",
		"--object", "Lead",
		"--assignment-rule", "01Qx0000000AbCd",
		"--serial",
	}))

	jr := jobRequestFromFlags()
	assert.Equal(t, bulk.JobRequest{
		Operation:        bulk.Insert,
		Object:           "Lead",
		AssignmentRuleID: "01Qx0000000AbCd",
		SerialMode:       true,
	}, jr)
	require.NoError(t, jr.Validate())
}

func TestBulkAddGzipFlag(t *testing.T) {
	t.Cleanup(func() { bulkGzip = false })

	require.NoError(t, bulkAddCmd.Flags().Parse([]string{"--gzip"}))
	assert.True(t, bulkGzip)
}
