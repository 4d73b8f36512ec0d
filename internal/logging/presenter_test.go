// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"

	sferrors "sfkit/cli/internal/errors"
)

func TestFormatError(t *testing.T) {
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	tests := []struct {
		name  string
		err   error
		title string
		hint  string
	}{
		{name: "auth", err: sferrors.New(sferrors.AuthExpired, "session expired"), title: "Session expired", hint: "sfkit login"},
		{name: "server error", err: sferrors.Request(503, "", "unavailable"), title: "Request failed", hint: "server error"},
		{name: "wrapped size", err: fmt.Errorf("download: %w", sferrors.New(sferrors.SizeLimit, "3 GiB")), title: "Download too large", hint: "max_download_bytes"},
		{name: "timeout", err: sferrors.New(sferrors.Timeout, "slow.pdf"), title: "Timed out", hint: "file_timeout"},
		{name: "plain", err: errors.New("boom token=abc"), title: "Command failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatError(tt.err)
			assert.Contains(t, out, tt.title)
			if tt.hint != "" {
				assert.Contains(t, out, tt.hint)
			}
			assert.NotContains(t, out, "abc")
		})
	}
}

func TestFormatError_CanceledIsSilent(t *testing.T) {
	assert.Empty(t, FormatError(nil))
	assert.Empty(t, FormatError(sferrors.Wrap(sferrors.Canceled, "download", context.Canceled)))
}

func TestPresentError(t *testing.T) {
	assert.Equal(t, "connect: dial postgres://*:*@db/crm", PresentError("connect", errors.New("dial postgres://u:p@db/crm")))
	assert.Empty(t, PresentError("x", nil))
}
