// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, nil))).
		With("dsn", "postgres://app:pw@db/crm")

	logger.Info("token=abc123 refreshed",
		"err", errors.New(`{"access_token":"secret"}`),
		slog.Group("req", "auth", "Bearer xyz"),
		"count", 3,
	)

	out := buf.String()
	assert.NotContains(t, out, "abc123")
	assert.NotContains(t, out, "secret")
	assert.NotContains(t, out, "xyz")
	assert.NotContains(t, out, ":pw@")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "req.auth")
}

func TestMaskingHandler_LevelFromNext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMaskingHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestPtermLevel(t *testing.T) {
	assert.Equal(t, pterm.LogLevelDebug, ptermLevel("DEBUG"))
	assert.Equal(t, pterm.LogLevelWarn, ptermLevel("warn"))
	assert.Equal(t, pterm.LogLevelError, ptermLevel("error"))
	assert.Equal(t, pterm.LogLevelInfo, ptermLevel(""))
}
