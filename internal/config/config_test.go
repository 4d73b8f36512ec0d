// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "sfkit/cli/internal/errors"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SFKIT_INSTANCE_URL", "SFKIT_CLIENT_ID", "SFKIT_API_VERSION", "SFKIT_LOG_LEVEL",
		"SFKIT_MAX_DOWNLOAD_BYTES", "SFKIT_FILE_TIMEOUT", "SFKIT_POLL_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFrom_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)
	c, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
	assert.Equal(t, "59.0", c.APIVersion)
	assert.Equal(t, int64(2<<30), c.MaxDownloadBytes)
	assert.Equal(t, 5*time.Minute, c.FileTimeout)
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(
		"instance_url: https://acme.my.example.com\napi_version: \"60.0\"\nfile_timeout: 90s\nlog_level: debug\n"), 0o600))
	t.Setenv("SFKIT_MAX_DOWNLOAD_BYTES", "1048576")
	t.Setenv("SFKIT_LOG_LEVEL", "warn")

	c, err := LoadFrom(p)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.my.example.com", c.InstanceURL)
	assert.Equal(t, "60.0", c.APIVersion)
	assert.Equal(t, 90*time.Second, c.FileTimeout)
	assert.Equal(t, int64(1048576), c.MaxDownloadBytes)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, DefaultPollInterval, c.PollInterval)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad yaml", file: "api_version: [\n"},
		{name: "bad version", file: "api_version: v59\n"},
		{name: "bad level", file: "log_level: loud\n"},
		{name: "bad url", file: "instance_url: not a url\n"},
		{name: "bad env size", env: map[string]string{"SFKIT_MAX_DOWNLOAD_BYTES": "lots"}},
		{name: "bad env timeout", env: map[string]string{"SFKIT_FILE_TIMEOUT": "soon"}},
		{name: "timeout too short", env: map[string]string{"SFKIT_FILE_TIMEOUT": "10ms"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			p := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(p, []byte(tt.file), 0o600))
			_, err := LoadFrom(p)
			require.Error(t, err)
			assert.True(t, sferrors.IsKind(err, sferrors.Config))
		})
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), "config.yaml")
	c := Defaults()
	c.InstanceURL = "https://acme.my.example.com"
	c.ClientID = "3MVG9"
	require.NoError(t, SaveTo(p, c))

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := LoadFrom(p)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
