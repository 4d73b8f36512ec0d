// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; tokens and DSNs go to the OS keychain.
//
// Values are layered: built-in defaults, then config.yaml, then a .env file
// in the working directory, then SFKIT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	sferrors "sfkit/cli/internal/errors"
	"sfkit/cli/internal/session"
	"sfkit/cli/internal/xdg"
)

const (
	DefaultMaxDownloadBytes int64 = 2 << 30
	DefaultFileTimeout            = 5 * time.Minute
	DefaultPollInterval           = 5 * time.Second
	DefaultLogLevel               = "info"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	InstanceURL string `yaml:"instance_url,omitempty"`
	// ClientID is the connected app consumer key used for login and refresh.
	ClientID   string `yaml:"client_id,omitempty"`
	APIVersion string `yaml:"api_version"`
	// MaxDownloadBytes caps the total size of one download archive.
	MaxDownloadBytes int64         `yaml:"max_download_bytes"`
	FileTimeout      time.Duration `yaml:"file_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	LogLevel         string        `yaml:"log_level"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		APIVersion:       session.DefaultAPIVersion,
		MaxDownloadBytes: DefaultMaxDownloadBytes,
		FileTimeout:      DefaultFileTimeout,
		PollInterval:     DefaultPollInterval,
		LogLevel:         DefaultLogLevel,
	}
}

var apiVersionRe = regexp.MustCompile(`^\d{2,3}\.0$`)

// Validate checks every field.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.InstanceURL, is.RequestURL),
		validation.Field(&c.APIVersion, validation.Required, validation.Match(apiVersionRe).Error("must look like 59.0")),
		validation.Field(&c.MaxDownloadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.FileTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
}

// Path returns the path to the config file.
func Path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads configuration from the default path, .env and the environment.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, sferrors.Wrap(sferrors.Config, "config dir", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, sferrors.Wrap(sferrors.Config, ".env", err)
	}
	return LoadFrom(p)
}

// LoadFrom reads configuration from path; a missing file yields defaults.
// Environment overrides are applied and the result is validated.
func LoadFrom(path string) (Config, error) {
	c := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return c, sferrors.Wrap(sferrors.Config, "read "+path, err)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, sferrors.Wrap(sferrors.Config, "parse "+path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, sferrors.Wrap(sferrors.Config, "invalid configuration", err)
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SFKIT_INSTANCE_URL"); v != "" {
		c.InstanceURL = v
	}
	if v := os.Getenv("SFKIT_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("SFKIT_API_VERSION"); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv("SFKIT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SFKIT_MAX_DOWNLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return sferrors.Wrap(sferrors.Config, "SFKIT_MAX_DOWNLOAD_BYTES", err)
		}
		c.MaxDownloadBytes = n
	}
	for name, dst := range map[string]*time.Duration{
		"SFKIT_FILE_TIMEOUT":  &c.FileTimeout,
		"SFKIT_POLL_INTERVAL": &c.PollInterval,
	} {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return sferrors.Wrap(sferrors.Config, name, err)
		}
		*dst = d
	}
	return nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	if err := c.Validate(); err != nil {
		return sferrors.Wrap(sferrors.Config, "invalid configuration", err)
	}
	p, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(p, c)
}

// SaveTo writes c to path.
func SaveTo(path string, c Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, b, 0o600)
}
