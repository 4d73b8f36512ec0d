// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package session

import (
	"errors"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
)

func TestSession_Paths(t *testing.T) {
	tests := []struct {
		name    string
		version string
		rest    string
		async   string
	}{
		{name: "explicit version", version: "58.0", rest: "/services/data/v58.0", async: "/services/async/58.0"},
		{name: "v prefix tolerated", version: "v60.0", rest: "/services/data/v60.0", async: "/services/async/60.0"},
		{name: "default version", version: "", rest: "/services/data/v" + DefaultAPIVersion, async: "/services/async/" + DefaultAPIVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Session{APIVersion: tt.version}
			assert.Equal(t, tt.rest, s.RESTPath())
			assert.Equal(t, tt.async, s.AsyncPath())
		})
	}
}

func TestSession_WithRefreshCopies(t *testing.T) {
	orig := Session{AccessToken: "old", RefreshToken: "r1", InstanceURL: "https://a.example.com"}
	next := orig.WithRefresh("new", "", "")

	assert.Equal(t, "old", orig.AccessToken, "original must not change")
	assert.Equal(t, "new", next.AccessToken)
	assert.Equal(t, "r1", next.RefreshToken)
	assert.Equal(t, "https://a.example.com", next.InstanceURL)

	rotated := orig.WithRefresh("new2", "r2", "https://b.example.com/")
	assert.Equal(t, "r2", rotated.RefreshToken)
	assert.Equal(t, "https://b.example.com", rotated.BaseURL())
}

func TestSession_Validate(t *testing.T) {
	tests := []struct {
		name      string
		s         Session
		wantField string
	}{
		{name: "valid", s: Session{AccessToken: "t", InstanceURL: "https://x.example.com"}},
		{name: "local test server", s: Session{AccessToken: "t", InstanceURL: "http://127.0.0.1:51234"}},
		{name: "missing token", s: Session{InstanceURL: "https://x.example.com"}, wantField: "access_token"},
		{name: "missing url", s: Session{AccessToken: "t"}, wantField: "instance_url"},
		{name: "relative url", s: Session{AccessToken: "t", InstanceURL: "x.example.com"}, wantField: "instance_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			var fields validation.Errors
			if !errors.As(err, &fields) {
				t.Fatalf("Validate() error = %v, want validation.Errors", err)
			}
			if _, ok := fields[tt.wantField]; !ok {
				t.Errorf("Validate() error = %v, want a %s error", err, tt.wantField)
			}
		})
	}
}

func TestSession_CanRefresh(t *testing.T) {
	assert.False(t, Session{}.CanRefresh())
	assert.False(t, Session{RefreshToken: "r"}.CanRefresh())
	assert.True(t, Session{RefreshToken: "r", ClientID: "c"}.CanRefresh())
}
