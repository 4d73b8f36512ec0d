// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfkit/cli/internal/backend"
	sferrors "sfkit/cli/internal/errors"
)

type listerFunc func(ctx context.Context) ([]backend.Version, error)

func (f listerFunc) Versions(ctx context.Context) ([]backend.Version, error) { return f(ctx) }

func TestLatest(t *testing.T) {
	ClearCache()
	t.Cleanup(ClearCache)

	calls := 0
	api := listerFunc(func(context.Context) ([]backend.Version, error) {
		calls++
		return []backend.Version{{Version: "58.0"}, {Version: "60.0"}, {Version: "bogus"}, {Version: "59.0"}}, nil
	})

	v, err := Latest(context.Background(), api, "https://acme.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "60.0", v)

	v, err = Latest(context.Background(), api, "https://acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, "60.0", v)
	assert.Equal(t, 1, calls)
}

func TestLatest_Errors(t *testing.T) {
	ClearCache()
	t.Cleanup(ClearCache)

	_, err := Latest(context.Background(), listerFunc(func(context.Context) ([]backend.Version, error) {
		return nil, errors.New("dial tcp: refused")
	}), "https://a.example.com")
	require.Error(t, err)
	assert.Empty(t, GetCached("https://a.example.com"))

	_, err = Latest(context.Background(), listerFunc(func(context.Context) ([]backend.Version, error) {
		return []backend.Version{}, nil
	}), "https://b.example.com")
	assert.True(t, sferrors.IsKind(err, sferrors.ProtocolShape))
}
