// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package discovery resolves the newest API version an instance serves.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sfkit/cli/internal/backend"
	sferrors "sfkit/cli/internal/errors"
)

// VersionLister is the part of backend.API discovery needs.
type VersionLister interface {
	Versions(ctx context.Context) ([]backend.Version, error)
}

// Latest returns the highest version listed by the instance, using the RAM
// cache when the instance was already asked during this process.
func Latest(ctx context.Context, api VersionLister, instance string) (string, error) {
	key := strings.TrimRight(instance, "/")
	if v := GetCached(key); v != "" {
		return v, nil
	}

	versions, err := api.Versions(ctx)
	if err != nil {
		return "", fmt.Errorf("discover api version: %w", err)
	}
	best, bestNum := "", -1.0
	for _, v := range versions {
		n, err := strconv.ParseFloat(v.Version, 64)
		if err != nil {
			continue
		}
		if n > bestNum {
			best, bestNum = v.Version, n
		}
	}
	if best == "" {
		return "", sferrors.New(sferrors.ProtocolShape, "discover api version: instance listed no versions")
	}

	SetCached(key, best)
	return best, nil
}
