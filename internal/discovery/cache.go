// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package discovery

import "sync"

var (
	// Latest version per instance URL. Lives only in process memory.
	globalCache     = map[string]string{}
	globalCacheLock sync.RWMutex
)

// GetCached returns the cached version for instance, or "".
func GetCached(instance string) string {
	globalCacheLock.RLock()
	defer globalCacheLock.RUnlock()
	return globalCache[instance]
}

// SetCached stores the version for instance.
func SetCached(instance, version string) {
	globalCacheLock.Lock()
	defer globalCacheLock.Unlock()
	globalCache[instance] = version
}

// ClearCache drops every cached version (primarily for testing).
func ClearCache() {
	globalCacheLock.Lock()
	defer globalCacheLock.Unlock()
	globalCache = map[string]string{}
}
