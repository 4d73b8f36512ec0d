// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsFile receives the process metrics in Prometheus text format when
// the command finishes, for a node-exporter textfile collector or a CI job.
var metricsFile string

// writeMetrics dumps every registered metric to path. The file is replaced
// atomically, so a collector never reads a partial dump.
func writeMetrics(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}
