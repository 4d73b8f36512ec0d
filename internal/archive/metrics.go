// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BytesStreamed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sfkit",
			Subsystem: "archive",
			Name:      "file_bytes_total",
			Help:      "Total number of file bytes copied into archives",
		},
	)

	// ArchivesTotal counts archives by outcome: completed, canceled,
	// aborted or rejected.
	ArchivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sfkit",
			Subsystem: "archive",
			Name:      "total",
			Help:      "Total number of archives by outcome",
		},
		[]string{"result"},
	)
)
