// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package normalize

// JobNumericFields are the counters of a bulk ingest job snapshot.
var JobNumericFields = []string{
	"apexProcessingTime",
	"apiActiveProcessingTime",
	"numberBatchesCompleted",
	"numberBatchesQueued",
	"numberBatchesFailed",
	"numberBatchesInProgress",
	"numberBatchesTotal",
	"numberRecordsFailed",
	"numberRecordsProcessed",
	"numberRetries",
	"totalProcessingTime",
}

// BatchNumericFields are the counters of a bulk ingest batch snapshot.
var BatchNumericFields = []string{
	"apexProcessingTime",
	"apiActiveProcessingTime",
	"numberRecordsFailed",
	"numberRecordsProcessed",
	"totalProcessingTime",
}

// DeployNumericFields are the counters of a metadata deploy result.
var DeployNumericFields = []string{
	"numberComponentErrors",
	"numberComponentsDeployed",
	"numberComponentsTotal",
	"numberTestErrors",
	"numberTestsCompleted",
	"numberTestsTotal",
}

// TestNumericFields are the counters of a deploy's run-test result.
var TestNumericFields = []string{
	"numFailures",
	"numTestsRun",
	"totalTime",
}
