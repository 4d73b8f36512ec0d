// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package bulk

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Namespace is the XML namespace of every bulk ingest document.
const Namespace = "http://www.force.com/2009/06/asyncapi/dataload"

// Operation is the DML performed by a job.
type Operation string

const (
	Insert     Operation = "insert"
	Update     Operation = "update"
	Upsert     Operation = "upsert"
	Delete     Operation = "delete"
	HardDelete Operation = "hardDelete"
	Query      Operation = "query"
	QueryAll   Operation = "queryAll"
)

// JobState is the server-reported state of a job.
type JobState string

const (
	JobOpen         JobState = "Open"
	JobClosed       JobState = "Closed"
	JobAborted      JobState = "Aborted"
	JobFailed       JobState = "Failed"
	JobUnknownState JobState = "UnknownState"
)

// BatchState is the server-reported state of a batch.
type BatchState string

const (
	BatchQueued     BatchState = "Queued"
	BatchInProgress BatchState = "InProgress"
	BatchCompleted  BatchState = "Completed"
	BatchFailed     BatchState = "Failed"
	// BatchNotProcessed is reported for the original batch of a chunked query.
	BatchNotProcessed BatchState = "NotProcessed"
)

// Terminal reports whether the batch will not change state again.
func (s BatchState) Terminal() bool {
	switch s {
	case BatchCompleted, BatchFailed, BatchNotProcessed:
		return true
	}
	return false
}

// ContentType is the format of batch data.
type ContentType string

const (
	CSV    ContentType = "CSV"
	ZipCSV ContentType = "ZIP_CSV"
)

// mime returns the upload content type for batch data of this format.
func (c ContentType) mime() string {
	if c == ZipCSV {
		return "zip/csv"
	}
	return "text/csv; charset=UTF-8"
}

// ResultKind selects what DownloadBatchResults streams.
type ResultKind string

const (
	// ResultRequest is the batch data as it was uploaded.
	ResultRequest ResultKind = "request"
	// ResultResult is the per-record outcome, or a query result set.
	ResultResult ResultKind = "result"
)

// JobRequest describes a job to create.
type JobRequest struct {
	Operation Operation
	Object    string
	// ExternalIDField is required for upsert and ignored otherwise.
	ExternalIDField string
	// SerialMode processes batches one at a time instead of in parallel.
	SerialMode bool
	// ZipAttachment marks batches as zip files carrying request.txt and binaries.
	ZipAttachment    bool
	AssignmentRuleID string
}

// Validate checks the request before anything is sent.
func (r JobRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Operation, validation.Required,
			validation.In(Insert, Update, Upsert, Delete, HardDelete, Query, QueryAll)),
		validation.Field(&r.Object, validation.Required),
		validation.Field(&r.ExternalIDField, validation.When(r.Operation == Upsert, validation.Required)),
	)
}

// Job is a normalized job snapshot.
type Job struct {
	ID              string
	Operation       Operation
	Object          string
	State           JobState
	ExternalIDField string
	ConcurrencyMode string
	ContentType     ContentType
	CreatedByID     string
	CreatedDate     time.Time
	SystemModstamp  time.Time
	APIVersion      string

	NumberBatchesQueued     int64
	NumberBatchesInProgress int64
	NumberBatchesCompleted  int64
	NumberBatchesFailed     int64
	NumberBatchesTotal      int64
	NumberRecordsProcessed  int64
	NumberRecordsFailed     int64
	NumberRetries           int64
	TotalProcessingTime     int64
	APIActiveProcessingTime int64
	ApexProcessingTime      int64

	// Batches is populated by GetJob only; it is never nil there.
	Batches []Batch
}

// Batch is a normalized batch snapshot.
type Batch struct {
	ID             string
	JobID          string
	State          BatchState
	StateMessage   string
	CreatedDate    time.Time
	SystemModstamp time.Time

	NumberRecordsProcessed  int64
	NumberRecordsFailed     int64
	TotalProcessingTime     int64
	APIActiveProcessingTime int64
	ApexProcessingTime      int64
}

// Done reports whether every batch of the job is terminal. A job with no
// batches is done only once it left the Open state.
func (j Job) Done() bool {
	if j.State == JobAborted || j.State == JobFailed {
		return true
	}
	if len(j.Batches) == 0 {
		return j.State != JobOpen && j.NumberBatchesTotal == 0
	}
	for _, b := range j.Batches {
		if !b.State.Terminal() {
			return false
		}
	}
	return true
}
