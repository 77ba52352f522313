package domain

import "time"

// JobStatus is a bulk job's state machine position.
type JobStatus string

// Bulk job states. Transitions: queued -> running -> one of
// {succeeded, partial, failed}; cancelled is reachable from queued and
// running on explicit cancel.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobPartial   JobStatus = "partial"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsValid returns true if the status is recognised.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobQueued, JobRunning, JobPartial, JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true once the job will no longer be mutated.
// Terminal jobs are retained for audit.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobPartial, JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s JobStatus) String() string {
	return string(s)
}

// JobKind identifies what a bulk job does to each item.
type JobKind string

// Bulk job kinds.
const (
	// JobIngest runs the full normalise->chunk->embed->index pipeline.
	JobIngest JobKind = "ingest"

	// JobReindex rebuilds index entries from stored chunks and embeddings.
	JobReindex JobKind = "reindex"

	// JobReembed regenerates embeddings with the current model and swaps
	// the index entries atomically per document.
	JobReembed JobKind = "reembed"
)

// IsValid returns true if the kind is recognised.
func (k JobKind) IsValid() bool {
	switch k {
	case JobIngest, JobReindex, JobReembed:
		return true
	default:
		return false
	}
}

// FailedItem records one item-level failure inside a bulk job.
type FailedItem struct {
	// ItemID is the document the failure is scoped to.
	ItemID string `json:"item_id"`

	// Error is the recorded failure message.
	Error string `json:"error"`
}

// BulkJob is a persisted batch job record. It is created on submission,
// mutated only by the bulk coordinator, and retained after reaching a
// terminal state.
type BulkJob struct {
	// ID is the unique job identifier.
	ID string

	// Kind is what the job does to each item.
	Kind JobKind

	// Status is the current state machine position.
	Status JobStatus

	// ItemIDs are the documents the job covers.
	ItemIDs []string

	// Total is the number of items submitted.
	Total int

	// Processed counts items that completed, successfully or as a
	// recorded failure. Updated after each item for progress reporting.
	Processed int

	// FailedItems records item-level failures.
	FailedItems []FailedItem

	// ContinueOnError keeps the job running past item failures.
	// When false, the first failure fails the job and skips the rest.
	ContinueOnError bool

	// CreatedAt is when the job was submitted.
	CreatedAt time.Time

	// UpdatedAt is when the record last changed.
	UpdatedAt time.Time
}

// Finalise computes the terminal status from the item outcomes.
// succeeded requires zero failures; partial requires at least one
// success and at least one recorded failure.
func (j *BulkJob) Finalise() {
	switch {
	case len(j.FailedItems) == 0:
		j.Status = JobSucceeded
	case j.Processed > len(j.FailedItems):
		j.Status = JobPartial
	default:
		j.Status = JobFailed
	}
}
