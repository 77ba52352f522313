package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobQueued, false},
		{JobRunning, false},
		{JobSucceeded, true},
		{JobPartial, true},
		{JobFailed, true},
		{JobCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

// TestBulkJob_Finalise covers the terminal status rules: succeeded needs
// zero failures, partial needs at least one success and one failure.
func TestBulkJob_Finalise(t *testing.T) {
	tests := []struct {
		name      string
		processed int
		failed    int
		expected  JobStatus
	}{
		{name: "all succeeded", processed: 10, failed: 0, expected: JobSucceeded},
		{name: "some failed", processed: 10, failed: 2, expected: JobPartial},
		{name: "all failed", processed: 10, failed: 10, expected: JobFailed},
		{name: "empty job succeeds", processed: 0, failed: 0, expected: JobSucceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := BulkJob{
				Status:    JobRunning,
				Total:     tt.processed,
				Processed: tt.processed,
			}
			for i := 0; i < tt.failed; i++ {
				job.FailedItems = append(job.FailedItems, FailedItem{ItemID: "doc", Error: "boom"})
			}

			job.Finalise()
			assert.Equal(t, tt.expected, job.Status)
		})
	}
}

func TestJobKind_IsValid(t *testing.T) {
	for _, k := range []JobKind{JobIngest, JobReindex, JobReembed} {
		assert.True(t, k.IsValid(), k)
	}
	assert.False(t, JobKind("compact").IsValid())
}
