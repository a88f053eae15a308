package domain

import "time"

// JobStatus enumerates the lifecycle milestones of an analysis job.
type JobStatus string

const (
	StatusQueued     JobStatus = "QUEUED"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status ends a processing pass. Terminal jobs
// are only picked up again when a producer re-enqueues them.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidTransition enforces the allowed job state machine edges. A re-enqueued
// terminal job restarts its cycle at PROCESSING.
func ValidTransition(from, to JobStatus) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusCompleted, StatusFailed:
		return to == StatusProcessing
	default:
		return false
	}
}

// AnalysisJob is the persisted record the worker drives through the pipeline.
// It is created externally by the producer and mutated only by the worker.
// The alignment summary fields stay nil until alignment succeeds.
type AnalysisJob struct {
	ID            string
	SequenceName  string
	Sequence      string
	Status        JobStatus
	ErrorMessage  *string
	BlastEvalue   *float64
	BlastIdentity *float64
	Chromosome    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}
