package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job encapsulates the lifecycle of one effect application. Progress is
// advisory telemetry: monotonically non-decreasing while the job is live,
// frozen once the status is terminal. ResultImageID is set only on
// completed jobs, ErrorMessage only on failed ones.
type Job struct {
	ID            string
	SourceImageID string
	EffectID      string
	Status        JobStatus
	Progress      int
	ResultImageID string
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}
