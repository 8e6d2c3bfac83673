// Package jobs owns the job table and the job state machine. The manager is
// the only mutator of job records: submission inserts a pending job and
// spawns exactly one detached goroutine bound to it, and every later write
// flows through guarded mutators that discard updates to terminal jobs.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"effectlab/internal/domain"
	"effectlab/internal/effects"
	"effectlab/internal/store"
)

// Executor runs the transformation pipeline for one job.
type Executor interface {
	Execute(ctx context.Context, sourceImageID, effectID string, report func(int)) (string, error)
}

// Manager holds job records for the lifetime of the process. The table lock
// covers inserts and reads from any goroutine; mutation of an individual
// record only ever happens from the single goroutine bound to that job.
type Manager struct {
	store    *store.ImageStore
	registry *effects.Registry
	executor Executor
	logger   zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewManager wires a job manager.
func NewManager(st *store.ImageStore, reg *effects.Registry, exec Executor, logger zerolog.Logger) *Manager {
	return &Manager{
		store:    st,
		registry: reg,
		executor: exec,
		logger:   logger,
		jobs:     make(map[string]*domain.Job),
	}
}

// Submit validates the request, creates a pending job and schedules its
// transformation. It returns the new job id immediately and never blocks on
// the transformation itself. Validation failures create no job.
func (m *Manager) Submit(ctx context.Context, sourceImageID, effectID string) (string, error) {
	if _, err := m.registry.Resolve(effectID); err != nil {
		return "", err
	}
	if !m.store.Exists(sourceImageID) {
		return "", domain.ErrUnknownImage
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		SourceImageID: sourceImageID,
		EffectID:      effectID,
		Status:        domain.JobStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	m.logger.Info().
		Str("job_id", job.ID).
		Str("source_image_id", sourceImageID).
		Str("effect_id", effectID).
		Msg("jobs: submitted")

	go m.run(job.ID, sourceImageID, effectID)
	return job.ID, nil
}

// GetStatus returns a copy of the job record. Pure read, no side effects.
func (m *Manager) GetStatus(jobID string) (domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return *job, nil
}

// Count returns the number of job records held.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// run is the detached task bound to one job. Failures of any kind, panics
// included, are funneled into the job's failed state; nothing is ever
// re-thrown at an HTTP caller.
func (m *Manager) run(jobID, sourceImageID, effectID string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("job_id", jobID).Interface("panic", r).Msg("jobs: executor panicked")
			m.fail(jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Detached from the submitting request's context on purpose: the job
	// outlives the request/response cycle that created it.
	ctx := context.Background()

	m.markProcessing(jobID)
	resultID, err := m.executor.Execute(ctx, sourceImageID, effectID, func(p int) {
		m.setProgress(jobID, p)
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("job_id", jobID).Msg("jobs: transformation failed")
		m.fail(jobID, err.Error())
		return
	}
	m.complete(jobID, resultID)
}

func (m *Manager) markProcessing(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != domain.JobStatusPending {
		return
	}
	job.Status = domain.JobStatusProcessing
}

// setProgress enforces monotonicity and freezes progress on terminal jobs.
func (m *Manager) setProgress(jobID string, progress int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	if progress > job.Progress && progress <= 100 {
		job.Progress = progress
	}
}

func (m *Manager) complete(jobID, resultImageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.ResultImageID = resultImageID
	job.CompletedAt = &now
	m.logger.Info().Str("job_id", jobID).Str("result_image_id", resultImageID).Msg("jobs: completed")
}

func (m *Manager) fail(jobID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = message
	job.CompletedAt = &now
}
