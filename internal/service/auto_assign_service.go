package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/models"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
	"github.com/noah-isme/family-console-api/pkg/jobs"
)

// Auto-assign run states.
const (
	AutoAssignQueued   = "queued"
	AutoAssignRunning  = "running"
	AutoAssignFinished = "finished"
	AutoAssignFailed   = "failed"

	autoAssignJobType = "auto_assign"
	runRetention      = 24 * time.Hour
)

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type familySelections interface {
	CurrentSelections(ctx context.Context) (map[string]struct{}, []models.Family, error)
	InvalidateCache(ctx context.Context)
}

type studentPool interface {
	Pool(ctx context.Context) ([]models.Student, error)
}

// AutoAssignConfig tunes auto-assign runs.
type AutoAssignConfig struct {
	Enabled    bool
	MaxRetries int
}

// AutoAssignService queues child auto-assign runs and tracks their status.
// Runs live in memory only.
type AutoAssignService struct {
	queue     jobDispatcher
	families  familySelections
	students  studentPool
	matcher   ChildMatcher
	metrics   *MetricsService
	cfg       AutoAssignConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	mu   sync.RWMutex
	runs map[string]*dto.AutoAssignRun
}

// NewAutoAssignService constructs the service. The queue may be attached
// later with SetQueue since the queue's handler is the service itself.
func NewAutoAssignService(families familySelections, students studentPool, matcher ChildMatcher, metrics *MetricsService, cfg AutoAssignConfig, validate *validator.Validate, logger *zap.Logger) *AutoAssignService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoAssignService{
		families:  families,
		students:  students,
		matcher:   matcher,
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		runs:      make(map[string]*dto.AutoAssignRun),
	}
}

// SetQueue attaches the dispatcher used by Start.
func (s *AutoAssignService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Start records a queued run for req.Batch and dispatches it.
func (s *AutoAssignService) Start(ctx context.Context, req dto.AutoAssignRequest) (*dto.AutoAssignRun, error) {
	if !s.cfg.Enabled || s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "auto assign is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid auto assign payload")
	}
	run := &dto.AutoAssignRun{
		ID:          uuid.NewString(),
		Batch:       req.Batch,
		Status:      AutoAssignQueued,
		RequestedAt: s.now(),
	}
	s.mu.Lock()
	s.pruneLocked()
	s.runs[run.ID] = run
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: run.ID, Type: autoAssignJobType, Payload: req.Batch}); err != nil {
		s.finish(run.ID, AutoAssignFailed, func(r *dto.AutoAssignRun) { r.Error = "failed to enqueue run" })
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue auto assign run")
	}
	return s.snapshot(run.ID), nil
}

// Run returns a copy of the run with the given id.
func (s *AutoAssignService) Run(ctx context.Context, id string) (*dto.AutoAssignRun, error) {
	run := s.snapshot(id)
	if run == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "auto assign run not found")
	}
	return run, nil
}

// Handle executes a queued run. With MaxRetries at zero, the default, the
// first failure marks the run failed; otherwise the queue retries it and the
// run fails once the final attempt fails.
func (s *AutoAssignService) Handle(ctx context.Context, job jobs.Job) error {
	batch, _ := job.Payload.(string)
	s.update(job.ID, func(r *dto.AutoAssignRun) { r.Status = AutoAssignRunning })

	selected, families, err := s.families.CurrentSelections(ctx)
	if err != nil {
		return s.fail(job, err)
	}
	pool, err := s.students.Pool(ctx)
	if err != nil {
		return s.fail(job, err)
	}

	available := 0
	for _, student := range pool {
		if student.Batch != batch {
			continue
		}
		if _, taken := selected[student.ID]; !taken {
			available++
		}
	}
	familyIDs := make([]string, 0, len(families))
	for _, family := range families {
		if family.Batch == batch || family.AllowOtherBatches {
			familyIDs = append(familyIDs, family.ID)
		}
	}
	s.update(job.ID, func(r *dto.AutoAssignRun) { r.AvailableStudents = available })

	result, err := s.matcher.Match(ctx, MatchRequest{RunID: job.ID, Batch: batch, FamilyIDs: familyIDs, AvailableStudents: available})
	if err != nil {
		return s.fail(job, err)
	}

	s.families.InvalidateCache(ctx)
	s.finish(job.ID, AutoAssignFinished, func(r *dto.AutoAssignRun) {
		r.FamilyCount = result.AssignedFamilies
		r.Error = ""
	})
	s.logger.Info("auto assign finished", zap.String("run_id", job.ID), zap.String("batch", batch), zap.Int("families", result.AssignedFamilies), zap.Int("available", available))
	return nil
}

func (s *AutoAssignService) fail(job jobs.Job, err error) error {
	if job.Attempt >= s.cfg.MaxRetries {
		s.finish(job.ID, AutoAssignFailed, func(r *dto.AutoAssignRun) { r.Error = err.Error() })
		s.logger.Warn("auto assign failed", zap.String("run_id", job.ID), zap.Error(err))
	} else {
		s.update(job.ID, func(r *dto.AutoAssignRun) {
			r.Status = AutoAssignQueued
			r.Error = err.Error()
		})
	}
	return err
}

func (s *AutoAssignService) finish(id, status string, mutate func(*dto.AutoAssignRun)) {
	now := s.now()
	s.update(id, func(r *dto.AutoAssignRun) {
		mutate(r)
		r.Status = status
		r.FinishedAt = &now
	})
	s.metrics.RecordAutoAssignRun(status)
}

func (s *AutoAssignService) update(id string, mutate func(*dto.AutoAssignRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[id]; ok {
		mutate(run)
	}
}

func (s *AutoAssignService) snapshot(id string) *dto.AutoAssignRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil
	}
	cp := *run
	return &cp
}

func (s *AutoAssignService) pruneLocked() {
	cutoff := s.now().Add(-runRetention)
	for id, run := range s.runs {
		if run.FinishedAt != nil && run.FinishedAt.Before(cutoff) {
			delete(s.runs, id)
		}
	}
}
