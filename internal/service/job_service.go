package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/repository"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
)

type jobRepository interface {
	List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Job, error)
	ListBySubClass(ctx context.Context, subClass string) ([]models.Job, error)
	Create(ctx context.Context, job *models.Job, check func(models.Student) error) error
	Update(ctx context.Context, job *models.Job, check func([]models.Job) error) error
	Delete(ctx context.Context, id string) error
}

// JobService applies the job count guard and the type exclusivity rule to
// every job write.
type JobService struct {
	repo      jobRepository
	cache     *CacheService
	metrics   *MetricsService
	guard     assignment.JobCountGuard
	validator *validator.Validate
	logger    *zap.Logger
}

// NewJobService constructs the job service. maxPerStudent falls back to the
// default cap when not positive.
func NewJobService(repo jobRepository, cache *CacheService, metrics *MetricsService, maxPerStudent int, validate *validator.Validate, logger *zap.Logger) *JobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		guard:     assignment.NewJobCountGuard(maxPerStudent),
		validator: validate,
		logger:    logger,
	}
}

// List returns jobs with pagination metadata.
func (s *JobService) List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, *models.Pagination, error) {
	start := time.Now()
	jobs, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("jobs_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	return jobs, pagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}
	return job, nil
}

// TypeOptions lists every job type for subClass with its availability.
// excludeJobID lets the job being edited keep its own type.
func (s *JobService) TypeOptions(ctx context.Context, subClass, excludeJobID string) (*dto.JobTypeOptionsResponse, error) {
	assigned := assignment.JobTypeSet{}
	if subClass != "" {
		jobs, err := s.repo.ListBySubClass(ctx, subClass)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sub class jobs")
		}
		assigned = assignment.AssignedExclusiveTypes(jobs, subClass, excludeJobID)
	}
	return &dto.JobTypeOptionsResponse{SubClass: subClass, Options: assignment.TypeOptions(assigned)}, nil
}

// Create opens a new job for a student if the student is below the cap.
func (s *JobService) Create(ctx context.Context, req dto.CreateJobRequest) (*models.Job, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	job := &models.Job{StudentID: req.StudentID, Class: req.Class, Type: string(assignment.JobTypeMember)}
	err := s.repo.Create(ctx, job, func(student models.Student) error {
		if !student.Active {
			return appErrors.Clone(appErrors.ErrValidation, "student is inactive")
		}
		if !s.guard.CanAssignNewJob(student) {
			s.metrics.RecordJobRejection("limit")
			return appErrors.Clone(appErrors.ErrJobLimitReached, "student already holds the maximum number of jobs")
		}
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err, "failed to create job")
	}
	s.cache.InvalidateStudents(ctx)
	return job, nil
}

// Update sets class, sub-class, type and background of a job. Exclusive types
// are checked against the locked sub-class rows.
func (s *JobService) Update(ctx context.Context, id string, req dto.UpdateJobRequest) (*models.Job, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	jobType := assignment.JobTypeMember
	if req.Type != "" {
		parsed, ok := assignment.ParseJobType(req.Type)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown job type "+req.Type)
		}
		jobType = parsed
	}

	if req.Class != nil {
		job.Class = *req.Class
	}
	job.SubClass = req.SubClass
	job.Type = string(jobType)
	job.Background = req.Background

	err = s.repo.Update(ctx, job, func(siblings []models.Job) error {
		assigned := assignment.AssignedExclusiveTypes(siblings, job.SubClass, job.ID)
		if !assignment.IsTypeAvailable(jobType, assigned) {
			s.metrics.RecordJobRejection("type")
			return appErrors.Clone(appErrors.ErrJobTypeUnavailable, string(jobType)+" is already assigned in "+job.SubClass)
		}
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err, "failed to update job")
	}
	return job, nil
}

// Delete removes a job and releases the student's slot.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapWriteError(err, "failed to delete job")
	}
	s.cache.InvalidateStudents(ctx)
	return nil
}

func (s *JobService) mapWriteError(err error, message string) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "job or student not found")
	case errors.Is(err, repository.ErrJobLimit):
		s.metrics.RecordJobRejection("limit")
		return appErrors.Clone(appErrors.ErrJobLimitReached, "student already holds the maximum number of jobs")
	case errors.Is(err, repository.ErrUniqueViolation):
		s.metrics.RecordJobRejection("type")
		return appErrors.Clone(appErrors.ErrJobTypeUnavailable, "job type already assigned in this sub class")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}
