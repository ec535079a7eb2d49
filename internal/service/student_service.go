package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/models"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	FirstName  string        `json:"first_name" validate:"required,max=64"`
	MiddleName string        `json:"middle_name" validate:"max=64"`
	LastName   string        `json:"last_name" validate:"max=64"`
	Gender     models.Gender `json:"gender" validate:"required,oneof=male female"`
	Batch      string        `json:"batch" validate:"required"`
	University string        `json:"university"`
	College    string        `json:"college"`
	Department string        `json:"department"`
	Phone      string        `json:"phone" validate:"omitempty,max=32"`
	Email      string        `json:"email" validate:"omitempty,email"`
	Photo      string        `json:"photo" validate:"omitempty,url"`
}

// UpdateStudentRequest holds payload for updating students.
type UpdateStudentRequest struct {
	CreateStudentRequest
	Active bool `json:"active"`
}

// StudentService handles student use-cases and owns the candidate pool cache.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	guard     assignment.JobCountGuard
	poolTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// StudentServiceConfig tunes the student service.
type StudentServiceConfig struct {
	MaxJobsPerStudent int
	PoolTTL           time.Duration
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, cfg StudentServiceConfig, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		cache:     cache,
		guard:     assignment.NewJobCountGuard(cfg.MaxJobsPerStudent),
		poolTTL:   cfg.PoolTTL,
		validator: validate,
		logger:    logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, pagination(filter.Page, filter.PageSize, total), nil
}

// Eligible lists active students that can still take a new job. The cap is
// pushed into the query and re-applied through the guard.
func (s *StudentService) Eligible(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	active := true
	max := s.guard.Max
	filter.Active = &active
	filter.MaxJobs = &max
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list eligible students")
	}
	return s.guard.Eligible(students), pagination(filter.Page, filter.PageSize, total), nil
}

// Pool returns every active student, served from cache when possible.
func (s *StudentService) Pool(ctx context.Context) ([]models.Student, error) {
	var cached []models.Student
	if hit, _ := s.cache.Get(ctx, studentPoolKey, &cached); hit {
		return cached, nil
	}
	students, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student pool")
	}
	_ = s.cache.Set(ctx, studentPoolKey, students, s.poolTTL)
	return students, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Lookup loads the listed students keyed by id. Unknown ids are absent
// from the result.
func (s *StudentService) Lookup(ctx context.Context, ids []string) (map[string]*models.Student, error) {
	students, err := s.repo.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
	}
	byID := make(map[string]*models.Student, len(students))
	for i := range students {
		byID[students[i].ID] = &students[i]
	}
	return byID, nil
}

// Resolve is Lookup that fails with a validation error on the first unknown id.
func (s *StudentService) Resolve(ctx context.Context, ids []string) (map[string]*models.Student, error) {
	byID, err := s.Lookup(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student "+id)
		}
	}
	return byID, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{Active: true}
	applyStudentRequest(student, req)
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.cache.InvalidateStudents(ctx)
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyStudentRequest(student, req.CreateStudentRequest)
	student.Active = req.Active
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.cache.InvalidateStudents(ctx)
	return student, nil
}

// Deactivate disables a student. Existing family and job references stay intact.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.cache.InvalidateStudents(ctx)
	return nil
}

func applyStudentRequest(student *models.Student, req CreateStudentRequest) {
	student.FirstName = req.FirstName
	student.MiddleName = req.MiddleName
	student.LastName = req.LastName
	student.Gender = req.Gender
	student.Batch = req.Batch
	student.University = req.University
	student.College = req.College
	student.Department = req.Department
	student.Phone = req.Phone
	student.Email = req.Email
	student.Photo = req.Photo
}

func pagination(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
