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

type familyRepository interface {
	List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, int, error)
	ListByStatus(ctx context.Context, status models.FamilyStatus) ([]models.Family, error)
	FindByID(ctx context.Context, id string) (*models.Family, error)
	Create(ctx context.Context, family *models.Family) error
	Update(ctx context.Context, family *models.Family) error
	UpdateStatus(ctx context.Context, id string, status models.FamilyStatus, updatedBy *string) error
}

type studentDirectory interface {
	Pool(ctx context.Context) ([]models.Student, error)
	Lookup(ctx context.Context, ids []string) (map[string]*models.Student, error)
	Resolve(ctx context.Context, ids []string) (map[string]*models.Student, error)
}

type familyListPage struct {
	Families []models.Family `json:"families"`
	Total    int             `json:"total"`
}

// FamilyService runs family drafts through the assignment core before any
// write and serves the builder helpers.
type FamilyService struct {
	repo      familyRepository
	students  studentDirectory
	cache     *CacheService
	metrics   *MetricsService
	listTTL   time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewFamilyService constructs the family service.
func NewFamilyService(repo familyRepository, students studentDirectory, cache *CacheService, metrics *MetricsService, listTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *FamilyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FamilyService{
		repo:      repo,
		students:  students,
		cache:     cache,
		metrics:   metrics,
		listTTL:   listTTL,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// List returns families matching filter, cached per filter. The boolean
// reports whether the page was served from cache.
func (s *FamilyService) List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, *models.Pagination, bool, error) {
	key := familyListKey(filter)
	var page familyListPage
	if hit, _ := s.cache.Get(ctx, key, &page); hit {
		return page.Families, pagination(filter.Page, filter.PageSize, page.Total), true, nil
	}
	start := time.Now()
	families, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("families_list", time.Since(start))
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list families")
	}
	_ = s.cache.Set(ctx, key, familyListPage{Families: families, Total: total}, s.listTTL)
	return families, pagination(filter.Page, filter.PageSize, total), false, nil
}

// Get returns the stored family write model.
func (s *FamilyService) Get(ctx context.Context, id string) (*models.Family, error) {
	family, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}
	return family, nil
}

// View returns the family with every student reference hydrated. References
// to students that no longer exist are rendered as null.
func (s *FamilyService) View(ctx context.Context, id string) (*dto.FamilyView, error) {
	family, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	students, err := s.students.Lookup(ctx, family.StudentIDs())
	if err != nil {
		return nil, err
	}
	view := familyView(family, students)
	return &view, nil
}

// Validate is a dry run of the family validator.
func (s *FamilyService) Validate(ctx context.Context, req dto.FamilyDraftRequest) (*dto.ValidationResponse, error) {
	draft, err := s.resolveDraft(ctx, req)
	if err != nil {
		return nil, err
	}
	result := assignment.Validate(draft)
	if !result.OK() {
		s.metrics.RecordViolation(string(result.Violation.Code))
		return &dto.ValidationResponse{Valid: false, Violation: result.Violation}, nil
	}
	stampTimes(result.Family, s.now())
	return &dto.ValidationResponse{Valid: true, Family: result.Family}, nil
}

// Create validates and persists a new family.
func (s *FamilyService) Create(ctx context.Context, req dto.FamilyDraftRequest, actorID string) (*models.Family, error) {
	family, err := s.validated(ctx, req)
	if err != nil {
		return nil, err
	}
	if actorID != "" {
		family.CreatedBy = &actorID
		family.UpdatedBy = &actorID
	}
	if err := s.repo.Create(ctx, family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create family")
	}
	s.cache.InvalidateFamilies(ctx)
	s.logger.Info("family created", zap.String("family_id", family.ID), zap.String("batch", family.Batch))
	return family, nil
}

// Update validates and replaces a family. req.Version must match the stored
// version. Status is kept as stored; it only moves through UpdateStatus.
func (s *FamilyService) Update(ctx context.Context, id string, req dto.FamilyDraftRequest, actorID string) (*models.Family, error) {
	if req.Version <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "version is required")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Version != req.Version {
		return nil, appErrors.Clone(appErrors.ErrVersionConflict, "")
	}
	family, err := s.validated(ctx, req)
	if err != nil {
		return nil, err
	}
	family.ID = id
	family.Version = req.Version
	family.Status = existing.Status
	family.CreatedBy = existing.CreatedBy
	family.CreatedAt = existing.CreatedAt
	if actorID != "" {
		family.UpdatedBy = &actorID
	}
	if err := s.repo.Update(ctx, family); err != nil {
		if errors.Is(err, repository.ErrStaleVersion) {
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family")
	}
	s.cache.InvalidateFamilies(ctx)
	return family, nil
}

// UpdateStatus moves a family between current and finished.
func (s *FamilyService) UpdateStatus(ctx context.Context, id string, req dto.FamilyStatusRequest, actorID string) (*models.Family, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status")
	}
	family, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, actor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family status")
	}
	family.Status = req.Status
	family.Version++
	family.UpdatedBy = actor
	s.cache.InvalidateFamilies(ctx)
	return family, nil
}

// Candidates returns the legal occupants of one slot of the draft. The slot's
// own occupant, taken from the draft, is the only selected student retained.
func (s *FamilyService) Candidates(ctx context.Context, req dto.CandidateRequest) ([]models.Student, error) {
	pool, err := s.students.Pool(ctx)
	if err != nil {
		return nil, err
	}
	lookup, err := s.students.Lookup(ctx, req.Draft.StudentIDs())
	if err != nil {
		return nil, err
	}
	draft := draftFromRequest(req.Draft, lookup)
	occupant, err := draft.Occupant(req.Slot)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return assignment.FilterCandidates(req.Slot.Role, pool, assignment.SelectedIDs(draft), studentID(occupant), draft.Context()), nil
}

// AssignSlot places a student into a draft slot, or clears it when
// StudentID is empty, and returns the updated draft.
func (s *FamilyService) AssignSlot(ctx context.Context, req dto.AssignSlotRequest) (*dto.FamilyDraftRequest, error) {
	ids := req.Draft.StudentIDs()
	if req.StudentID != "" {
		ids = append(ids, req.StudentID)
	}
	lookup, err := s.students.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	draft := draftFromRequest(req.Draft, lookup)
	var student *models.Student
	if req.StudentID != "" {
		student = lookup[req.StudentID]
	}
	next, err := assignment.Assign(draft, req.Slot, student)
	if err != nil {
		var violation *assignment.Violation
		if errors.As(err, &violation) {
			return nil, appErrors.Violation(string(violation.Code), violation.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	out := requestFromDraft(next, req.Draft.Version)
	return &out, nil
}

// CurrentSelections returns the union of student ids placed in any current
// family.
func (s *FamilyService) CurrentSelections(ctx context.Context) (map[string]struct{}, []models.Family, error) {
	families, err := s.repo.ListByStatus(ctx, models.FamilyStatusCurrent)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current families")
	}
	selected := make(map[string]struct{})
	for i := range families {
		for _, id := range families[i].StudentIDs() {
			selected[id] = struct{}{}
		}
	}
	return selected, families, nil
}

// InvalidateCache drops cached family lists so clients re-fetch.
func (s *FamilyService) InvalidateCache(ctx context.Context) {
	s.cache.InvalidateFamilies(ctx)
}

func (s *FamilyService) validated(ctx context.Context, req dto.FamilyDraftRequest) (*models.Family, error) {
	draft, err := s.resolveDraft(ctx, req)
	if err != nil {
		return nil, err
	}
	result := assignment.Validate(draft)
	if !result.OK() {
		s.metrics.RecordViolation(string(result.Violation.Code))
		return nil, appErrors.Violation(string(result.Violation.Code), result.Violation.Error())
	}
	stampTimes(result.Family, s.now())
	return result.Family, nil
}

func (s *FamilyService) resolveDraft(ctx context.Context, req dto.FamilyDraftRequest) (assignment.Draft, error) {
	if err := s.validator.Struct(req); err != nil {
		return assignment.Draft{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family payload")
	}
	students, err := s.students.Resolve(ctx, req.StudentIDs())
	if err != nil {
		return assignment.Draft{}, err
	}
	return draftFromRequest(req, students), nil
}
