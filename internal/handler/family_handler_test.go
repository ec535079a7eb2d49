package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/family-console-api/internal/assignment"
	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/middleware"
	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/service"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
)

type familyServiceMock struct {
	lastFilter    models.FamilyFilter
	cached        bool
	lastDraft     dto.FamilyDraftRequest
	lastActor     string
	lastID        string
	updateErr     error
	lastCandidate dto.CandidateRequest
	lastAssign    dto.AssignSlotRequest
	validation    *dto.ValidationResponse
}

func (m *familyServiceMock) List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, *models.Pagination, bool, error) {
	m.lastFilter = filter
	return []models.Family{{ID: "fam-1"}}, &models.Pagination{Page: 1, PageSize: filter.PageSize, TotalCount: 1}, m.cached, nil
}

func (m *familyServiceMock) View(ctx context.Context, id string) (*dto.FamilyView, error) {
	return &dto.FamilyView{ID: id}, nil
}

func (m *familyServiceMock) Validate(ctx context.Context, req dto.FamilyDraftRequest) (*dto.ValidationResponse, error) {
	m.lastDraft = req
	return m.validation, nil
}

func (m *familyServiceMock) Create(ctx context.Context, req dto.FamilyDraftRequest, actorID string) (*models.Family, error) {
	m.lastDraft = req
	m.lastActor = actorID
	return &models.Family{ID: "fam-new", Version: 1}, nil
}

func (m *familyServiceMock) Update(ctx context.Context, id string, req dto.FamilyDraftRequest, actorID string) (*models.Family, error) {
	m.lastID = id
	m.lastDraft = req
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.Family{ID: id, Version: req.Version + 1}, nil
}

func (m *familyServiceMock) UpdateStatus(ctx context.Context, id string, req dto.FamilyStatusRequest, actorID string) (*models.Family, error) {
	return &models.Family{ID: id, Status: req.Status}, nil
}

func (m *familyServiceMock) Candidates(ctx context.Context, req dto.CandidateRequest) ([]models.Student, error) {
	m.lastCandidate = req
	return []models.Student{{ID: "s2", Gender: models.GenderMale}}, nil
}

func (m *familyServiceMock) AssignSlot(ctx context.Context, req dto.AssignSlotRequest) (*dto.FamilyDraftRequest, error) {
	m.lastAssign = req
	if req.StudentID == "taken" {
		return nil, appErrors.Violation(string(assignment.CodeDuplicateStudent), "student taken already occupies familyLeader")
	}
	draft := req.Draft
	draft.FamilyLeader = req.StudentID
	return &draft, nil
}

type rosterExporterMock struct {
	format string
}

func (m *rosterExporterMock) Roster(ctx context.Context, familyID, format string) (*service.RosterFile, error) {
	m.format = format
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &service.RosterFile{Filename: "family-" + familyID + "-roster.csv", ContentType: "text/csv", Data: []byte("Group,Slot\n")}, nil
}

func TestFamilyHandlerListReportsCacheHit(t *testing.T) {
	svc := &familyServiceMock{cached: true}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, w := newTestContext(http.MethodGet, "/families?batch=2023&status=finished&search=north", "")
	c.Set("response_meta", map[string]interface{}{})
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FamilyStatusFinished, svc.lastFilter.Status)
	assert.Equal(t, "north", svc.lastFilter.Search)
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestFamilyHandlerListIgnoresUnknownStatus(t *testing.T) {
	svc := &familyServiceMock{}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, _ := newTestContext(http.MethodGet, "/families?status=archived", "")
	h.List(c)

	assert.Empty(t, svc.lastFilter.Status)
}

func TestFamilyHandlerCreatePassesActor(t *testing.T) {
	svc := &familyServiceMock{}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, w := newTestContext(http.MethodPost, "/families", `{"title":"North","location":"Hall A","batch":"2023","family_leader":"l1"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", svc.lastActor)
	assert.Equal(t, "l1", svc.lastDraft.FamilyLeader)
}

func TestFamilyHandlerUpdateVersionConflict(t *testing.T) {
	svc := &familyServiceMock{updateErr: appErrors.Clone(appErrors.ErrVersionConflict, "")}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, w := newTestContext(http.MethodPut, "/families/fam-1", `{"title":"North","version":2}`)
	c.Params = gin.Params{{Key: "id", Value: "fam-1"}}
	h.Update(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "fam-1", svc.lastID)
	assert.Equal(t, 2, svc.lastDraft.Version)
	assert.Equal(t, "VERSION_CONFLICT", decodeEnvelope(t, w).Error.Code)
}

func TestFamilyHandlerValidateReturnsViolation(t *testing.T) {
	svc := &familyServiceMock{validation: &dto.ValidationResponse{
		Valid:     false,
		Violation: &assignment.Violation{Code: assignment.CodeMissingField, Path: "title", Message: "title is required"},
	}}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, w := newTestContext(http.MethodPost, "/families/validate", `{"location":"Hall A"}`)
	h.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"MISSING_FIELD"`)
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestFamilyHandlerCandidates(t *testing.T) {
	svc := &familyServiceMock{}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, w := newTestContext(http.MethodPost, "/families/candidates", `{"slot":{"role":"father","grand_parent":0,"unit":1},"draft":{"family_leader":"l1"}}`)
	h.Candidates(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, assignment.ParentSlot(assignment.RoleFather, 0, 1), svc.lastCandidate.Slot)
	assert.Equal(t, "l1", svc.lastCandidate.Draft.FamilyLeader)
}

func TestFamilyHandlerAssignSlot(t *testing.T) {
	svc := &familyServiceMock{}
	h := NewFamilyHandler(svc, &rosterExporterMock{})

	c, w := newTestContext(http.MethodPost, "/families/assign-slot", `{"slot":{"role":"familyLeader"},"student_id":"l9","draft":{}}`)
	h.AssignSlot(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, assignment.RoleFamilyLeader, svc.lastAssign.Slot.Role)
	assert.Contains(t, w.Body.String(), `"family_leader":"l9"`)

	c, w = newTestContext(http.MethodPost, "/families/assign-slot", `{"slot":{"role":"familyLeader"},"student_id":"taken","draft":{}}`)
	h.AssignSlot(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DUPLICATE_STUDENT", decodeEnvelope(t, w).Error.Code)
}

func TestFamilyHandlerRoster(t *testing.T) {
	exporter := &rosterExporterMock{}
	h := NewFamilyHandler(&familyServiceMock{}, exporter)

	r := gin.New()
	r.GET("/families/:id/roster", h.Roster)

	w := newRecorder(r, http.MethodGet, "/families/fam-1/roster")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="family-fam-1-roster.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Group,Slot\n", w.Body.String())

	w = newRecorder(r, http.MethodGet, "/families/fam-1/roster?format=xlsx")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "xlsx", exporter.format)
}
