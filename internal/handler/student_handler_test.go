package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/service"
	appErrors "github.com/noah-isme/family-console-api/pkg/errors"
	"github.com/noah-isme/family-console-api/pkg/response"
)

type studentServiceMock struct {
	lastFilter     models.StudentFilter
	eligibleCalled bool
	created        *service.CreateStudentRequest
	getErr         error
	deactivated    string
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Student{{ID: "s1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *studentServiceMock) Eligible(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.eligibleCalled = true
	m.lastFilter = filter
	return []models.Student{}, nil, nil
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &models.Student{ID: id}, nil
}

func (m *studentServiceMock) Create(ctx context.Context, req service.CreateStudentRequest) (*models.Student, error) {
	m.created = &req
	return &models.Student{ID: "new", FirstName: req.FirstName}, nil
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req service.UpdateStudentRequest) (*models.Student, error) {
	return &models.Student{ID: id, Active: req.Active}, nil
}

func (m *studentServiceMock) Deactivate(ctx context.Context, id string) error {
	m.deactivated = id
	return nil
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestStudentHandlerListParsesFilters(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, w := newTestContext(http.MethodGet, "/students?search=%20ann%20&batch=2023&gender=FEMALE&active=false&page=2&limit=5&sort=batch&order=desc", "")
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ann", svc.lastFilter.Search)
	assert.Equal(t, "2023", svc.lastFilter.Batch)
	assert.Equal(t, models.GenderFemale, svc.lastFilter.Gender)
	require.NotNil(t, svc.lastFilter.Active)
	assert.False(t, *svc.lastFilter.Active)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 5, svc.lastFilter.PageSize)
	assert.Equal(t, "batch", svc.lastFilter.SortBy)

	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestStudentHandlerListDefaults(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, _ := newTestContext(http.MethodGet, "/students?gender=other&active=maybe&page=-1&limit=x", "")
	h.List(c)

	assert.Empty(t, svc.lastFilter.Gender)
	assert.Nil(t, svc.lastFilter.Active)
	assert.Equal(t, 1, svc.lastFilter.Page)
	assert.Equal(t, defaultPageSize, svc.lastFilter.PageSize)
}

func TestStudentHandlerEligible(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, w := newTestContext(http.MethodGet, "/students/eligible?batch=2024", "")
	h.Eligible(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.eligibleCalled)
	assert.Equal(t, "2024", svc.lastFilter.Batch)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "student not found")})

	c, w := newTestContext(http.MethodGet, "/students/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, w).Error.Code)
}

func TestStudentHandlerCreate(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/students", `{"first_name":"Ann","gender":"female","batch":"2023"}`)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.created)
	assert.Equal(t, "Ann", svc.created.FirstName)
	resource, ok := c.Get("audit_resource_id")
	assert.True(t, ok)
	assert.Equal(t, "new", resource)
}

func TestStudentHandlerCreateInvalidBody(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/students", `{"first_name":`)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.created)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeEnvelope(t, w).Error.Code)
}

func TestStudentHandlerDelete(t *testing.T) {
	svc := &studentServiceMock{}
	h := NewStudentHandler(svc)

	r := gin.New()
	r.DELETE("/students/:id", h.Delete)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/students/s9", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "s9", svc.deactivated)
}
