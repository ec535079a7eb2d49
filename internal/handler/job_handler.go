package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/middleware"
	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/pkg/response"
)

type jobService interface {
	List(ctx context.Context, filter models.JobFilter) ([]models.JobDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	TypeOptions(ctx context.Context, subClass, excludeJobID string) (*dto.JobTypeOptionsResponse, error)
	Create(ctx context.Context, req dto.CreateJobRequest) (*models.Job, error)
	Update(ctx context.Context, id string, req dto.UpdateJobRequest) (*models.Job, error)
	Delete(ctx context.Context, id string) error
}

// JobHandler exposes job assignment endpoints.
type JobHandler struct {
	jobs jobService
}

// NewJobHandler constructs JobHandler.
func NewJobHandler(jobs jobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// List godoc
// @Summary List jobs
// @Tags Jobs
// @Produce json
// @Param class query string false "Filter by class"
// @Param subClass query string false "Filter by sub-class"
// @Param type query string false "Filter by job type"
// @Param studentId query string false "Filter by student"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /jobs [get]
func (h *JobHandler) List(c *gin.Context) {
	filter := models.JobFilter{
		Class:     strings.TrimSpace(c.Query("class")),
		SubClass:  strings.TrimSpace(c.Query("subClass")),
		Type:      strings.TrimSpace(c.Query("type")),
		StudentID: c.Query("studentId"),
	}
	filter.Page, filter.PageSize = pageQuery(c)

	jobs, pagination, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

// TypeOptions godoc
// @Summary List job types with availability
// @Description Exclusive types already held inside the sub-class are reported as unavailable
// @Tags Jobs
// @Produce json
// @Param subClass query string false "Sub-class"
// @Param excludeJobId query string false "Job being edited, keeps its own type available"
// @Success 200 {object} response.Envelope
// @Router /jobs/types [get]
func (h *JobHandler) TypeOptions(c *gin.Context) {
	options, err := h.jobs.TypeOptions(c.Request.Context(), strings.TrimSpace(c.Query("subClass")), c.Query("excludeJobId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, options, nil)
}

// Get godoc
// @Summary Get job detail
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id} [get]
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Create godoc
// @Summary Assign a job to a student
// @Description Rejected with JOB_LIMIT_REACHED once the student holds the maximum number of jobs
// @Tags Jobs
// @Accept json
// @Produce json
// @Param payload body dto.CreateJobRequest true "Job payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /jobs [post]
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	job, err := h.jobs.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, job.ID)
	response.Created(c, job)
}

// Update godoc
// @Summary Update a job
// @Description Rejected with JOB_TYPE_UNAVAILABLE when the type is already held inside the sub-class
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body dto.UpdateJobRequest true "Job payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /jobs/{id} [put]
func (h *JobHandler) Update(c *gin.Context) {
	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	job, err := h.jobs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// Delete godoc
// @Summary Remove a job
// @Tags Jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id} [delete]
func (h *JobHandler) Delete(c *gin.Context) {
	if err := h.jobs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
