package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/middleware"
	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/service"
	"github.com/noah-isme/family-console-api/pkg/response"
)

type familyService interface {
	List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, *models.Pagination, bool, error)
	View(ctx context.Context, id string) (*dto.FamilyView, error)
	Validate(ctx context.Context, req dto.FamilyDraftRequest) (*dto.ValidationResponse, error)
	Create(ctx context.Context, req dto.FamilyDraftRequest, actorID string) (*models.Family, error)
	Update(ctx context.Context, id string, req dto.FamilyDraftRequest, actorID string) (*models.Family, error)
	UpdateStatus(ctx context.Context, id string, req dto.FamilyStatusRequest, actorID string) (*models.Family, error)
	Candidates(ctx context.Context, req dto.CandidateRequest) ([]models.Student, error)
	AssignSlot(ctx context.Context, req dto.AssignSlotRequest) (*dto.FamilyDraftRequest, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, familyID, format string) (*service.RosterFile, error)
}

// FamilyHandler exposes the family builder endpoints.
type FamilyHandler struct {
	families familyService
	rosters  rosterExporter
}

// NewFamilyHandler constructs FamilyHandler.
func NewFamilyHandler(families familyService, rosters rosterExporter) *FamilyHandler {
	return &FamilyHandler{families: families, rosters: rosters}
}

// List godoc
// @Summary List families
// @Tags Families
// @Produce json
// @Param search query string false "Search by title or location"
// @Param batch query string false "Filter by batch"
// @Param status query string false "current or finished"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /families [get]
func (h *FamilyHandler) List(c *gin.Context) {
	filter := models.FamilyFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Batch:  strings.TrimSpace(c.Query("batch")),
	}
	if status := models.FamilyStatus(c.Query("status")); status.Valid() {
		filter.Status = status
	}
	filter.Page, filter.PageSize = pageQuery(c)

	families, pagination, cached, err := h.families.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, families, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get family detail
// @Description Every student reference is hydrated; references to removed students are null
// @Tags Families
// @Produce json
// @Param id path string true "Family ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /families/{id} [get]
func (h *FamilyHandler) Get(c *gin.Context) {
	view, err := h.families.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Create godoc
// @Summary Create family
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body dto.FamilyDraftRequest true "Family draft"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /families [post]
func (h *FamilyHandler) Create(c *gin.Context) {
	var req dto.FamilyDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	family, err := h.families.Create(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, family.ID)
	response.Created(c, family)
}

// Update godoc
// @Summary Update family
// @Description The draft must carry the version it was loaded at; stale versions fail with VERSION_CONFLICT
// @Tags Families
// @Accept json
// @Produce json
// @Param id path string true "Family ID"
// @Param payload body dto.FamilyDraftRequest true "Family draft"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /families/{id} [put]
func (h *FamilyHandler) Update(c *gin.Context) {
	var req dto.FamilyDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	family, err := h.families.Update(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, family, nil)
}

// UpdateStatus godoc
// @Summary Change family status
// @Tags Families
// @Accept json
// @Produce json
// @Param id path string true "Family ID"
// @Param payload body dto.FamilyStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /families/{id}/status [patch]
func (h *FamilyHandler) UpdateStatus(c *gin.Context) {
	var req dto.FamilyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	family, err := h.families.UpdateStatus(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, family, nil)
}

// Validate godoc
// @Summary Validate a family draft without saving
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body dto.FamilyDraftRequest true "Family draft"
// @Success 200 {object} response.Envelope
// @Router /families/validate [post]
func (h *FamilyHandler) Validate(c *gin.Context) {
	var req dto.FamilyDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.families.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Candidates godoc
// @Summary List legal occupants for a slot
// @Description Filters the active pool by the slot's gender and batch rules, excluding students selected elsewhere in the draft. The slot's own occupant stays listed
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body dto.CandidateRequest true "Slot path and draft"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /families/candidates [post]
func (h *FamilyHandler) Candidates(c *gin.Context) {
	var req dto.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	students, err := h.families.Candidates(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// AssignSlot godoc
// @Summary Place a student into a draft slot
// @Description An empty student id clears the slot. The updated draft is returned
// @Tags Families
// @Accept json
// @Produce json
// @Param payload body dto.AssignSlotRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /families/assign-slot [post]
func (h *FamilyHandler) AssignSlot(c *gin.Context) {
	var req dto.AssignSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	draft, err := h.families.AssignSlot(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, draft, nil)
}

// Roster godoc
// @Summary Download a family roster
// @Tags Families
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Family ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /families/{id}/roster [get]
func (h *FamilyHandler) Roster(c *gin.Context) {
	file, err := h.rosters.Roster(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
