package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/family-console-api/internal/dto"
	"github.com/noah-isme/family-console-api/internal/middleware"
	"github.com/noah-isme/family-console-api/pkg/response"
)

type autoAssigner interface {
	Start(ctx context.Context, req dto.AutoAssignRequest) (*dto.AutoAssignRun, error)
	Run(ctx context.Context, id string) (*dto.AutoAssignRun, error)
}

// AutoAssignHandler triggers and reports child auto-assign runs.
type AutoAssignHandler struct {
	service autoAssigner
}

// NewAutoAssignHandler constructs AutoAssignHandler.
func NewAutoAssignHandler(svc autoAssigner) *AutoAssignHandler {
	return &AutoAssignHandler{service: svc}
}

// Start godoc
// @Summary Queue an auto-assign run
// @Tags AutoAssign
// @Accept json
// @Produce json
// @Param payload body dto.AutoAssignRequest true "Batch to assign"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /auto-assign/runs [post]
func (h *AutoAssignHandler) Start(c *gin.Context) {
	var req dto.AutoAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	run, err := h.service.Start(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, run.ID)
	response.Accepted(c, run)
}

// Get godoc
// @Summary Get auto-assign run status
// @Tags AutoAssign
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /auto-assign/runs/{id} [get]
func (h *AutoAssignHandler) Get(c *gin.Context) {
	run, err := h.service.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}
