package calendar

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"classbook/internal/api"
	"classbook/internal/auth"
	"classbook/internal/logger"

	"github.com/gin-gonic/gin"
)

type ConflictChecker interface {
	Check(ctx context.Context, orgID int64, w Window) (*ConflictReport, error)
}

type IntegrationStore interface {
	CreateIntegration(ctx context.Context, orgID int64, provider Provider) (*Integration, error)
	GetIntegration(ctx context.Context, orgID, id int64) (*Integration, error)
	ListIntegrations(ctx context.Context, orgID int64) ([]Integration, error)
	SetActive(ctx context.Context, orgID, id int64, active bool) error
	UpsertBusyPeriods(ctx context.Context, integration *Integration, periods []BusyPeriodInput) (*SyncResult, error)
}

type Handler struct {
	store    IntegrationStore
	detector ConflictChecker
}

func NewHandler(store IntegrationStore, detector ConflictChecker) *Handler {
	return &Handler{store: store, detector: detector}
}

// CheckConflicts godoc
// @Summary      Check calendar conflicts
// @Description  Lists busy periods from active calendar integrations that overlap the proposed window. Advisory only.
// @Tags         calendar
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      Window  true  "Proposed window"
// @Success      200      {object}  ConflictReport
// @Failure      400      {object}  api.ErrorResponse
// @Failure      500      {object}  api.ErrorResponse
// @Router       /organizer/conflicts [post]
func (h *Handler) CheckConflicts(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var w Window
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	report, err := h.detector.Check(c.Request.Context(), actor.OrganizationID, w)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// CreateIntegration godoc
// @Summary      Connect calendar
// @Tags         calendar
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateIntegrationRequest  true  "Provider"
// @Success      201      {object}  Integration
// @Failure      400      {object}  api.ErrorResponse
// @Router       /organizer/calendar/integrations [post]
func (h *Handler) CreateIntegration(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	integration, err := h.store.CreateIntegration(c.Request.Context(), actor.OrganizationID, req.Provider)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, integration)
}

// ListIntegrations godoc
// @Summary      List calendar integrations
// @Tags         calendar
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Integration
// @Router       /organizer/calendar/integrations [get]
func (h *Handler) ListIntegrations(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	integrations, err := h.store.ListIntegrations(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, integrations)
}

// DisableIntegration godoc
// @Summary      Disconnect calendar
// @Description  Busy periods of an inactive integration are ignored by conflict checks.
// @Tags         calendar
// @Security     BearerAuth
// @Param        id  path  int  true  "Integration ID"
// @Success      204
// @Failure      404  {object}  api.ErrorResponse
// @Router       /organizer/calendar/integrations/{id} [delete]
func (h *Handler) DisableIntegration(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid integration ID"})
		return
	}

	if err := h.store.SetActive(c.Request.Context(), actor.OrganizationID, id, false); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SyncBusyPeriods godoc
// @Summary      Ingest busy periods
// @Description  Upserts events pushed by the external calendar sync, keyed by external event ID.
// @Tags         calendar
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int                true  "Integration ID"
// @Param        request  body      []BusyPeriodInput  true  "Events"
// @Success      200      {object}  SyncResult
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /organizer/calendar/integrations/{id}/busy-periods [post]
func (h *Handler) SyncBusyPeriods(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid integration ID"})
		return
	}

	var periods []BusyPeriodInput
	if err := c.ShouldBindJSON(&periods); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	integration, err := h.store.GetIntegration(c.Request.Context(), actor.OrganizationID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.store.UpsertBusyPeriods(c.Request.Context(), integration, periods)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidWindow):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrIntegrationNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrIntegrationInactive):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error("calendar request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
	}
}
