package classsession

import (
	"errors"
	"net/http"
	"strconv"

	"classbook/internal/api"
	"classbook/internal/auth"
	"classbook/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

// @Summary      Create a class session
// @Description  Organizer-only: schedules a class. Rejected when the window overlaps a busy period from an active calendar integration.
// @Tags         organizer,sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body classsession.CreateSessionRequest true "Class session payload"
// @Success      201 {object} domain.ClassSession
// @Failure      400 {object} api.ErrorResponse
// @Failure      401 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /organizer/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	session, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// @Summary      List class sessions
// @Description  Sessions of the caller's organization with confirmed and waitlisted counts
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        future query bool false "Only sessions that have not started"
// @Success      200 {array} classsession.SessionWithAvailability
// @Failure      401 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /sessions [get]
func (h *Handler) ListSessions(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	onlyFuture := c.Query("future") == "true"

	sessions, err := h.service.ListByOrganization(c.Request.Context(), actor.OrganizationID, onlyFuture)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// @Summary      Get class session
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        sessionID path int true "Class session ID"
// @Success      200 {object} domain.ClassSession
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Router       /sessions/{sessionID} [get]
func (h *Handler) GetSession(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("sessionID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	session, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// @Summary      Move a class session
// @Description  Allowed only while the session has no confirmed or waitlisted bookings
// @Tags         organizer,sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Class session ID"
// @Param        request body classsession.UpdateWindowRequest true "New window"
// @Success      200 {object} domain.ClassSession
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /organizer/sessions/{id}/window [patch]
func (h *Handler) UpdateWindow(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	var req UpdateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	session, err := h.service.UpdateWindow(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// @Summary      Change class capacity
// @Description  Capacity may not drop below confirmed bookings. Extra seats are filled from the waitlist.
// @Tags         organizer,sessions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Class session ID"
// @Param        request body classsession.UpdateCapacityRequest true "New capacity"
// @Success      200 {object} classsession.CapacityChange
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Failure      409 {object} api.ErrorResponse
// @Router       /organizer/sessions/{id}/capacity [patch]
func (h *Handler) UpdateCapacity(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	var req UpdateCapacityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	change, err := h.service.UpdateCapacity(c.Request.Context(), actor, id, req.Capacity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, change)
}

func respondError(c *gin.Context, err error) {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":          ErrScheduleConflict.Error(),
			"conflict_count": len(conflict.Conflicts),
			"conflicts":      conflict.Conflicts,
		})
	case errors.Is(err, ErrInvalidSession):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrWindowLocked), errors.Is(err, ErrCapacityTooLow):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		logger.Error("class session request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
	}
}
