package member

import (
	"context"
	"net/http"

	"classbook/internal/api"
	"classbook/internal/auth"
	"classbook/internal/logger"

	"github.com/gin-gonic/gin"
)

type PassStore interface {
	CreatePass(ctx context.Context, orgID int64, req CreatePassRequest) (*Pass, error)
	ListPassesByEmail(ctx context.Context, email string) ([]Pass, error)
}

type Handler struct {
	passes PassStore
}

func NewHandler(passes PassStore) *Handler {
	return &Handler{passes: passes}
}

// @Summary      Issue a pass
// @Description  Organizer-only: grants a class pack whose credits no-show penalties draw from
// @Tags         organizer,passes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body member.CreatePassRequest true "Pass payload"
// @Success      201 {object} member.Pass
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /organizer/passes [post]
func (h *Handler) CreatePass(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req CreatePassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	pass, err := h.passes.CreatePass(c.Request.Context(), actor.OrganizationID, req)
	if err != nil {
		logger.Error("create pass failed", "organization_id", actor.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create pass"})
		return
	}

	c.JSON(http.StatusCreated, pass)
}

// @Summary      List my passes
// @Tags         passes
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} member.Pass
// @Failure      401 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /passes [get]
func (h *Handler) ListMyPasses(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	passes, err := h.passes.ListPassesByEmail(c.Request.Context(), actor.Email)
	if err != nil {
		logger.Error("list passes failed", "user_id", actor.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list passes"})
		return
	}

	c.JSON(http.StatusOK, passes)
}
