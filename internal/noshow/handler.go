package noshow

import (
	"context"
	"errors"
	"net/http"
	"time"

	"classbook/internal/auth"
	"classbook/internal/logger"

	"github.com/gin-gonic/gin"
)

const defaultAnalyticsWindow = 30 * 24 * time.Hour

type SettingsStore interface {
	Get(ctx context.Context, orgID int64) (Policy, error)
	Put(ctx context.Context, orgID int64, p Policy) (Policy, error)
	GraceWindow(ctx context.Context, orgID int64) (time.Duration, error)
}

type Reporter interface {
	Report(ctx context.Context, orgID int64, from, to time.Time, grace time.Duration, now time.Time) (*Report, error)
}

type Handler struct {
	runner    Runner
	settings  SettingsStore
	analytics Reporter
	now       func() time.Time
}

func NewHandler(runner Runner, settings SettingsStore, analytics Reporter) *Handler {
	return &Handler{runner: runner, settings: settings, analytics: analytics, now: time.Now}
}

// ProcessNoShows godoc
// @Summary      Process no-shows
// @Description  Applies the organization's no-show penalty to every eligible booking. Safe to re-run.
// @Tags         organizer
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Summary
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /organizer/no-shows/process [post]
func (h *Handler) ProcessNoShows(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	summary, err := h.runner.Run(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		logger.Error("no-show processing failed", "organization_id", actor.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process no-shows"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetAnalytics godoc
// @Summary      No-show analytics
// @Description  Attendance and no-show figures derived from raw counts. Defaults to the last 30 days.
// @Tags         organizer
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "RFC3339 start"
// @Param        to    query     string  false  "RFC3339 end"
// @Success      200   {object}  Report
// @Failure      400   {object}  api.ErrorResponse
// @Failure      500   {object}  api.ErrorResponse
// @Router       /organizer/no-shows/analytics [get]
func (h *Handler) GetAnalytics(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	now := h.now()
	to := now
	from := now.Add(-defaultAnalyticsWindow)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from; use RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to; use RFC3339"})
			return
		}
		to = t
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}

	grace, err := h.settings.GraceWindow(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		logger.Error("failed to load grace window", "organization_id", actor.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}

	report, err := h.analytics.Report(c.Request.Context(), actor.OrganizationID, from, to, grace, now)
	if err != nil {
		logger.Error("failed to build no-show report", "organization_id", actor.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load analytics"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetSettings godoc
// @Summary      Get no-show policy
// @Tags         organizer
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Policy
// @Router       /organizer/settings/no-show [get]
func (h *Handler) GetSettings(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	policy, err := h.settings.Get(c.Request.Context(), actor.OrganizationID)
	if err != nil {
		logger.Error("failed to load no-show policy", "organization_id", actor.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, policy)
}

// UpdateSettings godoc
// @Summary      Update no-show policy
// @Description  Penalty is one of {"kind":"credit_loss","credits":1}, {"kind":"fee","amount_cents":1000,"currency":"USD"} or {"kind":"suspension","days":7}.
// @Tags         organizer
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        policy  body      Policy  true  "No-show policy"
// @Success      200     {object}  Policy
// @Failure      400     {object}  api.ErrorResponse
// @Router       /organizer/settings/no-show [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var policy Policy
	if err := c.ShouldBindJSON(&policy); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	saved, err := h.settings.Put(c.Request.Context(), actor.OrganizationID, policy)
	if err != nil {
		if errors.Is(err, ErrInvalidPolicy) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Error("failed to save no-show policy", "organization_id", actor.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, saved)
}
