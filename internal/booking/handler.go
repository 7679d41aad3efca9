package booking

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"classbook/internal/api"
	"classbook/internal/auth"
	"classbook/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RequestBooking godoc
// @Summary      Request a booking
// @Description  Books a seat in the class session, or joins its waitlist when the session is full. Members may omit the attendee to book for themselves.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        sessionID  path      int           true  "Class session ID"
// @Param        request    body      RequestInput  false "Attendee"
// @Success      201        {object}  RequestResult
// @Success      202        {object}  RequestResult
// @Failure      400        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Failure      500        {object}  api.ErrorResponse
// @Router       /sessions/{sessionID}/bookings [post]
func (h *Handler) RequestBooking(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, ok := parseID(c, "sessionID", "Invalid session ID")
	if !ok {
		return
	}

	var in RequestInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	if in.Attendee.Email == "" && in.Attendee.Name == "" {
		in.Attendee.Email = actor.Email
		in.Attendee.Name = actor.Email
	}

	// Bookings are linked to an account only when the caller books for themselves.
	in.Attendee.UserID = nil
	if strings.EqualFold(strings.TrimSpace(in.Attendee.Email), strings.TrimSpace(actor.Email)) {
		userID := actor.UserID
		in.Attendee.UserID = &userID
	}

	if errs := api.ValidateStruct(in.Attendee); len(errs) > 0 {
		api.RespondWithValidationErrors(c, errs)
		return
	}

	result, err := h.service.Request(c.Request.Context(), sessionID, in)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.WaitlistEntry != nil {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// CancelBooking godoc
// @Summary      Cancel booking
// @Description  Cancels a confirmed or waitlisted booking. A freed seat is offered to the front of the waitlist.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  CancelResponse
// @Failure      400        {object}  api.ErrorResponse
// @Failure      403        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Failure      500        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/cancel [post]
func (h *Handler) CancelBooking(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	bookingID, ok := parseID(c, "bookingID", "Invalid booking ID")
	if !ok {
		return
	}

	result, err := h.service.Cancel(c.Request.Context(), bookingID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := CancelResponse{Booking: result.Booking, Promoted: result.Promoted}
	if result.PromotionErr != nil {
		resp.PromotionError = "waitlist promotion failed; operators have been alerted"
	}
	c.JSON(http.StatusOK, resp)
}

// WithdrawWaitlist godoc
// @Summary      Leave waitlist
// @Tags         waitlist
// @Security     BearerAuth
// @Produce      json
// @Param        entryID  path      int  true  "Waitlist entry ID"
// @Success      200      {object}  domain.Booking
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /waitlist/{entryID}/withdraw [post]
func (h *Handler) WithdrawWaitlist(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	entryID, ok := parseID(c, "entryID", "Invalid waitlist entry ID")
	if !ok {
		return
	}

	booking, err := h.service.WithdrawWaitlist(c.Request.Context(), entryID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// CheckIn godoc
// @Summary      Check in attendee
// @Description  Records attendance for a confirmed booking. Allowed until the grace window after the class ends.
// @Tags         organizer
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      201        {object}  CheckInResponse
// @Failure      403        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /organizer/bookings/{bookingID}/check-in [post]
func (h *Handler) CheckIn(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	bookingID, ok := parseID(c, "bookingID", "Invalid booking ID")
	if !ok {
		return
	}

	checkIn, err := h.service.CheckIn(c.Request.Context(), bookingID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CheckInResponse{CheckIn: checkIn})
}

// PromoteWaitlist godoc
// @Summary      Promote waitlist
// @Description  Fills every free seat from the front of the waitlist.
// @Tags         organizer
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      int  true  "Class session ID"
// @Success      200 {array}   Promotion
// @Failure      404 {object}  api.ErrorResponse
// @Failure      500 {object}  api.ErrorResponse
// @Router       /organizer/sessions/{id}/promote [post]
func (h *Handler) PromoteWaitlist(c *gin.Context) {
	sessionID, ok := parseID(c, "id", "Invalid session ID")
	if !ok {
		return
	}

	promotions, err := h.service.PromoteWaitlist(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	if promotions == nil {
		promotions = []Promotion{}
	}

	c.JSON(http.StatusOK, promotions)
}

// ListMyBookings godoc
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   domain.Booking
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	bookings, err := h.service.ListForAttendee(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ListSessionBookings godoc
// @Summary      List bookings for a class session
// @Tags         organizer
// @Security     BearerAuth
// @Produce      json
// @Param        id  path      int  true  "Class session ID"
// @Success      200 {array}   SessionBooking
// @Failure      403 {object}  api.ErrorResponse
// @Failure      404 {object}  api.ErrorResponse
// @Router       /organizer/sessions/{id}/bookings [get]
func (h *Handler) ListSessionBookings(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, ok := parseID(c, "id", "Invalid session ID")
	if !ok {
		return
	}

	bookings, err := h.service.ListForSession(c.Request.Context(), sessionID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// GetWaitlist godoc
// @Summary      Show waitlist
// @Tags         waitlist
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Description  Organizers of the session's organization see attendee details; other callers see positions and their own entries.
// @Success      200        {array}   domain.WaitlistEntry
// @Failure      401        {object}  api.ErrorResponse
// @Failure      404        {object}  api.ErrorResponse
// @Router       /sessions/{sessionID}/waitlist [get]
func (h *Handler) GetWaitlist(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID, ok := parseID(c, "sessionID", "Invalid session ID")
	if !ok {
		return
	}

	entries, err := h.service.Waitlist(c.Request.Context(), sessionID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

// GetAvailability godoc
// @Summary      Seat availability
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Class session ID"
// @Success      200        {object}  capacity.Availability
// @Failure      404        {object}  api.ErrorResponse
// @Router       /sessions/{sessionID}/availability [get]
func (h *Handler) GetAvailability(c *gin.Context) {
	sessionID, ok := parseID(c, "sessionID", "Invalid session ID")
	if !ok {
		return
	}

	availability, err := h.service.Availability(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

func parseID(c *gin.Context, param, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return 0, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAttendee), errors.Is(err, ErrSessionStarted):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAttendeeSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrDuplicateBooking),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, ErrAlreadyCheckedIn),
		errors.Is(err, ErrNotConfirmed),
		errors.Is(err, ErrNotWaitlisted),
		errors.Is(err, ErrCheckInClosed),
		errors.Is(err, ErrCheckedIn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("booking request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
