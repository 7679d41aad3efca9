package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"classbook/internal/auth"
	"classbook/internal/capacity"
	"classbook/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct{ mock.Mock }

func (m *MockService) Request(ctx context.Context, sessionID int64, in RequestInput) (*RequestResult, error) {
	args := m.Called(ctx, sessionID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RequestResult), args.Error(1)
}

func (m *MockService) Cancel(ctx context.Context, bookingID int64, actor auth.Actor) (*CancelResult, error) {
	args := m.Called(ctx, bookingID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CancelResult), args.Error(1)
}

func (m *MockService) CheckIn(ctx context.Context, bookingID int64, operator auth.Actor) (*domain.CheckIn, error) {
	args := m.Called(ctx, bookingID, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CheckIn), args.Error(1)
}

func (m *MockService) WithdrawWaitlist(ctx context.Context, entryID int64, actor auth.Actor) (*domain.Booking, error) {
	args := m.Called(ctx, entryID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockService) PromoteWaitlist(ctx context.Context, sessionID int64) ([]Promotion, error) {
	args := m.Called(ctx, sessionID)
	promotions, _ := args.Get(0).([]Promotion)
	return promotions, args.Error(1)
}

func (m *MockService) Get(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockService) ListForAttendee(ctx context.Context, actor auth.Actor) ([]domain.Booking, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockService) ListForSession(ctx context.Context, sessionID int64, actor auth.Actor) ([]SessionBooking, error) {
	args := m.Called(ctx, sessionID, actor)
	bookings, _ := args.Get(0).([]SessionBooking)
	return bookings, args.Error(1)
}

func (m *MockService) Waitlist(ctx context.Context, sessionID int64, actor auth.Actor) ([]domain.WaitlistEntry, error) {
	args := m.Called(ctx, sessionID, actor)
	entries, _ := args.Get(0).([]domain.WaitlistEntry)
	return entries, args.Error(1)
}

func (m *MockService) Availability(ctx context.Context, sessionID int64) (*capacity.Availability, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*capacity.Availability), args.Error(1)
}

func setupRouter(svc Service, actor *auth.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actor != nil {
			auth.SetActor(c, *actor)
		}
		c.Next()
	})
	r.POST("/sessions/:sessionID/bookings", h.RequestBooking)
	r.GET("/sessions/:sessionID/waitlist", h.GetWaitlist)
	r.GET("/sessions/:sessionID/availability", h.GetAvailability)
	r.POST("/bookings/:bookingID/cancel", h.CancelBooking)
	r.GET("/bookings", h.ListMyBookings)
	r.POST("/waitlist/:entryID/withdraw", h.WithdrawWaitlist)
	r.POST("/organizer/bookings/:bookingID/check-in", h.CheckIn)
	r.POST("/organizer/sessions/:id/promote", h.PromoteWaitlist)
	r.GET("/organizer/sessions/:id/bookings", h.ListSessionBookings)
	return r
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestBookingHandler_Confirmed(t *testing.T) {
	svc := &MockService{}
	actor := owner
	in := RequestInput{Attendee: domain.Attendee{Name: "Guest", Email: "guest@example.com"}}
	svc.On("Request", mock.Anything, int64(7), in).
		Return(&RequestResult{Status: domain.BookingConfirmed, Booking: confirmedBooking(11)}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/sessions/7/bookings", in)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"confirmed"`)
	svc.AssertExpectations(t)
}

func TestRequestBookingHandler_WaitlistedReturnsAccepted(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Request", mock.Anything, int64(7), mock.Anything).
		Return(&RequestResult{
			Status:        domain.BookingWaitlisted,
			Booking:       confirmedBooking(12),
			WaitlistEntry: &domain.WaitlistEntry{ID: 3, Position: 2},
		}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/sessions/7/bookings", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"position":2`)
}

func TestRequestBookingHandler_DefaultsAttendeeToCaller(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Request", mock.Anything, int64(7), mock.MatchedBy(func(in RequestInput) bool {
		return in.Attendee.Email == owner.Email && in.Attendee.UserID != nil && *in.Attendee.UserID == owner.UserID
	})).Return(&RequestResult{Status: domain.BookingConfirmed, Booking: confirmedBooking(11)}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/sessions/7/bookings", nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestRequestBookingHandler_IgnoresUserIDFromBody(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Request", mock.Anything, int64(5), mock.MatchedBy(func(in RequestInput) bool {
		return in.Attendee.Email == "victim@example.com" && in.Attendee.UserID == nil
	})).Return(&RequestResult{Status: domain.BookingConfirmed, Booking: confirmedBooking(11)}, nil)

	body := map[string]any{"attendee": map[string]any{"user_id": 999, "name": "Vic", "email": "victim@example.com"}}
	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/sessions/5/bookings", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestRequestBookingHandler_LinksCallerOwnEmail(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Request", mock.Anything, int64(5), mock.MatchedBy(func(in RequestInput) bool {
		return in.Attendee.UserID != nil && *in.Attendee.UserID == owner.UserID
	})).Return(&RequestResult{Status: domain.BookingConfirmed, Booking: confirmedBooking(11)}, nil)

	body := map[string]any{"attendee": map[string]any{"user_id": 999, "name": "Ann", "email": "ANN@example.com"}}
	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/sessions/5/bookings", body)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestRequestBookingHandler_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   interface{}
		err    error
		status int
	}{
		{"invalid id", "/sessions/abc/bookings", nil, nil, http.StatusBadRequest},
		{"invalid email", "/sessions/7/bookings", RequestInput{Attendee: domain.Attendee{Name: "x", Email: "bad"}}, nil, http.StatusBadRequest},
		{"not found", "/sessions/7/bookings", nil, ErrSessionNotFound, http.StatusNotFound},
		{"started", "/sessions/7/bookings", nil, ErrSessionStarted, http.StatusBadRequest},
		{"duplicate", "/sessions/7/bookings", nil, ErrDuplicateBooking, http.StatusConflict},
		{"suspended", "/sessions/7/bookings", nil, ErrAttendeeSuspended, http.StatusForbidden},
		{"internal", "/sessions/7/bookings", nil, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			actor := owner
			if tt.err != nil {
				svc.On("Request", mock.Anything, int64(7), mock.Anything).Return(nil, tt.err)
			}

			w := doJSON(setupRouter(svc, &actor), http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequestBookingHandler_Unauthenticated(t *testing.T) {
	w := doJSON(setupRouter(&MockService{}, nil), http.MethodPost, "/sessions/7/bookings", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCancelBookingHandler(t *testing.T) {
	svc := &MockService{}
	actor := owner
	cancelled := confirmedBooking(11)
	cancelled.Status = domain.BookingCancelled
	svc.On("Cancel", mock.Anything, int64(11), owner).
		Return(&CancelResult{Booking: cancelled, Promoted: confirmedBooking(12)}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/bookings/11/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CancelResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.BookingCancelled, resp.Booking.Status)
	assert.Equal(t, int64(12), resp.Promoted.ID)
	assert.Empty(t, resp.PromotionError)
}

func TestCancelBookingHandler_PromotionFailureStillOK(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Cancel", mock.Anything, int64(11), owner).
		Return(&CancelResult{Booking: confirmedBooking(11), PromotionErr: ErrInvariantViolation}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/bookings/11/cancel", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "promotion_error")
}

func TestCancelBookingHandler_Forbidden(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Cancel", mock.Anything, int64(11), owner).Return(nil, ErrForbidden)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/bookings/11/cancel", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCheckInHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"created", nil, http.StatusCreated},
		{"duplicate", ErrAlreadyCheckedIn, http.StatusConflict},
		{"closed", ErrCheckInClosed, http.StatusConflict},
		{"missing", ErrBookingNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			actor := operator
			if tt.err != nil {
				svc.On("CheckIn", mock.Anything, int64(11), operator).Return(nil, tt.err)
			} else {
				svc.On("CheckIn", mock.Anything, int64(11), operator).Return(&domain.CheckIn{ID: 1, BookingID: 11}, nil)
			}

			w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/organizer/bookings/11/check-in", nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestWithdrawWaitlistHandler(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("WithdrawWaitlist", mock.Anything, int64(5), owner).Return(nil, ErrEntryNotFound)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/waitlist/5/withdraw", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPromoteWaitlistHandler_EmptyList(t *testing.T) {
	svc := &MockService{}
	actor := operator
	svc.On("PromoteWaitlist", mock.Anything, int64(7)).Return(nil, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodPost, "/organizer/sessions/7/promote", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestListMyBookingsHandler(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("ListForAttendee", mock.Anything, owner).Return([]domain.Booking{*confirmedBooking(11)}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodGet, "/bookings", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []domain.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestGetWaitlistHandler(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Waitlist", mock.Anything, int64(7), owner).Return([]domain.WaitlistEntry{{ID: 1, Position: 1}, {ID: 2, Position: 2}}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodGet, "/sessions/7/waitlist", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"position":2`)
}

func TestGetAvailabilityHandler(t *testing.T) {
	svc := &MockService{}
	actor := owner
	svc.On("Availability", mock.Anything, int64(7)).Return(&capacity.Availability{Capacity: 2, Confirmed: 2, Remaining: 0}, nil)

	w := doJSON(setupRouter(svc, &actor), http.MethodGet, "/sessions/7/availability", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"capacity":2,"confirmed":2,"remaining":0}`, w.Body.String())
}

func TestGetWaitlistHandler_PassesCallerToService(t *testing.T) {
	svc := &MockService{}
	stranger := auth.Actor{UserID: 12, OrganizationID: 8, Email: "eve@example.com", Role: auth.RoleMember}
	svc.On("Waitlist", mock.Anything, int64(7), stranger).Return([]domain.WaitlistEntry{{ID: 1, Position: 1}}, nil)

	w := doJSON(setupRouter(svc, &stranger), http.MethodGet, "/sessions/7/waitlist", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "@example.com")
	svc.AssertExpectations(t)
}

func TestGetWaitlistHandler_Unauthenticated(t *testing.T) {
	svc := &MockService{}

	w := doJSON(setupRouter(svc, nil), http.MethodGet, "/sessions/7/waitlist", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Waitlist", mock.Anything, mock.Anything, mock.Anything)
}
