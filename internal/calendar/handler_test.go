package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"classbook/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockStore struct{ mock.Mock }

func (m *MockStore) CreateIntegration(ctx context.Context, orgID int64, provider Provider) (*Integration, error) {
	args := m.Called(ctx, orgID, provider)
	in, _ := args.Get(0).(*Integration)
	return in, args.Error(1)
}

func (m *MockStore) GetIntegration(ctx context.Context, orgID, id int64) (*Integration, error) {
	args := m.Called(ctx, orgID, id)
	in, _ := args.Get(0).(*Integration)
	return in, args.Error(1)
}

func (m *MockStore) ListIntegrations(ctx context.Context, orgID int64) ([]Integration, error) {
	args := m.Called(ctx, orgID)
	list, _ := args.Get(0).([]Integration)
	return list, args.Error(1)
}

func (m *MockStore) SetActive(ctx context.Context, orgID, id int64, active bool) error {
	return m.Called(ctx, orgID, id, active).Error(0)
}

func (m *MockStore) UpsertBusyPeriods(ctx context.Context, integration *Integration, periods []BusyPeriodInput) (*SyncResult, error) {
	args := m.Called(ctx, integration, periods)
	res, _ := args.Get(0).(*SyncResult)
	return res, args.Error(1)
}

type MockChecker struct{ mock.Mock }

func (m *MockChecker) Check(ctx context.Context, orgID int64, w Window) (*ConflictReport, error) {
	args := m.Called(ctx, orgID, w)
	r, _ := args.Get(0).(*ConflictReport)
	return r, args.Error(1)
}

var organizer = auth.Actor{UserID: 1, OrganizationID: 4, Email: "owner@studio.test", Role: auth.RoleOrganizer}

func setupRouter(store IntegrationStore, checker ConflictChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, checker)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetActor(c, organizer)
		c.Next()
	})
	r.POST("/organizer/conflicts", h.CheckConflicts)
	r.POST("/organizer/calendar/integrations", h.CreateIntegration)
	r.GET("/organizer/calendar/integrations", h.ListIntegrations)
	r.DELETE("/organizer/calendar/integrations/:id", h.DisableIntegration)
	r.POST("/organizer/calendar/integrations/:id/busy-periods", h.SyncBusyPeriods)
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

func TestCheckConflictsHandler(t *testing.T) {
	checker := &MockChecker{}
	w := Window{Start: at(10, 0), End: at(11, 0)}
	checker.On("Check", mock.Anything, int64(4), w).Return(&ConflictReport{
		Window:        w,
		ConflictCount: 1,
		Conflicts:     []BusyPeriod{{ID: 1, ExternalEventID: "evt_1", StartTime: at(10, 30), EndTime: at(12, 0)}},
	}, nil)

	resp := doJSON(setupRouter(&MockStore{}, checker), http.MethodPost, "/organizer/conflicts", w)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"conflict_count":1`)
	checker.AssertExpectations(t)
}

func TestCheckConflictsHandler_InvalidWindow(t *testing.T) {
	checker := &MockChecker{}
	w := Window{Start: at(11, 0), End: at(10, 0)}
	checker.On("Check", mock.Anything, int64(4), w).Return(nil, ErrInvalidWindow)

	resp := doJSON(setupRouter(&MockStore{}, checker), http.MethodPost, "/organizer/conflicts", w)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCheckConflictsHandler_BadBody(t *testing.T) {
	resp := doJSON(setupRouter(&MockStore{}, &MockChecker{}), http.MethodPost, "/organizer/conflicts", map[string]string{"start": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateIntegrationHandler_RejectsUnknownProvider(t *testing.T) {
	resp := doJSON(setupRouter(&MockStore{}, &MockChecker{}), http.MethodPost, "/organizer/calendar/integrations",
		CreateIntegrationRequest{Provider: "icloud"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateIntegrationHandler(t *testing.T) {
	store := &MockStore{}
	store.On("CreateIntegration", mock.Anything, int64(4), ProviderOutlook).
		Return(&Integration{ID: 3, OrganizationID: 4, Provider: ProviderOutlook, IsActive: true}, nil)

	resp := doJSON(setupRouter(store, &MockChecker{}), http.MethodPost, "/organizer/calendar/integrations",
		CreateIntegrationRequest{Provider: ProviderOutlook})

	assert.Equal(t, http.StatusCreated, resp.Code)
	store.AssertExpectations(t)
}

func TestDisableIntegrationHandler_NotFound(t *testing.T) {
	store := &MockStore{}
	store.On("SetActive", mock.Anything, int64(4), int64(9), false).Return(ErrIntegrationNotFound)

	resp := doJSON(setupRouter(store, &MockChecker{}), http.MethodDelete, "/organizer/calendar/integrations/9", nil)

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSyncBusyPeriodsHandler(t *testing.T) {
	store := &MockStore{}
	integration := &Integration{ID: 2, OrganizationID: 4, IsActive: true}
	store.On("GetIntegration", mock.Anything, int64(4), int64(2)).Return(integration, nil)
	store.On("UpsertBusyPeriods", mock.Anything, integration, mock.Anything).
		Return(&SyncResult{IntegrationID: 2, Upserted: 1}, nil)

	resp := doJSON(setupRouter(store, &MockChecker{}), http.MethodPost, "/organizer/calendar/integrations/2/busy-periods",
		[]BusyPeriodInput{{ExternalEventID: "evt_1", StartTime: at(10, 0), EndTime: at(11, 0)}})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"upserted":1`)
	store.AssertExpectations(t)
}

func TestSyncBusyPeriodsHandler_Inactive(t *testing.T) {
	store := &MockStore{}
	integration := &Integration{ID: 2, OrganizationID: 4, IsActive: false}
	store.On("GetIntegration", mock.Anything, int64(4), int64(2)).Return(integration, nil)
	store.On("UpsertBusyPeriods", mock.Anything, integration, mock.Anything).Return(nil, ErrIntegrationInactive)

	resp := doJSON(setupRouter(store, &MockChecker{}), http.MethodPost, "/organizer/calendar/integrations/2/busy-periods",
		[]BusyPeriodInput{})

	assert.Equal(t, http.StatusConflict, resp.Code)
}
