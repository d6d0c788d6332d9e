package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/fleetplan/internal/config"
	"github.com/paiban/fleetplan/internal/constraints"
	"github.com/paiban/fleetplan/internal/middleware"
	"github.com/paiban/fleetplan/internal/repository"
	"github.com/paiban/fleetplan/internal/service"
	"github.com/paiban/fleetplan/internal/tenant"
	"github.com/paiban/fleetplan/pkg/model"
)

type testServer struct {
	tenant  uuid.UUID
	store   *repository.Memory
	handler http.Handler
}

func newTestServer(t *testing.T, checks map[string]HealthCheck) *testServer {
	t.Helper()
	cfg := config.Default()
	store := repository.NewMemory()
	svc := service.New(cfg, store, service.NewCostProvider(cfg, nil))

	mux := http.NewServeMux()
	NewSystemHandler("fleetplan", BuildInfo{Version: "test"}, checks).Register(mux)
	NewAPIHandler(svc, constraints.Build(cfg)).Register(mux)

	h := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Tenant(tenant.NewManager(), "/health", "/version", "/api/v1/"),
		middleware.Logging,
	)
	return &testServer{tenant: uuid.New(), store: store, handler: h}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenant.Header, s.tenant.String())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"database": func(ctx context.Context) error { return nil },
	})

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, "test", decode(t, rec)["version"])

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec)["endpoints"], "auto_assign")
}

func TestHealth_Degraded(t *testing.T) {
	s := newTestServer(t, map[string]HealthCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestMissingTenant(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/conflicts?startDate=2025-01-15&endDate=2025-01-15", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOptimizeRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	day := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	trips := make([]*model.Trip, 5)
	for i := range trips {
		trips[i] = &model.Trip{
			ID:              uuid.New(),
			PassengerCount:  2 + i%3,
			Pickup:          model.Location{Latitude: 51.5 + float64(i%2)*0.05, Longitude: -0.1 + float64(i)*0.03},
			PickupTime:      day.Add(time.Duration(i) * 20 * time.Minute),
			DurationMinutes: 30,
		}
	}

	rec := s.do(t, http.MethodPost, "/api/v1/routes/optimize", map[string]interface{}{
		"trips":             trips,
		"vehicleCapacity":   8,
		"optimizationLevel": "thorough",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode(t, rec)
	assert.Equal(t, "local_search", out["method"])
	assert.Equal(t, "thorough", out["optimization_level"])
	assert.GreaterOrEqual(t, out["improvement"].(float64), 0.0)

	seen := map[string]int{}
	for _, r := range out["routes"].([]interface{}) {
		for _, id := range r.(map[string]interface{})["trip_ids"].([]interface{}) {
			seen[id.(string)]++
		}
	}
	assert.Len(t, seen, 5)
	for _, trip := range trips {
		assert.Equal(t, 1, seen[trip.ID.String()])
	}
}

func TestOptimizeRoutes_BadBody(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes/optimize", bytes.NewBufferString("{not json"))
	req.Header.Set(tenant.Header, s.tenant.String())
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, rec)["code"])
}

func TestCheckAvailability(t *testing.T) {
	s := newTestServer(t, nil)
	driver := uuid.New()
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	s.store.Seed(s.tenant, repository.Dataset{Assignments: []*model.Assignment{{
		ID: uuid.New(), DriverID: driver, Date: "2025-01-15",
		StartTime: start, EndTime: start.Add(30 * time.Minute), Status: model.AssignmentScheduled,
	}}})

	rec := s.do(t, http.MethodGet, "/api/v1/drivers/"+driver.String()+"/availability?date=2025-01-15&startTime=09:10&durationMinutes=30", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, false, out["available"])
	assert.Len(t, out["conflicts"], 1)

	rec = s.do(t, http.MethodGet, "/api/v1/drivers/"+driver.String()+"/availability?date=2025-01-15", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out = decode(t, rec)
	assert.Equal(t, "VALIDATION_FAILED", out["code"])
	fields := out["fields"].(map[string]interface{})
	assert.Contains(t, fields, "startTime")
	assert.Contains(t, fields, "durationMinutes")
}

func TestDetectConflicts_Empty(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/conflicts?startDate=2025-01-15&endDate=2025-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, []interface{}{}, out["conflicts"])
	assert.Equal(t, map[string]interface{}{"total": 0.0, "critical": 0.0, "warnings": 0.0, "info": 0.0}, out["summary"])
}

func seedFleet(s *testServer, drivers, trips int) {
	day := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	vehicle := &model.Vehicle{ID: uuid.New(), Registration: "KX70 ABC", Seats: 6}
	ds := repository.Dataset{Vehicles: []*model.Vehicle{vehicle}}
	for i := 0; i < drivers; i++ {
		vid := vehicle.ID
		ds.Drivers = append(ds.Drivers, &model.Driver{ID: uuid.New(), Name: "driver", Status: "active", EmploymentType: model.EmploymentFullTime, VehicleID: &vid})
	}
	for i := 0; i < trips; i++ {
		ds.Trips = append(ds.Trips, &model.Trip{
			ID: uuid.New(), CustomerID: uuid.New(), PassengerCount: 1,
			PickupTime: day.Add(time.Duration(i) * time.Hour), DurationMinutes: 30,
		})
	}
	s.store.Seed(s.tenant, ds)
}

func TestSuggestDrivers(t *testing.T) {
	s := newTestServer(t, nil)
	seedFleet(s, 2, 0)

	rec := s.do(t, http.MethodPost, "/api/v1/drivers/suggest", map[string]interface{}{
		"customerId":     uuid.NewString(),
		"tripDate":       "2025-01-15",
		"pickupTime":     "10:30",
		"passengerCount": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	recs := decode(t, rec)["recommendations"].([]interface{})
	require.Len(t, recs, 2)
	first := recs[0].(map[string]interface{})
	assert.Contains(t, first, "driverId")
	assert.Contains(t, first, "recommendation")
	assert.Contains(t, first, "reasons")
}

func TestAutoAssign_DryRunThenApply(t *testing.T) {
	s := newTestServer(t, nil)
	seedFleet(s, 2, 3)

	rec := s.do(t, http.MethodPost, "/api/v1/assignments/auto", map[string]interface{}{"date": "2025-01-15"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decode(t, rec)
	assert.Equal(t, false, plan["applied"])
	assert.Equal(t, 3.0, plan["assigned"])

	rec = s.do(t, http.MethodPost, "/api/v1/assignments/auto", map[string]interface{}{"date": "2025-01-15", "applyChanges": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["applied"])

	rec = s.do(t, http.MethodGet, "/api/v1/dashboard?startDate=2025-01-15&endDate=2025-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode(t, rec)
	assert.Equal(t, 0.0, dash["unassignedTrips"])
	summary := dash["workload"].(map[string]interface{})["summary"].(map[string]interface{})
	assert.Equal(t, 2.0, summary["totalDrivers"])
	assert.InDelta(t, 1.5, summary["totalHours"].(float64), 1e-9)
}

func TestAutoAssign_EmptyBody(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodPost, "/api/v1/assignments/auto", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkload_InvalidRange(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/workload?startDate=2025-01-20&endDate=2025-01-15", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_TIME_RANGE", decode(t, rec)["code"])
}

func TestRules(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["rules"], 11)
}
