package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/service/finder"
)

type stubNearbyUsecase struct {
	fn func(ctx context.Context, q finder.Query) ([]domain.Candidate, error)
}

func (s stubNearbyUsecase) FindAvailable(ctx context.Context, q finder.Query) ([]domain.Candidate, error) {
	return s.fn(ctx, q)
}

func TestDriverHandler_Nearby_Defaults(t *testing.T) {
	t.Parallel()

	uc := stubNearbyUsecase{fn: func(_ context.Context, q finder.Query) ([]domain.Candidate, error) {
		require.Equal(t, domain.Location{Lat: 55.75, Lng: 37.61}, q.Location)
		require.Equal(t, 3000.0, q.RadiusMeters)
		require.Equal(t, 5, q.Limit)
		require.Empty(t, q.ZoneID)
		return []domain.Candidate{{
			Driver: domain.Driver{
				ID: "D1", Name: "Ann", Location: domain.Location{Lat: 55.751, Lng: 37.61},
				MaxCapacity: 3, CurrentLoad: 1, Rating: 4.8, ZoneID: "z1",
			},
			DistanceMeters: 111.2,
			ETAMinutes:     4.3,
		}}, nil
	}}
	h := NewDriverHandler(logx.Nop(), uc, nil, NearbyDefaults{RadiusMeters: 3000, Limit: 5, MaxLimit: 20})

	rr := httptest.NewRecorder()
	h.Nearby(rr, httptest.NewRequest(http.MethodGet, "/drivers/nearby?lat=55.75&lng=37.61", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{
		"driver_id": "D1",
		"name": "Ann",
		"location": {"lat": 55.751, "lng": 37.61},
		"zone_id": "z1",
		"current_load": 1,
		"max_capacity": 3,
		"rating": 4.8,
		"distance_meters": 111.2,
		"eta_minutes": 4.3
	}]`, rr.Body.String())
}

func TestDriverHandler_Nearby_QueryOverrides(t *testing.T) {
	t.Parallel()

	uc := stubNearbyUsecase{fn: func(_ context.Context, q finder.Query) ([]domain.Candidate, error) {
		require.Equal(t, 1500.0, q.RadiusMeters)
		require.Equal(t, 2, q.Limit)
		require.Equal(t, "north", q.ZoneID)
		return nil, nil
	}}
	h := NewDriverHandler(logx.Nop(), uc, nil, NearbyDefaults{})

	rr := httptest.NewRecorder()
	h.Nearby(rr, httptest.NewRequest(http.MethodGet, "/drivers/nearby?lat=1&lng=2&radius_m=1500&limit=2&zone_id=north", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestDriverHandler_Nearby_BadQuery(t *testing.T) {
	t.Parallel()

	h := NewDriverHandler(logx.Nop(), stubNearbyUsecase{}, nil, NearbyDefaults{MaxLimit: 20, Limit: 10})

	cases := map[string]string{
		"missing lat":   "/drivers/nearby?lng=2",
		"bad lng":       "/drivers/nearby?lat=1&lng=east",
		"zero radius":   "/drivers/nearby?lat=1&lng=2&radius_m=0",
		"limit too big": "/drivers/nearby?lat=1&lng=2&limit=21",
		"nan lng":       "/drivers/nearby?lat=0&lng=NaN",
		"inf lat":       "/drivers/nearby?lat=-Inf&lng=2",
		"nan radius":    "/drivers/nearby?lat=1&lng=2&radius_m=NaN",
		"inf radius":    "/drivers/nearby?lat=1&lng=2&radius_m=%2BInf",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Nearby(rr, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestDriverHandler_Nearby_InvalidLocation(t *testing.T) {
	t.Parallel()

	uc := stubNearbyUsecase{fn: func(context.Context, finder.Query) ([]domain.Candidate, error) {
		return nil, apperr.ErrInvalid
	}}
	rr := httptest.NewRecorder()
	NewDriverHandler(logx.Nop(), uc, nil, NearbyDefaults{}).Nearby(rr, httptest.NewRequest(http.MethodGet, "/drivers/nearby?lat=91&lng=2", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type stubCapacityUsecase struct {
	fn func(ctx context.Context, driverID string, refresh bool) (domain.CapacityView, bool, error)
}

func (s stubCapacityUsecase) Capacity(ctx context.Context, driverID string, refresh bool) (domain.CapacityView, bool, error) {
	return s.fn(ctx, driverID, refresh)
}

func TestDriverHandler_Capacity(t *testing.T) {
	t.Parallel()

	uc := stubCapacityUsecase{fn: func(_ context.Context, id string, refresh bool) (domain.CapacityView, bool, error) {
		require.Equal(t, "D1", id)
		return domain.CapacityView{
			DriverID: id, Available: true, Capacity: 3, CurrentLoad: 1, Version: 9,
			LastUpdated: updatedAt,
		}, !refresh, nil
	}}
	h := NewDriverHandler(logx.Nop(), stubNearbyUsecase{}, uc, NearbyDefaults{})

	rr := httptest.NewRecorder()
	h.Capacity(rr, newRequest(http.MethodGet, "/drivers/D1/capacity", "", map[string]string{"id": "D1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"driver_id": "D1",
		"available": true,
		"capacity": 3,
		"current_load": 1,
		"version": 9,
		"last_updated": "2025-01-02T03:04:05Z",
		"cached": true
	}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Capacity(rr, newRequest(http.MethodGet, "/drivers/D1/capacity?refresh=true", "", map[string]string{"id": "D1"}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"cached":false`)
}

func TestDriverHandler_CapacityErrors(t *testing.T) {
	t.Parallel()

	uc := stubCapacityUsecase{fn: func(context.Context, string, bool) (domain.CapacityView, bool, error) {
		return domain.CapacityView{}, false, apperr.ErrNotFound
	}}
	h := NewDriverHandler(logx.Nop(), stubNearbyUsecase{}, uc, NearbyDefaults{})

	rr := httptest.NewRecorder()
	h.Capacity(rr, newRequest(http.MethodGet, "/drivers/ghost/capacity", "", map[string]string{"id": "ghost"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Capacity(rr, newRequest(http.MethodGet, "/drivers/D1/capacity?refresh=maybe", "", map[string]string{"id": "D1"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Capacity(rr, newRequest(http.MethodGet, "/drivers/%20/capacity", "", map[string]string{"id": " "}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
