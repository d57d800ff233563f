package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/service/finder"
)

// NearbyDefaults bounds nearby queries that omit radius or limit.
type NearbyDefaults struct {
	RadiusMeters float64
	Limit        int
	MaxLimit     int
}

// DriverHandler serves read-only driver searches and capacity lookups.
type DriverHandler struct {
	usecase  nearbyUsecase
	capacity capacityUsecase
	defaults NearbyDefaults
	logger   logx.Logger
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(logger logx.Logger, uc nearbyUsecase, capacity capacityUsecase, defaults NearbyDefaults) *DriverHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	if defaults.RadiusMeters <= 0 {
		defaults.RadiusMeters = 5000
	}
	if defaults.Limit <= 0 {
		defaults.Limit = 10
	}
	if defaults.MaxLimit < defaults.Limit {
		defaults.MaxLimit = 100
	}
	return &DriverHandler{usecase: uc, capacity: capacity, defaults: defaults, logger: logger}
}

// Nearby handles GET /drivers/nearby?lat=&lng=&radius_m=&limit=&zone_id=.
func (h *DriverHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}

	candidates, err := h.usecase.FindAvailable(r.Context(), q)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, candidatesToResponse(candidates))
}

// Capacity handles GET /drivers/{id}/capacity[?refresh=true].
func (h *DriverHandler) Capacity(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return
	}
	refresh := false
	if s := r.URL.Query().Get("refresh"); s != "" {
		refresh, err = strconv.ParseBool(s)
		if err != nil {
			writeError(h.logger, w, r, http.StatusBadRequest, "refresh must be a boolean")
			return
		}
	}

	view, cached, err := h.capacity.Capacity(r.Context(), id, refresh)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, capacityToResponse(view, cached))
}

func (h *DriverHandler) parseQuery(r *http.Request) (finder.Query, error) {
	v := r.URL.Query()

	lat, err := strconv.ParseFloat(v.Get("lat"), 64)
	if err != nil {
		return finder.Query{}, errors.New("lat must be a number")
	}
	lng, err := strconv.ParseFloat(v.Get("lng"), 64)
	if err != nil {
		return finder.Query{}, errors.New("lng must be a number")
	}

	loc := domain.Location{Lat: lat, Lng: lng}
	if err := loc.Validate(); err != nil {
		return finder.Query{}, errors.New("lat and lng must be finite coordinates in range")
	}

	q := finder.Query{
		Location:     loc,
		RadiusMeters: h.defaults.RadiusMeters,
		Limit:        h.defaults.Limit,
		ZoneID:       strings.TrimSpace(v.Get("zone_id")),
	}
	if s := v.Get("radius_m"); s != "" {
		radius, err := strconv.ParseFloat(s, 64)
		if err != nil || !(radius > 0) || math.IsInf(radius, 1) {
			return finder.Query{}, errors.New("radius_m must be a positive number")
		}
		q.RadiusMeters = radius
	}
	if s := v.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 || limit > h.defaults.MaxLimit {
			return finder.Query{}, fmt.Errorf("limit must be between 1 and %d", h.defaults.MaxLimit)
		}
		q.Limit = limit
	}
	return q, nil
}
