package handlers

import (
	"net/http"
	"strings"

	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/logx"
)

// DispatchHandler handles HTTP requests for delivery and parcel operations.
type DispatchHandler struct {
	usecase dispatchUsecase
	logger  logx.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(logger logx.Logger, uc dispatchUsecase) *DispatchHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &DispatchHandler{usecase: uc, logger: logger}
}

func (h *DispatchHandler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func (h *DispatchHandler) respondDelivery(w http.ResponseWriter, r *http.Request, d domain.Delivery, err error) {
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, deliveryToResponse(d))
}

func (h *DispatchHandler) respondParcel(w http.ResponseWriter, r *http.Request, p domain.Parcel, err error) {
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, parcelToResponse(p))
}

// Assign handles POST /deliveries/{id}/assign.
func (h *DispatchHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.usecase.AssignDelivery(r.Context(), id)
	h.respondDelivery(w, r, d, err)
}

// AssignDriver handles PUT /deliveries/{id}/driver, the manual override.
func (h *DispatchHandler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req assignDriverRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	driverID := strings.TrimSpace(req.DriverID)
	if driverID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "driver_id is required")
		return
	}

	d, err := h.usecase.AssignToDriver(r.Context(), id, driverID, req.Force)
	h.respondDelivery(w, r, d, err)
}

// EmergencyReplace handles POST /deliveries/{id}/emergency-replace.
func (h *DispatchHandler) EmergencyReplace(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req emergencyReplaceRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	oldDriver := strings.TrimSpace(req.OldDriverID)
	if oldDriver == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "old_driver_id is required")
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "emergency"
	}

	newDriver, err := h.usecase.EmergencyReplace(r.Context(), oldDriver, id, reason)
	if err != nil {
		writeDomainError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, emergencyReplaceResponse{
		DeliveryID:  id,
		OldDriverID: oldDriver,
		DriverID:    newDriver,
	})
}

// Complete handles POST /deliveries/{id}/complete.
func (h *DispatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.usecase.CompleteDelivery(r.Context(), id)
	h.respondDelivery(w, r, d, err)
}

// Cancel handles POST /deliveries/{id}/cancel. The body with a reason is optional.
func (h *DispatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if ok := decodeOptionalJSON(h.logger, w, r, &req); !ok {
		return
	}
	d, err := h.usecase.CancelDelivery(r.Context(), id, strings.TrimSpace(req.Reason))
	h.respondDelivery(w, r, d, err)
}

// InTransit handles POST /deliveries/{id}/in-transit.
func (h *DispatchHandler) InTransit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	p, err := h.usecase.MarkInTransit(r.Context(), id)
	h.respondParcel(w, r, p, err)
}

// ParcelStatus handles PUT /parcels/{id}/status.
func (h *DispatchHandler) ParcelStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req parcelStatusRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	status := domain.ParcelStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	p, err := h.usecase.UpdateParcelStatus(r.Context(), id, status)
	h.respondParcel(w, r, p, err)
}
