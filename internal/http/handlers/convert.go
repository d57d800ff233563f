package handlers

import "service-dispatcher/internal/domain"

func deliveryToResponse(d domain.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:           d.ID,
		ParcelID:     d.ParcelID,
		DriverID:     d.DriverID,
		Status:       string(d.Status),
		Priority:     int(d.Priority),
		Pickup:       locationDTO{Lat: d.Pickup.Lat, Lng: d.Pickup.Lng},
		NeedsManual:  d.NeedsManual,
		ManualReason: d.ManualReason,
		UpdatedAt:    d.UpdatedAt,
	}
}

func parcelToResponse(p domain.Parcel) parcelResponse {
	return parcelResponse{
		ID:        p.ID,
		Status:    string(p.Status),
		UpdatedAt: p.UpdatedAt,
	}
}

func candidatesToResponse(list []domain.Candidate) []candidateResponse {
	out := make([]candidateResponse, 0, len(list))
	for _, c := range list {
		out = append(out, candidateResponse{
			DriverID:       c.Driver.ID,
			Name:           c.Driver.Name,
			Location:       locationDTO{Lat: c.Driver.Location.Lat, Lng: c.Driver.Location.Lng},
			ZoneID:         c.Driver.ZoneID,
			CurrentLoad:    c.Driver.CurrentLoad,
			MaxCapacity:    c.Driver.MaxCapacity,
			Rating:         c.Driver.Rating,
			DistanceMeters: c.DistanceMeters,
			ETAMinutes:     c.ETAMinutes,
		})
	}
	return out
}

func capacityToResponse(v domain.CapacityView, cached bool) capacityResponse {
	return capacityResponse{
		DriverID:    v.DriverID,
		Available:   v.Available,
		Capacity:    v.Capacity,
		CurrentLoad: v.CurrentLoad,
		Version:     v.Version,
		LastUpdated: v.LastUpdated,
		Cached:      cached,
	}
}
