package kafka_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/service/statusevents"
	"service-dispatcher/internal/transport/kafka"
)

func TestToDomain_TrimsAndCopiesFields(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	dto := kafka.StatusEventDTO{
		Type:       "  Created  ",
		DeliveryID: "  L1  ",
		ParcelID:   " P1 ",
		Priority:   "HIGH",
		Pickup:     &kafka.LocationDTO{Lat: 55.75, Lng: 37.61},
		Reason:     " new ",
		At:         ts,
	}

	got, err := dto.ToDomain()
	require.NoError(t, err)

	require.Equal(t, statusevents.Event{
		Type:       "created",
		DeliveryID: "L1",
		ParcelID:   "P1",
		Priority:   domain.PriorityHigh,
		Pickup:     domain.Location{Lat: 55.75, Lng: 37.61},
		Reason:     "new",
		At:         ts,
	}, got)
}

func TestToDomain_DefaultsPriority(t *testing.T) {
	t.Parallel()

	got, err := kafka.StatusEventDTO{Type: "completed", DeliveryID: "L1"}.ToDomain()
	require.NoError(t, err)
	require.Equal(t, domain.PriorityNormal, got.Priority)
}

func TestToDomain_RejectsMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]kafka.StatusEventDTO{
		"empty type":       {DeliveryID: "L1"},
		"empty delivery":   {Type: "created", DeliveryID: " "},
		"unknown priority": {Type: "created", DeliveryID: "L1", Priority: "urgent"},
	}
	for name, dto := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := dto.ToDomain()
			require.ErrorIs(t, err, apperr.ErrInvalid)

			var perm kafka.PermanentError
			require.ErrorAs(t, err, &perm)
		})
	}
}
