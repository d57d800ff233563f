package repository

import (
	"context"
	"fmt"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
)

// GetParcelForUpdate - reads the parcel row and locks it until the transaction ends.
func (r *TxRepo) GetParcelForUpdate(ctx context.Context, id string) (*domain.Parcel, error) {
	var p domain.Parcel
	err := r.tx.QueryRow(ctx,
		`SELECT id, status, updated_at FROM parcels WHERE id = $1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.Status, &p.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get parcel %q: %w", id, err)
	}
	return &p, nil
}

// SetParcelStatus - writes the parcel status.
func (r *TxRepo) SetParcelStatus(ctx context.Context, id string, status domain.ParcelStatus) error {
	ct, err := r.tx.Exec(ctx,
		`UPDATE parcels SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set parcel status %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("parcel %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}
