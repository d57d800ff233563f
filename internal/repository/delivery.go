package repository

import (
	"context"
	"fmt"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
)

const deliveryColumns = `id, parcel_id, COALESCE(driver_id, ''), status, priority,
	pickup_lat, pickup_lng, needs_manual, manual_reason, created_at, updated_at`

func scanDelivery(row interface{ Scan(dest ...any) error }) (*domain.Delivery, error) {
	var d domain.Delivery
	var priority int16
	err := row.Scan(&d.ID, &d.ParcelID, &d.DriverID, &d.Status, &priority,
		&d.Pickup.Lat, &d.Pickup.Lng, &d.NeedsManual, &d.ManualReason, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Priority = domain.Priority(priority)
	return &d, nil
}

func getDelivery(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Delivery, error) {
	sql := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	d, err := scanDelivery(q.QueryRow(ctx, sql, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %q: %w", id, err)
	}
	return d, nil
}

// GetDelivery - returns delivery by its ID, nil if it does not exist.
func (s *Store) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	return getDelivery(ctx, s.db, id, false)
}

// ListPendingDeliveries - started deliveries without a driver that are not parked for manual handling.
func (s *Store) ListPendingDeliveries(ctx context.Context, limit int) ([]domain.Delivery, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE driver_id IS NULL AND status = $1 AND needs_manual = false
        ORDER BY created_at, id
        LIMIT $2
    `, string(domain.DeliveryStarted), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Delivery, 0, limit)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDeliveryForUpdate - reads the delivery row and locks it until the transaction ends.
func (r *TxRepo) GetDeliveryForUpdate(ctx context.Context, id string) (*domain.Delivery, error) {
	return getDelivery(ctx, r.tx, id, true)
}

// SetDeliveryDriver - points the delivery at a driver; an empty driverID clears it.
func (r *TxRepo) SetDeliveryDriver(ctx context.Context, deliveryID, driverID string) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET driver_id = NULLIF($2, ''), needs_manual = false, manual_reason = '', updated_at = now()
        WHERE id = $1
    `, deliveryID, driverID)
	if err != nil {
		return fmt.Errorf("set delivery driver %q: %w", deliveryID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %q: %w", deliveryID, apperr.ErrNotFound)
	}
	return nil
}

// SetDeliveryStatus - writes the delivery status.
func (r *TxRepo) SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries SET status = $2, updated_at = now() WHERE id = $1
    `, id, string(status))
	if err != nil {
		return fmt.Errorf("set delivery status %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// MarkDeliveryManual - parks the delivery for manual intervention.
func (r *TxRepo) MarkDeliveryManual(ctx context.Context, id, reason string) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET needs_manual = true, manual_reason = $2, updated_at = now()
        WHERE id = $1
    `, id, reason)
	if err != nil {
		return fmt.Errorf("mark delivery manual %q: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// CreateDelivery - inserts a started delivery together with its pending parcel.
// Returns apperr.ErrConflict when the delivery already exists.
func (s *Store) CreateDelivery(ctx context.Context, d domain.Delivery) (*domain.Delivery, error) {
	var out *domain.Delivery
	err := s.withRawTx(ctx, func(q querier) error {
		if _, err := q.Exec(ctx, `
            INSERT INTO parcels (id, status) VALUES ($1, $2)
            ON CONFLICT (id) DO NOTHING
        `, d.ParcelID, string(domain.ParcelPending)); err != nil {
			return fmt.Errorf("insert parcel %q: %w", d.ParcelID, err)
		}

		created, err := scanDelivery(q.QueryRow(ctx, `
            INSERT INTO deliveries (id, parcel_id, status, priority, pickup_lat, pickup_lng)
            VALUES ($1, $2, $3, $4, $5, $6)
            RETURNING `+deliveryColumns,
			d.ID, d.ParcelID, string(domain.DeliveryStarted), int16(d.Priority), d.Pickup.Lat, d.Pickup.Lng))
		if err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("delivery %q: %w", d.ID, apperr.ErrConflict)
			}
			return fmt.Errorf("insert delivery %q: %w", d.ID, err)
		}
		out = created
		return nil
	})
	return out, err
}
