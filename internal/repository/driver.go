package repository

import (
	"context"
	"fmt"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/geo"
)

const driverColumns = `id, name, lat, lng, max_capacity, current_load, status,
	rating, completed_deliveries, COALESCE(zone_id, ''), version, updated_at`

func scanDriver(row interface{ Scan(dest ...any) error }) (*domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Location.Lat, &d.Location.Lng, &d.MaxCapacity, &d.CurrentLoad,
		&d.Status, &d.Rating, &d.CompletedDeliveries, &d.ZoneID, &d.Version, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func getDriver(ctx context.Context, q querier, id string, forUpdate bool) (*domain.Driver, error) {
	sql := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	d, err := scanDriver(q.QueryRow(ctx, sql, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get driver %q: %w", id, err)
	}
	return d, nil
}

// GetDriver - returns driver by its ID, nil if it does not exist.
func (s *Store) GetDriver(ctx context.Context, id string) (*domain.Driver, error) {
	return getDriver(ctx, s.db, id, false)
}

// ListAvailableDrivers returns drivers with spare capacity inside the box,
// optionally restricted to one zone.
func (s *Store) ListAvailableDrivers(ctx context.Context, box geo.Box, zoneID string) ([]domain.Driver, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+driverColumns+`
        FROM drivers
        WHERE status = $1
          AND current_load < max_capacity
          AND lat BETWEEN $2 AND $3
          AND lng BETWEEN $4 AND $5
          AND ($6 = '' OR zone_id = $6)
        ORDER BY id
    `, string(domain.DriverAvailable), box.MinLat, box.MaxLat, box.MinLng, box.MaxLng, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list available drivers: %w", err)
	}
	defer rows.Close()

	var out []domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// GetDriverForUpdate - reads the driver row and locks it until the transaction ends.
func (r *TxRepo) GetDriverForUpdate(ctx context.Context, id string) (*domain.Driver, error) {
	return getDriver(ctx, r.tx, id, true)
}

// UpdateDriverLoad - writes load and status, bumps the version and returns it.
func (r *TxRepo) UpdateDriverLoad(ctx context.Context, id string, load int, status domain.DriverStatus) (int64, error) {
	var version int64
	err := r.tx.QueryRow(ctx, `
        UPDATE drivers
        SET current_load = $2, status = $3, version = version + 1, updated_at = now()
        WHERE id = $1
        RETURNING version
    `, id, load, string(status)).Scan(&version)
	if err != nil {
		if IsNotFound(err) {
			return 0, fmt.Errorf("driver %q: %w", id, apperr.ErrNotFound)
		}
		if IsCheckViolation(err) {
			return 0, fmt.Errorf("driver %q load %d: %w", id, load, apperr.ErrConflict)
		}
		return 0, fmt.Errorf("update driver load %q: %w", id, err)
	}
	return version, nil
}
