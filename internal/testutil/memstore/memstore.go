// Package memstore is an in-memory stand-in for the Postgres store used in service tests.
// Transactions are fully serialized and work on private copies that are swapped in on commit.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"service-dispatcher/internal/apperr"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/geo"
	"service-dispatcher/internal/ports/dispatchtx"
)

// Store keeps drivers, deliveries and parcels in maps.
type Store struct {
	txMu sync.Mutex

	mu         sync.RWMutex
	drivers    map[string]domain.Driver
	deliveries map[string]domain.Delivery
	parcels    map[string]domain.Parcel
	commitErr  error
	commits    int
	readErr    error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		drivers:    map[string]domain.Driver{},
		deliveries: map[string]domain.Delivery{},
		parcels:    map[string]domain.Parcel{},
	}
}

var _ dispatchtx.Runner = (*Store)(nil)

// PutDriver seeds or replaces a driver.
func (s *Store) PutDriver(d domain.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = d
}

// PutDelivery seeds a delivery and, when missing, its parcel in the given status.
func (s *Store) PutDelivery(d domain.Delivery, parcel domain.ParcelStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.Status == "" {
		d.Status = domain.DeliveryStarted
	}
	s.deliveries[d.ID] = d
	if _, ok := s.parcels[d.ParcelID]; !ok {
		s.parcels[d.ParcelID] = domain.Parcel{ID: d.ParcelID, Status: parcel}
	}
}

// Driver returns the committed driver state.
func (s *Store) Driver(id string) domain.Driver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drivers[id]
}

// Delivery returns the committed delivery state.
func (s *Store) Delivery(id string) domain.Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deliveries[id]
}

// Parcel returns the committed parcel state.
func (s *Store) Parcel(id string) domain.Parcel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parcels[id]
}

// Commits returns how many transactions committed.
func (s *Store) Commits() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.commits
}

// FailCommits makes every following commit fail with err. nil restores commits.
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// FailReads makes the non-transactional reads fail with err. nil restores them.
func (s *Store) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// WithTx runs fn on a private copy of the data and publishes it when fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	s.mu.RLock()
	tx := &txRepo{
		drivers:    maps.Clone(s.drivers),
		deliveries: maps.Clone(s.deliveries),
		parcels:    maps.Clone(s.parcels),
	}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return fmt.Errorf("commit tx: %w", s.commitErr)
	}
	s.drivers, s.deliveries, s.parcels = tx.drivers, tx.deliveries, tx.parcels
	s.commits++
	return nil
}

// GetDriver returns the committed driver, nil if missing.
func (s *Store) GetDriver(_ context.Context, id string) (*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	d, ok := s.drivers[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// ListAvailableDrivers mirrors the SQL filter of the Postgres store.
func (s *Store) ListAvailableDrivers(_ context.Context, box geo.Box, zoneID string) ([]domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []domain.Driver
	for _, d := range s.drivers {
		if d.Status != domain.DriverAvailable || d.CurrentLoad >= d.MaxCapacity {
			continue
		}
		if !box.Contains(d.Location) {
			continue
		}
		if zoneID != "" && d.ZoneID != zoneID {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetDelivery returns the committed delivery, nil if missing.
func (s *Store) GetDelivery(_ context.Context, id string) (*domain.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	d, ok := s.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// ListPendingDeliveries returns started unassigned deliveries not parked for manual handling.
func (s *Store) ListPendingDeliveries(_ context.Context, limit int) ([]domain.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []domain.Delivery
	for _, d := range s.deliveries {
		if d.Status == domain.DeliveryStarted && !d.Assigned() && !d.NeedsManual {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateDelivery inserts a started delivery and its pending parcel.
func (s *Store) CreateDelivery(_ context.Context, d domain.Delivery) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.ID]; ok {
		return nil, fmt.Errorf("delivery %q: %w", d.ID, apperr.ErrConflict)
	}
	now := time.Now().UTC()
	d.Status = domain.DeliveryStarted
	d.DriverID = ""
	d.CreatedAt, d.UpdatedAt = now, now
	s.deliveries[d.ID] = d
	if _, ok := s.parcels[d.ParcelID]; !ok {
		s.parcels[d.ParcelID] = domain.Parcel{ID: d.ParcelID, Status: domain.ParcelPending, UpdatedAt: now}
	}
	return &d, nil
}

type txRepo struct {
	drivers    map[string]domain.Driver
	deliveries map[string]domain.Delivery
	parcels    map[string]domain.Parcel
}

func (t *txRepo) GetDriverForUpdate(_ context.Context, id string) (*domain.Driver, error) {
	d, ok := t.drivers[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (t *txRepo) UpdateDriverLoad(_ context.Context, id string, load int, status domain.DriverStatus) (int64, error) {
	d, ok := t.drivers[id]
	if !ok {
		return 0, fmt.Errorf("driver %q: %w", id, apperr.ErrNotFound)
	}
	if load < 0 || load > d.MaxCapacity {
		return 0, fmt.Errorf("driver %q load %d: %w", id, load, apperr.ErrConflict)
	}
	d.CurrentLoad = load
	d.Status = status
	d.Version++
	d.UpdatedAt = time.Now().UTC()
	t.drivers[id] = d
	return d.Version, nil
}

func (t *txRepo) GetDeliveryForUpdate(_ context.Context, id string) (*domain.Delivery, error) {
	d, ok := t.deliveries[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (t *txRepo) SetDeliveryDriver(_ context.Context, deliveryID, driverID string) error {
	d, ok := t.deliveries[deliveryID]
	if !ok {
		return fmt.Errorf("delivery %q: %w", deliveryID, apperr.ErrNotFound)
	}
	d.DriverID = driverID
	d.NeedsManual = false
	d.ManualReason = ""
	t.deliveries[deliveryID] = d
	return nil
}

func (t *txRepo) SetDeliveryStatus(_ context.Context, id string, status domain.DeliveryStatus) error {
	d, ok := t.deliveries[id]
	if !ok {
		return fmt.Errorf("delivery %q: %w", id, apperr.ErrNotFound)
	}
	d.Status = status
	t.deliveries[id] = d
	return nil
}

func (t *txRepo) MarkDeliveryManual(_ context.Context, id, reason string) error {
	d, ok := t.deliveries[id]
	if !ok {
		return fmt.Errorf("delivery %q: %w", id, apperr.ErrNotFound)
	}
	d.NeedsManual = true
	d.ManualReason = reason
	t.deliveries[id] = d
	return nil
}

func (t *txRepo) GetParcelForUpdate(_ context.Context, id string) (*domain.Parcel, error) {
	p, ok := t.parcels[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *txRepo) SetParcelStatus(_ context.Context, id string, status domain.ParcelStatus) error {
	p, ok := t.parcels[id]
	if !ok {
		return fmt.Errorf("parcel %q: %w", id, apperr.ErrNotFound)
	}
	p.Status = status
	t.parcels[id] = p
	return nil
}
