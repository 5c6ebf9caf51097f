package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type DriverFilter struct {
	Status []models.DriverStatus
}

type DriverRepository struct {
	base
}

func NewDriverRepository(db store.Store, now func() time.Time) *DriverRepository {
	return &DriverRepository{base: newBase(db, models.TableDrivers, now, true)}
}

// FindAll lists drivers ordered by name.
func (r *DriverRepository) FindAll(ctx context.Context, filter DriverFilter) ([]models.Driver, error) {
	q := store.From(r.table).OrderBy("full_name", false)
	if len(filter.Status) > 0 {
		q = q.Where(store.In("status", filter.Status))
	}
	return list[models.Driver](ctx, r.db, q)
}

func (r *DriverRepository) FindByID(ctx context.Context, id string) (*models.Driver, error) {
	return one[models.Driver](ctx, r.db, store.From(r.table).Where(store.Eq("_id", id)))
}

func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) (*models.Driver, error) {
	if driver.ID == "" {
		driver.ID = NewID()
	}
	now := r.now()
	driver.CreatedAt, driver.UpdatedAt = now, now
	if err := r.insert(ctx, driver); err != nil {
		return nil, err
	}
	return driver, nil
}

func (r *DriverRepository) Update(ctx context.Context, id string, update models.DriverUpdate) (*models.Driver, error) {
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	d, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, notFound("update", r.table, id)
	}
	return d, nil
}

func (r *DriverRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

// Performance returns the twelve most recent scorecards of a driver.
func (r *DriverRepository) Performance(ctx context.Context, driverID string) ([]models.DriverPerformance, error) {
	q := store.From(models.TableDriverPerformance).
		Where(store.Eq("driver_id", driverID)).
		OrderBy("period_end", true).
		Take(12)
	return list[models.DriverPerformance](ctx, r.db, q)
}

// TopRated returns the rated drivers with the highest rating, best first.
// Drivers without a rating are left out.
func (r *DriverRepository) TopRated(ctx context.Context, limit int) ([]models.Driver, error) {
	q := store.From(r.table).
		Where(store.NotNull("rating")).
		OrderBy("rating", true).
		OrderBy("full_name", false).
		Take(limit)
	return list[models.Driver](ctx, r.db, q)
}

func driverRefs(ctx context.Context, db store.Store, ids []string) (map[string]*models.DriverRef, error) {
	rows, err := byIDs(ctx, db, models.TableDrivers, ids, func(d models.Driver) string { return d.ID })
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.DriverRef, len(rows))
	for id, d := range rows {
		out[id] = d.Ref()
	}
	return out, nil
}

func lookupDriver(refs map[string]*models.DriverRef, id *string) *models.DriverRef {
	if id == nil {
		return nil
	}
	return refs[*id]
}
