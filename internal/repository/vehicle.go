package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type VehicleFilter struct {
	Status []models.VehicleStatus
}

type VehicleRepository struct {
	base
}

func NewVehicleRepository(db store.Store, now func() time.Time) *VehicleRepository {
	return &VehicleRepository{base: newBase(db, models.TableVehicles, now, true)}
}

// FindAll lists vehicles ordered by plate.
func (r *VehicleRepository) FindAll(ctx context.Context, filter VehicleFilter) ([]models.Vehicle, error) {
	q := store.From(r.table).OrderBy("plate", false)
	if len(filter.Status) > 0 {
		q = q.Where(store.In("status", filter.Status))
	}
	return list[models.Vehicle](ctx, r.db, q)
}

func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*models.Vehicle, error) {
	return one[models.Vehicle](ctx, r.db, store.From(r.table).Where(store.Eq("_id", id)))
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	if err := checkFuel("create", vehicle.CurrentFuelLevel, vehicle.TankCapacity); err != nil {
		return nil, err
	}
	if vehicle.ID == "" {
		vehicle.ID = NewID()
	}
	now := r.now()
	vehicle.CreatedAt, vehicle.UpdatedAt = now, now
	if err := r.insert(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (r *VehicleRepository) Update(ctx context.Context, id string, update models.VehicleUpdate) (*models.Vehicle, error) {
	if update.CurrentFuelLevel != nil || update.TankCapacity != nil {
		current, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, notFound("update", r.table, id)
		}
		level, capacity := current.CurrentFuelLevel, current.TankCapacity
		if update.CurrentFuelLevel != nil {
			level = update.CurrentFuelLevel
		}
		if update.TankCapacity != nil {
			capacity = update.TankCapacity
		}
		if err := checkFuel("update", level, capacity); err != nil {
			return nil, err
		}
	}
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	return r.mustFind(ctx, "update", id)
}

func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

func (r *VehicleRepository) mustFind(ctx context.Context, op, id string) (*models.Vehicle, error) {
	v, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, notFound(op, r.table, id)
	}
	return v, nil
}

func checkFuel(op string, level, capacity *float64) error {
	if level == nil || capacity == nil {
		return nil
	}
	if *level < 0 || *level > *capacity {
		return store.Errorf(store.KindValidation, op, models.TableVehicles,
			"current fuel level %.1f outside tank capacity %.1f", *level, *capacity)
	}
	return nil
}

func vehicleRefs(ctx context.Context, db store.Store, ids []string) (map[string]*models.VehicleRef, error) {
	rows, err := byIDs(ctx, db, models.TableVehicles, ids, func(v models.Vehicle) string { return v.ID })
	if err != nil {
		return nil, err
	}
	out := make(map[string]*models.VehicleRef, len(rows))
	for id, v := range rows {
		out[id] = v.Ref()
	}
	return out, nil
}

func lookupVehicle(refs map[string]*models.VehicleRef, id *string) *models.VehicleRef {
	if id == nil {
		return nil
	}
	return refs[*id]
}
