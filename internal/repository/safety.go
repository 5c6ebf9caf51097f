package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

// SafetyRepository reads speed violations and driving events. Both are
// written upstream and never edited here.
type SafetyRepository struct {
	base
}

func NewSafetyRepository(db store.Store, now func() time.Time) *SafetyRepository {
	return &SafetyRepository{base: newBase(db, models.TableDrivingEvents, now, false)}
}

func (r *SafetyRepository) SpeedViolations(ctx context.Context) ([]models.SpeedViolation, error) {
	q := store.From(models.TableSpeedViolations).OrderBy("occurred_at", true).Take(50)
	rows, err := list[models.SpeedViolation](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var vehicles, drivers idSet
	for _, v := range rows {
		vehicles.addValue(v.VehicleID)
		drivers.add(v.DriverID)
	}
	vrefs, drefs, err := r.refs(ctx, vehicles.ids, drivers.ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Vehicle = vrefs[rows[i].VehicleID]
		rows[i].Driver = lookupDriver(drefs, rows[i].DriverID)
	}
	return rows, nil
}

func (r *SafetyRepository) DrivingEvents(ctx context.Context) ([]models.DrivingEvent, error) {
	q := store.From(models.TableDrivingEvents).OrderBy("occurred_at", true).Take(50)
	rows, err := list[models.DrivingEvent](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var vehicles, drivers idSet
	for _, e := range rows {
		vehicles.addValue(e.VehicleID)
		drivers.add(e.DriverID)
	}
	vrefs, drefs, err := r.refs(ctx, vehicles.ids, drivers.ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Vehicle = vrefs[rows[i].VehicleID]
		rows[i].Driver = lookupDriver(drefs, rows[i].DriverID)
	}
	return rows, nil
}

// CountEventsSince counts driving events recorded at or after since.
func (r *SafetyRepository) CountEventsSince(ctx context.Context, since time.Time) (int64, error) {
	return r.db.Count(ctx, store.From(models.TableDrivingEvents).Where(store.Gte("occurred_at", since)))
}

func (r *SafetyRepository) refs(ctx context.Context, vehicleIDs, driverIDs []string) (map[string]*models.VehicleRef, map[string]*models.DriverRef, error) {
	vrefs, err := vehicleRefs(ctx, r.db, vehicleIDs)
	if err != nil {
		return nil, nil, err
	}
	drefs, err := driverRefs(ctx, r.db, driverIDs)
	if err != nil {
		return nil, nil, err
	}
	return vrefs, drefs, nil
}
