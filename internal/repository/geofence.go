package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type GeofenceRepository struct {
	base
}

func NewGeofenceRepository(db store.Store, now func() time.Time) *GeofenceRepository {
	return &GeofenceRepository{base: newBase(db, models.TableGeofences, now, true)}
}

func (r *GeofenceRepository) FindAll(ctx context.Context) ([]models.Geofence, error) {
	return list[models.Geofence](ctx, r.db, store.From(r.table).OrderBy("created_at", true))
}

func (r *GeofenceRepository) FindActive(ctx context.Context) ([]models.Geofence, error) {
	q := store.From(r.table).Where(store.Eq("is_active", true)).OrderBy("created_at", true)
	return list[models.Geofence](ctx, r.db, q)
}

func (r *GeofenceRepository) FindByID(ctx context.Context, id string) (*models.Geofence, error) {
	return one[models.Geofence](ctx, r.db, store.From(r.table).Where(store.Eq("_id", id)))
}

func (r *GeofenceRepository) Create(ctx context.Context, g *models.Geofence) (*models.Geofence, error) {
	if g.GeofenceType == "circle" && g.Radius == nil {
		return nil, store.Errorf(store.KindValidation, "create", r.table, "circle geofence requires a radius")
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	now := r.now()
	g.CreatedAt, g.UpdatedAt = now, now
	if err := r.insert(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GeofenceRepository) Update(ctx context.Context, id string, update models.GeofenceUpdate) (*models.Geofence, error) {
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	g, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, notFound("update", r.table, id)
	}
	return g, nil
}

func (r *GeofenceRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

// Events returns the 100 newest crossings, optionally for one geofence, with
// the geofence and vehicle resolved.
func (r *GeofenceRepository) Events(ctx context.Context, geofenceID string) ([]models.GeofenceEvent, error) {
	q := store.From(models.TableGeofenceEvents).OrderBy("occurred_at", true).Take(100)
	if geofenceID != "" {
		q = q.Where(store.Eq("geofence_id", geofenceID))
	}
	events, err := list[models.GeofenceEvent](ctx, r.db, q)
	if err != nil {
		return nil, err
	}

	var fences, vehicles idSet
	for _, e := range events {
		fences.addValue(e.GeofenceID)
		vehicles.addValue(e.VehicleID)
	}
	frows, err := byIDs(ctx, r.db, models.TableGeofences, fences.ids, func(g models.Geofence) string { return g.ID })
	if err != nil {
		return nil, err
	}
	vrefs, err := vehicleRefs(ctx, r.db, vehicles.ids)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if g, ok := frows[events[i].GeofenceID]; ok {
			events[i].Geofence = g.Ref()
		}
		events[i].Vehicle = vrefs[events[i].VehicleID]
	}
	return events, nil
}

func (r *GeofenceRepository) RecordEvent(ctx context.Context, e *models.GeofenceEvent) (*models.GeofenceEvent, error) {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now()
	}
	if err := checkStruct("create", models.TableGeofenceEvents, e); err != nil {
		return nil, err
	}
	if err := r.db.Insert(ctx, models.TableGeofenceEvents, e); err != nil {
		return nil, err
	}
	return e, nil
}
