package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

var activeCargoStatuses = []models.CargoStatus{models.CargoStatusLoaded, models.CargoStatusInTransit}

type CargoRepository struct {
	base
}

func NewCargoRepository(db store.Store, now func() time.Time) *CargoRepository {
	return &CargoRepository{base: newBase(db, models.TableCargos, now, true)}
}

// FindAll lists cargos newest first with their route, vehicle plate and
// driver name.
func (r *CargoRepository) FindAll(ctx context.Context) ([]models.Cargo, error) {
	return r.findJoined(ctx, store.From(r.table).OrderBy("created_at", true))
}

func (r *CargoRepository) FindActive(ctx context.Context) ([]models.Cargo, error) {
	q := store.From(r.table).
		Where(store.In("status", activeCargoStatuses)).
		OrderBy("created_at", true)
	return r.findJoined(ctx, q)
}

func (r *CargoRepository) FindByID(ctx context.Context, id string) (*models.Cargo, error) {
	cargos, err := r.findJoined(ctx, store.From(r.table).Where(store.Eq("_id", id)))
	if err != nil || len(cargos) == 0 {
		return nil, err
	}
	return &cargos[0], nil
}

func (r *CargoRepository) Create(ctx context.Context, cargo *models.Cargo) (*models.Cargo, error) {
	if err := checkTemperature("create", cargo.MinTemperature, cargo.MaxTemperature); err != nil {
		return nil, err
	}
	if cargo.ID == "" {
		cargo.ID = NewID()
	}
	now := r.now()
	cargo.CreatedAt, cargo.UpdatedAt = now, now
	if err := r.insert(ctx, cargo); err != nil {
		return nil, err
	}
	return cargo, nil
}

func (r *CargoRepository) Update(ctx context.Context, id string, update models.CargoUpdate) (*models.Cargo, error) {
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	cargo, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cargo == nil {
		return nil, notFound("update", r.table, id)
	}
	return cargo, nil
}

func (r *CargoRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

// Conditions returns the 100 newest hold samples of a cargo.
func (r *CargoRepository) Conditions(ctx context.Context, cargoID string) ([]models.CargoCondition, error) {
	q := store.From(models.TableCargoConditions).
		Where(store.Eq("cargo_id", cargoID)).
		OrderBy("recorded_at", true).
		Take(100)
	return list[models.CargoCondition](ctx, r.db, q)
}

func (r *CargoRepository) RecordCondition(ctx context.Context, c *models.CargoCondition) (*models.CargoCondition, error) {
	if c.ID == "" {
		c.ID = NewID()
	}
	if c.RecordedAt.IsZero() {
		c.RecordedAt = r.now()
	}
	if err := checkStruct("create", models.TableCargoConditions, c); err != nil {
		return nil, err
	}
	if err := r.db.Insert(ctx, models.TableCargoConditions, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CargoRepository) findJoined(ctx context.Context, q store.Query) ([]models.Cargo, error) {
	cargos, err := list[models.Cargo](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var routeIDs idSet
	for _, c := range cargos {
		routeIDs.add(c.RouteID)
	}
	if len(routeIDs.ids) == 0 {
		return cargos, nil
	}
	routes, err := list[models.Route](ctx, r.db, store.From(models.TableRoutes).Where(store.In("_id", routeIDs.ids)))
	if err != nil {
		return nil, err
	}
	if err := joinRoutes(ctx, r.db, routes); err != nil {
		return nil, err
	}
	refs := make(map[string]*models.RouteRef, len(routes))
	for _, route := range routes {
		refs[route.ID] = route.Ref()
	}
	for i := range cargos {
		if cargos[i].RouteID != nil {
			cargos[i].Route = refs[*cargos[i].RouteID]
		}
	}
	return cargos, nil
}

func checkTemperature(op string, min, max *float64) error {
	if min != nil && max != nil && *min > *max {
		return store.Errorf(store.KindValidation, op, models.TableCargos,
			"minimum temperature %.1f above maximum %.1f", *min, *max)
	}
	return nil
}
