package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

// OnTimeSample is how many completed routes feed the on-time rate.
const OnTimeSample = 100

var activeRouteStatuses = []models.RouteStatus{models.RouteStatusInProgress, models.RouteStatusPlanned}

type RouteFilter struct {
	Status []models.RouteStatus
}

type RouteRepository struct {
	base
}

func NewRouteRepository(db store.Store, now func() time.Time) *RouteRepository {
	return &RouteRepository{base: newBase(db, models.TableRoutes, now, true)}
}

// FindAll lists routes newest first with their vehicle and driver.
func (r *RouteRepository) FindAll(ctx context.Context, filter RouteFilter) ([]models.Route, error) {
	q := store.From(r.table).OrderBy("created_at", true)
	if len(filter.Status) > 0 {
		q = q.Where(store.In("status", filter.Status))
	}
	return r.findJoined(ctx, q)
}

// FindActive lists planned and in-progress routes by priority.
func (r *RouteRepository) FindActive(ctx context.Context) ([]models.Route, error) {
	q := store.From(r.table).
		Where(store.In("status", activeRouteStatuses)).
		OrderBy("priority", true)
	return r.findJoined(ctx, q)
}

// FindCompleted returns the most recently finished routes that carry an
// actual end time, bounded by limit.
func (r *RouteRepository) FindCompleted(ctx context.Context, limit int) ([]models.Route, error) {
	q := store.From(r.table).
		Where(store.Eq("status", models.RouteStatusCompleted), store.NotNull("actual_end")).
		OrderBy("actual_end", true).
		Take(limit)
	return list[models.Route](ctx, r.db, q)
}

// Recent returns the most recently touched routes.
func (r *RouteRepository) Recent(ctx context.Context, limit int) ([]models.Route, error) {
	q := store.From(r.table).OrderBy("updated_at", true).Take(limit)
	return r.findJoined(ctx, q)
}

// FindByID returns the route with its vehicle, driver and ordered stops.
func (r *RouteRepository) FindByID(ctx context.Context, id string) (*models.Route, error) {
	routes, err := r.findJoined(ctx, store.From(r.table).Where(store.Eq("_id", id)))
	if err != nil || len(routes) == 0 {
		return nil, err
	}
	route := routes[0]
	stops, err := r.Stops(ctx, id)
	if err != nil {
		return nil, err
	}
	route.Stops = stops
	return &route, nil
}

func (r *RouteRepository) Stops(ctx context.Context, routeID string) ([]models.RouteStop, error) {
	q := store.From(models.TableRouteStops).
		Where(store.Eq("route_id", routeID)).
		OrderBy("stop_order", false)
	return list[models.RouteStop](ctx, r.db, q)
}

func (r *RouteRepository) AddStop(ctx context.Context, stop *models.RouteStop) (*models.RouteStop, error) {
	exists, err := r.byID(ctx, stop.RouteID, &models.Route{})
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.Errorf(store.KindValidation, "create", models.TableRouteStops, "route %s does not exist", stop.RouteID)
	}
	if stop.ID == "" {
		stop.ID = NewID()
	}
	stop.CreatedAt = r.now()
	if err := checkStruct("create", models.TableRouteStops, stop); err != nil {
		return nil, err
	}
	if err := r.db.Insert(ctx, models.TableRouteStops, stop); err != nil {
		return nil, err
	}
	return stop, nil
}

func (r *RouteRepository) Create(ctx context.Context, route *models.Route) (*models.Route, error) {
	if route.ID == "" {
		route.ID = NewID()
	}
	now := r.now()
	route.CreatedAt, route.UpdatedAt = now, now
	if err := r.insert(ctx, route); err != nil {
		return nil, err
	}
	return route, nil
}

func (r *RouteRepository) Update(ctx context.Context, id string, update models.RouteUpdate) (*models.Route, error) {
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	route, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, notFound("update", r.table, id)
	}
	return route, nil
}

func (r *RouteRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

func (r *RouteRepository) findJoined(ctx context.Context, q store.Query) ([]models.Route, error) {
	routes, err := list[models.Route](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	if err := joinRoutes(ctx, r.db, routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func joinRoutes(ctx context.Context, db store.Store, routes []models.Route) error {
	var vehicles, drivers idSet
	for _, route := range routes {
		vehicles.add(route.VehicleID)
		drivers.add(route.DriverID)
	}
	vrefs, err := vehicleRefs(ctx, db, vehicles.ids)
	if err != nil {
		return err
	}
	drefs, err := driverRefs(ctx, db, drivers.ids)
	if err != nil {
		return err
	}
	for i := range routes {
		routes[i].Vehicle = lookupVehicle(vrefs, routes[i].VehicleID)
		routes[i].Driver = lookupDriver(drefs, routes[i].DriverID)
	}
	return nil
}
