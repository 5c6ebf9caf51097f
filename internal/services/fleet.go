package services

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/repository"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

// DefaultTelemetryLimit bounds per-vehicle telemetry reads without a limit.
const DefaultTelemetryLimit = 50

func (s *Service) Vehicles(ctx context.Context, filter repository.VehicleFilter) cache.Result[[]models.Vehicle] {
	return cache.Query(ctx, s.cache, filterKey(QueryVehicles, filter.Status), func(ctx context.Context) ([]models.Vehicle, error) {
		return s.repos.Vehicles.FindAll(ctx, filter)
	}, defaults)
}

func (s *Service) Vehicle(ctx context.Context, id string) cache.Result[*models.Vehicle] {
	return cache.Query(ctx, s.cache, byIDKey(QueryVehicles, id), func(ctx context.Context) (*models.Vehicle, error) {
		return s.repos.Vehicles.FindByID(ctx, id)
	}, defaults)
}

func (s *Service) CreateVehicle(ctx context.Context, v *models.Vehicle) (*models.Vehicle, error) {
	created, err := s.repos.Vehicles.Create(ctx, v)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableVehicles, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateVehicle(ctx context.Context, id string, update models.VehicleUpdate) (*models.Vehicle, error) {
	updated, err := s.repos.Vehicles.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableVehicles, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	if err := s.repos.Vehicles.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableVehicles, store.EventDelete, id, nil)
	return nil
}

func (s *Service) Drivers(ctx context.Context, filter repository.DriverFilter) cache.Result[[]models.Driver] {
	return cache.Query(ctx, s.cache, filterKey(QueryDrivers, filter.Status), func(ctx context.Context) ([]models.Driver, error) {
		return s.repos.Drivers.FindAll(ctx, filter)
	}, defaults)
}

func (s *Service) Driver(ctx context.Context, id string) cache.Result[*models.Driver] {
	return cache.Query(ctx, s.cache, byIDKey(QueryDrivers, id), func(ctx context.Context) (*models.Driver, error) {
		return s.repos.Drivers.FindByID(ctx, id)
	}, defaults)
}

func (s *Service) DriverPerformance(ctx context.Context, driverID string) cache.Result[[]models.DriverPerformance] {
	return cache.Query(ctx, s.cache, cache.K(QueryDriverPerformance, driverID), func(ctx context.Context) ([]models.DriverPerformance, error) {
		return s.repos.Drivers.Performance(ctx, driverID)
	}, defaults)
}

func (s *Service) CreateDriver(ctx context.Context, d *models.Driver) (*models.Driver, error) {
	created, err := s.repos.Drivers.Create(ctx, d)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableDrivers, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateDriver(ctx context.Context, id string, update models.DriverUpdate) (*models.Driver, error) {
	updated, err := s.repos.Drivers.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableDrivers, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteDriver(ctx context.Context, id string) error {
	if err := s.repos.Drivers.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableDrivers, store.EventDelete, id, nil)
	return nil
}

func (s *Service) Routes(ctx context.Context, filter repository.RouteFilter) cache.Result[[]models.Route] {
	return cache.Query(ctx, s.cache, filterKey(QueryRoutes, filter.Status), func(ctx context.Context) ([]models.Route, error) {
		return s.repos.Routes.FindAll(ctx, filter)
	}, defaults)
}

func (s *Service) ActiveRoutes(ctx context.Context) cache.Result[[]models.Route] {
	return cache.Query(ctx, s.cache, cache.K(QueryActiveRoutes), s.repos.Routes.FindActive, defaults)
}

// Route returns one route with its vehicle, driver and stops.
func (s *Service) Route(ctx context.Context, id string) cache.Result[*models.Route] {
	return cache.Query(ctx, s.cache, byIDKey(QueryRoutes, id), func(ctx context.Context) (*models.Route, error) {
		return s.repos.Routes.FindByID(ctx, id)
	}, defaults)
}

func (s *Service) CreateRoute(ctx context.Context, r *models.Route) (*models.Route, error) {
	created, err := s.repos.Routes.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableRoutes, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateRoute(ctx context.Context, id string, update models.RouteUpdate) (*models.Route, error) {
	updated, err := s.repos.Routes.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableRoutes, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteRoute(ctx context.Context, id string) error {
	if err := s.repos.Routes.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableRoutes, store.EventDelete, id, nil)
	return nil
}

func (s *Service) AddRouteStop(ctx context.Context, stop *models.RouteStop) (*models.RouteStop, error) {
	created, err := s.repos.Routes.AddStop(ctx, stop)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableRouteStops, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) LatestTelemetry(ctx context.Context) cache.Result[[]models.TelemetryData] {
	return cache.Query(ctx, s.cache, TelemetryLatestKey(), s.repos.Telemetry.Latest, liveOptions)
}

func (s *Service) VehicleTelemetry(ctx context.Context, vehicleID string, limit int) cache.Result[[]models.TelemetryData] {
	if limit <= 0 {
		limit = DefaultTelemetryLimit
	}
	return cache.Query(ctx, s.cache, telemetryRecentKey(vehicleID, limit), func(ctx context.Context) ([]models.TelemetryData, error) {
		return s.repos.Telemetry.ByVehicle(ctx, vehicleID, limit)
	}, liveOptions)
}

// TelemetryHistory returns the trailing hours of samples, oldest first.
func (s *Service) TelemetryHistory(ctx context.Context, vehicleID string, hours int) cache.Result[[]models.TelemetryData] {
	if hours <= 0 {
		hours = 24
	}
	return cache.Query(ctx, s.cache, telemetryHistoryKey(vehicleID, hours), func(ctx context.Context) ([]models.TelemetryData, error) {
		return s.repos.Telemetry.History(ctx, vehicleID, time.Duration(hours)*time.Hour)
	}, defaults)
}

func (s *Service) RecordTelemetry(ctx context.Context, sample *models.TelemetryData) (*models.TelemetryData, error) {
	created, err := s.repos.Telemetry.Record(ctx, sample)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableTelemetry, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) Geofences(ctx context.Context) cache.Result[[]models.Geofence] {
	return cache.Query(ctx, s.cache, cache.K(QueryGeofences), s.repos.Geofences.FindAll, defaults)
}

func (s *Service) ActiveGeofences(ctx context.Context) cache.Result[[]models.Geofence] {
	return cache.Query(ctx, s.cache, cache.K(QueryActiveGeofences), s.repos.Geofences.FindActive, defaults)
}

func (s *Service) Geofence(ctx context.Context, id string) cache.Result[*models.Geofence] {
	return cache.Query(ctx, s.cache, byIDKey(QueryGeofences, id), func(ctx context.Context) (*models.Geofence, error) {
		return s.repos.Geofences.FindByID(ctx, id)
	}, defaults)
}

// GeofenceEvents lists events of one geofence, or of all when geofenceID is empty.
func (s *Service) GeofenceEvents(ctx context.Context, geofenceID string) cache.Result[[]models.GeofenceEvent] {
	key := cache.K(QueryGeofenceEvents, "all")
	if geofenceID != "" {
		key = cache.K(QueryGeofenceEvents, geofenceID)
	}
	return cache.Query(ctx, s.cache, key, func(ctx context.Context) ([]models.GeofenceEvent, error) {
		return s.repos.Geofences.Events(ctx, geofenceID)
	}, defaults)
}

func (s *Service) CreateGeofence(ctx context.Context, g *models.Geofence) (*models.Geofence, error) {
	created, err := s.repos.Geofences.Create(ctx, g)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableGeofences, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateGeofence(ctx context.Context, id string, update models.GeofenceUpdate) (*models.Geofence, error) {
	updated, err := s.repos.Geofences.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableGeofences, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteGeofence(ctx context.Context, id string) error {
	if err := s.repos.Geofences.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableGeofences, store.EventDelete, id, nil)
	return nil
}

func (s *Service) RecordGeofenceEvent(ctx context.Context, e *models.GeofenceEvent) (*models.GeofenceEvent, error) {
	created, err := s.repos.Geofences.RecordEvent(ctx, e)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableGeofenceEvents, store.EventInsert, created.ID, created)
	return created, nil
}
