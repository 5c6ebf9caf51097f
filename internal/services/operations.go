package services

import (
	"context"

	"logitrack/internal/models"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

func (s *Service) Alerts(ctx context.Context) cache.Result[[]models.Alert] {
	return cache.Query(ctx, s.cache, cache.K(QueryAlerts, "all"), s.repos.Alerts.FindAll, defaults)
}

func (s *Service) UnreadAlerts(ctx context.Context) cache.Result[[]models.Alert] {
	return cache.Query(ctx, s.cache, cache.K(QueryAlerts, "unread"), s.repos.Alerts.FindUnread, defaults)
}

func (s *Service) CriticalAlerts(ctx context.Context) cache.Result[[]models.Alert] {
	return cache.Query(ctx, s.cache, cache.K(QueryAlerts, "critical"), s.repos.Alerts.FindCriticalUnresolved, defaults)
}

func (s *Service) Alert(ctx context.Context, id string) cache.Result[*models.Alert] {
	return cache.Query(ctx, s.cache, byIDKey(QueryAlerts, id), func(ctx context.Context) (*models.Alert, error) {
		return s.repos.Alerts.FindByID(ctx, id)
	}, defaults)
}

func (s *Service) CreateAlert(ctx context.Context, a *models.Alert) (*models.Alert, error) {
	created, err := s.repos.Alerts.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableAlerts, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateAlert(ctx context.Context, id string, update models.AlertUpdate) (*models.Alert, error) {
	return s.alertUpdated(id)(s.repos.Alerts.Update(ctx, id, update))
}

func (s *Service) MarkAlertRead(ctx context.Context, id string) (*models.Alert, error) {
	return s.alertUpdated(id)(s.repos.Alerts.MarkRead(ctx, id))
}

func (s *Service) ResolveAlert(ctx context.Context, id, resolvedBy string) (*models.Alert, error) {
	return s.alertUpdated(id)(s.repos.Alerts.Resolve(ctx, id, resolvedBy))
}

func (s *Service) alertUpdated(id string) func(*models.Alert, error) (*models.Alert, error) {
	return func(a *models.Alert, err error) (*models.Alert, error) {
		if err != nil {
			return nil, err
		}
		s.changed(models.TableAlerts, store.EventUpdate, id, a)
		return a, nil
	}
}

func (s *Service) MarkAllAlertsRead(ctx context.Context) (int64, error) {
	n, err := s.repos.Alerts.MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.changed(models.TableAlerts, store.EventUpdate, "", nil)
	}
	return n, nil
}

func (s *Service) DeleteAlert(ctx context.Context, id string) error {
	if err := s.repos.Alerts.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableAlerts, store.EventDelete, id, nil)
	return nil
}

func (s *Service) Cargos(ctx context.Context) cache.Result[[]models.Cargo] {
	return cache.Query(ctx, s.cache, cache.K(QueryCargos, "all"), s.repos.Cargos.FindAll, defaults)
}

func (s *Service) ActiveCargos(ctx context.Context) cache.Result[[]models.Cargo] {
	return cache.Query(ctx, s.cache, cache.K(QueryActiveCargos), s.repos.Cargos.FindActive, defaults)
}

func (s *Service) Cargo(ctx context.Context, id string) cache.Result[*models.Cargo] {
	return cache.Query(ctx, s.cache, byIDKey(QueryCargos, id), func(ctx context.Context) (*models.Cargo, error) {
		return s.repos.Cargos.FindByID(ctx, id)
	}, defaults)
}

func (s *Service) CargoConditions(ctx context.Context, cargoID string) cache.Result[[]models.CargoCondition] {
	return cache.Query(ctx, s.cache, cache.K(QueryCargoConditions, cargoID), func(ctx context.Context) ([]models.CargoCondition, error) {
		return s.repos.Cargos.Conditions(ctx, cargoID)
	}, liveOptions)
}

func (s *Service) CreateCargo(ctx context.Context, c *models.Cargo) (*models.Cargo, error) {
	created, err := s.repos.Cargos.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableCargos, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateCargo(ctx context.Context, id string, update models.CargoUpdate) (*models.Cargo, error) {
	updated, err := s.repos.Cargos.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableCargos, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteCargo(ctx context.Context, id string) error {
	if err := s.repos.Cargos.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableCargos, store.EventDelete, id, nil)
	return nil
}

func (s *Service) RecordCargoCondition(ctx context.Context, c *models.CargoCondition) (*models.CargoCondition, error) {
	created, err := s.repos.Cargos.RecordCondition(ctx, c)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableCargoConditions, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) FuelRecords(ctx context.Context) cache.Result[[]models.FuelRecord] {
	return cache.Query(ctx, s.cache, cache.K(QueryFuelRecords, "all"), s.repos.Fuel.FindAll, defaults)
}

func (s *Service) VehicleFuelRecords(ctx context.Context, vehicleID string) cache.Result[[]models.FuelRecord] {
	return cache.Query(ctx, s.cache, cache.K(QueryFuelRecords, "vehicle", vehicleID), func(ctx context.Context) ([]models.FuelRecord, error) {
		return s.repos.Fuel.FindByVehicle(ctx, vehicleID)
	}, defaults)
}

func (s *Service) FuelAnalysis(ctx context.Context) cache.Result[[]models.FuelAnalysis] {
	return cache.Query(ctx, s.cache, cache.K(QueryFuelAnalysis), s.repos.Fuel.Analysis, defaults)
}

func (s *Service) CreateFuelRecord(ctx context.Context, r *models.FuelRecord) (*models.FuelRecord, error) {
	created, err := s.repos.Fuel.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableFuelRecords, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateFuelRecord(ctx context.Context, id string, update models.FuelRecordUpdate) (*models.FuelRecord, error) {
	updated, err := s.repos.Fuel.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableFuelRecords, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) DeleteFuelRecord(ctx context.Context, id string) error {
	if err := s.repos.Fuel.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableFuelRecords, store.EventDelete, id, nil)
	return nil
}

func (s *Service) Maintenance(ctx context.Context) cache.Result[[]models.MaintenanceRecord] {
	return cache.Query(ctx, s.cache, cache.K(QueryMaintenance, "all"), s.repos.Maintenance.FindAll, defaults)
}

func (s *Service) PendingMaintenance(ctx context.Context) cache.Result[[]models.MaintenanceRecord] {
	return cache.Query(ctx, s.cache, cache.K(QueryPendingMaintenance), s.repos.Maintenance.FindPending, defaults)
}

func (s *Service) VehicleMaintenance(ctx context.Context, vehicleID string) cache.Result[[]models.MaintenanceRecord] {
	return cache.Query(ctx, s.cache, cache.K(QueryMaintenance, "vehicle", vehicleID), func(ctx context.Context) ([]models.MaintenanceRecord, error) {
		return s.repos.Maintenance.FindByVehicle(ctx, vehicleID)
	}, defaults)
}

func (s *Service) MaintenanceRecord(ctx context.Context, id string) cache.Result[*models.MaintenanceRecord] {
	return cache.Query(ctx, s.cache, byIDKey(QueryMaintenance, id), func(ctx context.Context) (*models.MaintenanceRecord, error) {
		return s.repos.Maintenance.FindByID(ctx, id)
	}, defaults)
}

func (s *Service) CreateMaintenance(ctx context.Context, r *models.MaintenanceRecord) (*models.MaintenanceRecord, error) {
	created, err := s.repos.Maintenance.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableMaintenance, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateMaintenance(ctx context.Context, id string, update models.MaintenanceUpdate) (*models.MaintenanceRecord, error) {
	updated, err := s.repos.Maintenance.Update(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableMaintenance, store.EventUpdate, id, updated)
	return updated, nil
}

func (s *Service) CompleteMaintenance(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	done, err := s.repos.Maintenance.Complete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableMaintenance, store.EventUpdate, id, done)
	return done, nil
}

func (s *Service) DeleteMaintenance(ctx context.Context, id string) error {
	if err := s.repos.Maintenance.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(models.TableMaintenance, store.EventDelete, id, nil)
	return nil
}

func (s *Service) SpeedViolations(ctx context.Context) cache.Result[[]models.SpeedViolation] {
	return cache.Query(ctx, s.cache, cache.K(QuerySpeedViolations), s.repos.Safety.SpeedViolations, defaults)
}

func (s *Service) DrivingEvents(ctx context.Context) cache.Result[[]models.DrivingEvent] {
	return cache.Query(ctx, s.cache, cache.K(QueryDrivingEvents), s.repos.Safety.DrivingEvents, defaults)
}
