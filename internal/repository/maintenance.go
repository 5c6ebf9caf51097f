package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

var pendingMaintenance = []models.MaintenanceStatus{models.MaintenanceStatusPending, models.MaintenanceStatusInProgress}

type MaintenanceRepository struct {
	base
}

func NewMaintenanceRepository(db store.Store, now func() time.Time) *MaintenanceRepository {
	return &MaintenanceRepository{base: newBase(db, models.TableMaintenance, now, true)}
}

// FindAll lists records by scheduled date with their vehicle.
func (r *MaintenanceRepository) FindAll(ctx context.Context) ([]models.MaintenanceRecord, error) {
	return r.findJoined(ctx, store.From(r.table).OrderBy("scheduled_date", false))
}

func (r *MaintenanceRepository) FindPending(ctx context.Context) ([]models.MaintenanceRecord, error) {
	q := store.From(r.table).
		Where(store.In("status", pendingMaintenance)).
		OrderBy("scheduled_date", false).
		Take(10)
	return r.findJoined(ctx, q)
}

func (r *MaintenanceRepository) FindByVehicle(ctx context.Context, vehicleID string) ([]models.MaintenanceRecord, error) {
	q := store.From(r.table).
		Where(store.Eq("vehicle_id", vehicleID)).
		OrderBy("scheduled_date", true)
	return list[models.MaintenanceRecord](ctx, r.db, q)
}

func (r *MaintenanceRepository) Recent(ctx context.Context, limit int) ([]models.MaintenanceRecord, error) {
	return r.findJoined(ctx, store.From(r.table).OrderBy("created_at", true).Take(limit))
}

func (r *MaintenanceRepository) FindByID(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	records, err := r.findJoined(ctx, store.From(r.table).Where(store.Eq("_id", id)))
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

func (r *MaintenanceRepository) Create(ctx context.Context, record *models.MaintenanceRecord) (*models.MaintenanceRecord, error) {
	if record.ID == "" {
		record.ID = NewID()
	}
	now := r.now()
	record.CreatedAt, record.UpdatedAt = now, now
	if err := r.insert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *MaintenanceRepository) Update(ctx context.Context, id string, update models.MaintenanceUpdate) (*models.MaintenanceRecord, error) {
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	record, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, notFound("update", r.table, id)
	}
	return record, nil
}

// Complete marks a record completed as of now.
func (r *MaintenanceRepository) Complete(ctx context.Context, id string) (*models.MaintenanceRecord, error) {
	status := models.MaintenanceStatusCompleted
	now := r.now()
	return r.Update(ctx, id, models.MaintenanceUpdate{Status: &status, CompletedDate: &now})
}

func (r *MaintenanceRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

func (r *MaintenanceRepository) findJoined(ctx context.Context, q store.Query) ([]models.MaintenanceRecord, error) {
	records, err := list[models.MaintenanceRecord](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var vehicles idSet
	for _, rec := range records {
		vehicles.addValue(rec.VehicleID)
	}
	refs, err := vehicleRefs(ctx, r.db, vehicles.ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Vehicle = refs[records[i].VehicleID]
	}
	return records, nil
}
