package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type FuelRepository struct {
	base
}

func NewFuelRepository(db store.Store, now func() time.Time) *FuelRepository {
	return &FuelRepository{base: newBase(db, models.TableFuelRecords, now, false)}
}

// FindAll returns the 100 newest fuel records with vehicle and driver.
func (r *FuelRepository) FindAll(ctx context.Context) ([]models.FuelRecord, error) {
	return r.findJoined(ctx, store.From(r.table).OrderBy("recorded_at", true).Take(100))
}

func (r *FuelRepository) FindByVehicle(ctx context.Context, vehicleID string) ([]models.FuelRecord, error) {
	q := store.From(r.table).
		Where(store.Eq("vehicle_id", vehicleID)).
		OrderBy("recorded_at", true).
		Take(50)
	return list[models.FuelRecord](ctx, r.db, q)
}

// FindSince returns every record at or after since, unjoined.
func (r *FuelRepository) FindSince(ctx context.Context, since time.Time) ([]models.FuelRecord, error) {
	q := store.From(r.table).Where(store.Gte("recorded_at", since)).OrderBy("recorded_at", false)
	return list[models.FuelRecord](ctx, r.db, q)
}

func (r *FuelRepository) FindByID(ctx context.Context, id string) (*models.FuelRecord, error) {
	records, err := r.findJoined(ctx, store.From(r.table).Where(store.Eq("_id", id)))
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return &records[0], nil
}

// Analysis returns the 20 latest consumption summaries with their vehicle.
func (r *FuelRepository) Analysis(ctx context.Context) ([]models.FuelAnalysis, error) {
	q := store.From(models.TableFuelAnalysis).OrderBy("period_end", true).Take(20)
	rows, err := list[models.FuelAnalysis](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var vehicles idSet
	for _, a := range rows {
		vehicles.addValue(a.VehicleID)
	}
	refs, err := vehicleRefs(ctx, r.db, vehicles.ids)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Vehicle = refs[rows[i].VehicleID]
	}
	return rows, nil
}

func (r *FuelRepository) Create(ctx context.Context, record *models.FuelRecord) (*models.FuelRecord, error) {
	if record.ID == "" {
		record.ID = NewID()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = r.now()
	}
	if record.TotalCost == 0 && record.UnitPrice > 0 {
		record.TotalCost = record.Quantity * record.UnitPrice
	}
	if err := r.insert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *FuelRepository) Update(ctx context.Context, id string, update models.FuelRecordUpdate) (*models.FuelRecord, error) {
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

func (r *FuelRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

func (r *FuelRepository) findJoined(ctx context.Context, q store.Query) ([]models.FuelRecord, error) {
	records, err := list[models.FuelRecord](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var vehicles, drivers idSet
	for _, rec := range records {
		vehicles.addValue(rec.VehicleID)
		drivers.add(rec.DriverID)
	}
	vrefs, err := vehicleRefs(ctx, r.db, vehicles.ids)
	if err != nil {
		return nil, err
	}
	drefs, err := driverRefs(ctx, r.db, drivers.ids)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Vehicle = vrefs[records[i].VehicleID]
		records[i].Driver = lookupDriver(drefs, records[i].DriverID)
	}
	return records, nil
}
