package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

// TelemetryRepository is append only.
type TelemetryRepository struct {
	base
}

func NewTelemetryRepository(db store.Store, now func() time.Time) *TelemetryRepository {
	return &TelemetryRepository{base: newBase(db, models.TableTelemetry, now, false)}
}

// Latest returns the newest sample of each vehicle seen among the last 100.
func (r *TelemetryRepository) Latest(ctx context.Context) ([]models.TelemetryData, error) {
	rows, err := list[models.TelemetryData](ctx, r.db, store.From(r.table).OrderBy("recorded_at", true).Take(100))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, row := range rows {
		if seen[row.VehicleID] {
			continue
		}
		seen[row.VehicleID] = true
		out = append(out, row)
	}
	return out, nil
}

func (r *TelemetryRepository) ByVehicle(ctx context.Context, vehicleID string, limit int) ([]models.TelemetryData, error) {
	q := store.From(r.table).
		Where(store.Eq("vehicle_id", vehicleID)).
		OrderBy("recorded_at", true).
		Take(limit)
	return list[models.TelemetryData](ctx, r.db, q)
}

// History returns the samples of a vehicle over the trailing window, oldest first.
func (r *TelemetryRepository) History(ctx context.Context, vehicleID string, window time.Duration) ([]models.TelemetryData, error) {
	q := store.From(r.table).
		Where(store.Eq("vehicle_id", vehicleID), store.Gte("recorded_at", r.now().Add(-window))).
		OrderBy("recorded_at", false)
	return list[models.TelemetryData](ctx, r.db, q)
}

// Since returns every sample recorded at or after since, oldest first.
func (r *TelemetryRepository) Since(ctx context.Context, since time.Time) ([]models.TelemetryData, error) {
	q := store.From(r.table).Where(store.Gte("recorded_at", since)).OrderBy("recorded_at", false)
	return list[models.TelemetryData](ctx, r.db, q)
}

func (r *TelemetryRepository) Record(ctx context.Context, sample *models.TelemetryData) (*models.TelemetryData, error) {
	if sample.ID == "" {
		sample.ID = NewID()
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = r.now()
	}
	if err := r.insert(ctx, sample); err != nil {
		return nil, err
	}
	return sample, nil
}
