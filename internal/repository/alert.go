package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type AlertRepository struct {
	base
}

func NewAlertRepository(db store.Store, now func() time.Time) *AlertRepository {
	return &AlertRepository{base: newBase(db, models.TableAlerts, now, false)}
}

// FindAll returns the 50 newest alerts with their vehicle and driver.
func (r *AlertRepository) FindAll(ctx context.Context) ([]models.Alert, error) {
	return r.findJoined(ctx, store.From(r.table).OrderBy("created_at", true).Take(50))
}

func (r *AlertRepository) FindUnread(ctx context.Context) ([]models.Alert, error) {
	q := store.From(r.table).
		Where(store.Eq("is_read", false)).
		OrderBy("created_at", true).
		Take(10)
	return r.findJoined(ctx, q)
}

func (r *AlertRepository) FindCriticalUnresolved(ctx context.Context) ([]models.Alert, error) {
	q := store.From(r.table).
		Where(store.Eq("level", models.AlertLevelCritical), store.Eq("is_resolved", false)).
		OrderBy("created_at", true).
		Take(5)
	return r.findJoined(ctx, q)
}

// FindSince returns every alert created at or after since, unjoined.
func (r *AlertRepository) FindSince(ctx context.Context, since time.Time) ([]models.Alert, error) {
	q := store.From(r.table).Where(store.Gte("created_at", since)).OrderBy("created_at", true)
	return list[models.Alert](ctx, r.db, q)
}

func (r *AlertRepository) Recent(ctx context.Context, limit int) ([]models.Alert, error) {
	return r.findJoined(ctx, store.From(r.table).OrderBy("created_at", true).Take(limit))
}

func (r *AlertRepository) FindByID(ctx context.Context, id string) (*models.Alert, error) {
	alerts, err := r.findJoined(ctx, store.From(r.table).Where(store.Eq("_id", id)))
	if err != nil || len(alerts) == 0 {
		return nil, err
	}
	return &alerts[0], nil
}

func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	if alert.ID == "" {
		alert.ID = NewID()
	}
	alert.CreatedAt = r.now()
	if alert.IsResolved {
		// a resolved alert is also read
		alert.IsRead = true
		if alert.ResolvedAt == nil {
			at := alert.CreatedAt
			alert.ResolvedAt = &at
		}
	}
	if err := r.insert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Update edits an alert. Re-opening a resolved alert is rejected, and
// resolving one marks it read.
func (r *AlertRepository) Update(ctx context.Context, id string, update models.AlertUpdate) (*models.Alert, error) {
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, notFound("update", r.table, id)
	}
	if current.IsResolved {
		if update.IsResolved != nil && !*update.IsResolved {
			return nil, store.Errorf(store.KindValidation, "update", r.table, "alert %s is resolved and cannot be reopened", id)
		}
		if update.IsRead != nil && !*update.IsRead {
			return nil, store.Errorf(store.KindValidation, "update", r.table, "resolved alert %s cannot be marked unread", id)
		}
	}
	if update.IsResolved != nil && *update.IsResolved && !current.IsResolved {
		read := true
		update.IsRead = &read
		if update.ResolvedAt == nil {
			at := r.now()
			update.ResolvedAt = &at
		}
	}
	if err := r.patch(ctx, id, update); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *AlertRepository) MarkRead(ctx context.Context, id string) (*models.Alert, error) {
	read := true
	return r.Update(ctx, id, models.AlertUpdate{IsRead: &read})
}

// MarkAllRead flags every unread alert and returns how many changed.
func (r *AlertRepository) MarkAllRead(ctx context.Context) (int64, error) {
	return r.db.UpdateWhere(ctx, store.From(r.table).Where(store.Eq("is_read", false)),
		map[string]interface{}{"is_read": true})
}

func (r *AlertRepository) Resolve(ctx context.Context, id, resolvedBy string) (*models.Alert, error) {
	resolved := true
	update := models.AlertUpdate{IsResolved: &resolved}
	if resolvedBy != "" {
		update.ResolvedBy = &resolvedBy
	}
	return r.Update(ctx, id, update)
}

func (r *AlertRepository) Delete(ctx context.Context, id string) error {
	return r.delete(ctx, id)
}

func (r *AlertRepository) findJoined(ctx context.Context, q store.Query) ([]models.Alert, error) {
	alerts, err := list[models.Alert](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	var vehicles, drivers idSet
	for _, a := range alerts {
		vehicles.add(a.VehicleID)
		drivers.add(a.DriverID)
	}
	vrefs, err := vehicleRefs(ctx, r.db, vehicles.ids)
	if err != nil {
		return nil, err
	}
	drefs, err := driverRefs(ctx, r.db, drivers.ids)
	if err != nil {
		return nil, err
	}
	for i := range alerts {
		alerts[i].Vehicle = lookupVehicle(vrefs, alerts[i].VehicleID)
		alerts[i].Driver = lookupDriver(drefs, alerts[i].DriverID)
	}
	return alerts, nil
}
