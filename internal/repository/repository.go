// Package repository is the entity query layer. Each repository reads and
// writes one table through store.Store, validates writes with the model tags,
// and resolves one level of related rows inline.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"logitrack/internal/store"
)

var validate = validator.New()

type base struct {
	db    store.Store
	table string
	now   func() time.Time
	// stamped tables carry created_at/updated_at maintained on write
	stamped bool
}

type Option func(*Repositories)

func WithClock(now func() time.Time) Option {
	return func(r *Repositories) { r.now = now }
}

// Repositories groups every entity repository over one store.
type Repositories struct {
	now func() time.Time

	Vehicles      *VehicleRepository
	Drivers       *DriverRepository
	Routes        *RouteRepository
	Alerts        *AlertRepository
	Cargos        *CargoRepository
	Fuel          *FuelRepository
	Maintenance   *MaintenanceRepository
	Geofences     *GeofenceRepository
	Telemetry     *TelemetryRepository
	Safety        *SafetyRepository
	Notifications *NotificationRepository
	Messages      *MessageRepository
	Gamification  *GamificationRepository
}

func New(db store.Store, opts ...Option) *Repositories {
	r := &Repositories{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	clock := func() time.Time { return r.now().UTC().Truncate(time.Millisecond) }

	r.Vehicles = NewVehicleRepository(db, clock)
	r.Drivers = NewDriverRepository(db, clock)
	r.Routes = NewRouteRepository(db, clock)
	r.Alerts = NewAlertRepository(db, clock)
	r.Cargos = NewCargoRepository(db, clock)
	r.Fuel = NewFuelRepository(db, clock)
	r.Maintenance = NewMaintenanceRepository(db, clock)
	r.Geofences = NewGeofenceRepository(db, clock)
	r.Telemetry = NewTelemetryRepository(db, clock)
	r.Safety = NewSafetyRepository(db, clock)
	r.Notifications = NewNotificationRepository(db, clock)
	r.Messages = NewMessageRepository(db, clock)
	r.Gamification = NewGamificationRepository(db, clock)
	return r
}

func newBase(db store.Store, table string, now func() time.Time, stamped bool) base {
	if now == nil {
		now = time.Now
	}
	return base{db: db, table: table, now: now, stamped: stamped}
}

// NewID returns a fresh row identifier.
func NewID() string {
	return uuid.NewString()
}

// validationError wraps a failed struct validation so callers can still reach
// the validator field errors through errors.As.
func validationError(op, table string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return store.E(store.KindValidation, op, table, fieldErrs)
	}
	return store.E(store.KindValidation, op, table, err)
}

func checkStruct(op, table string, v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return validationError(op, table, err)
	}
	return nil
}

func notFound(op, table, id string) error {
	return store.Errorf(store.KindNotFound, op, table, "%s not found", id)
}

func list[T any](ctx context.Context, db store.Store, q store.Query) ([]T, error) {
	out := []T{}
	if err := db.Find(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func one[T any](ctx context.Context, db store.Store, q store.Query) (*T, error) {
	var out T
	found, err := db.FindOne(ctx, q, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

func (b base) byID(ctx context.Context, id string, dest interface{}) (bool, error) {
	return b.db.FindOne(ctx, store.From(b.table).Where(store.Eq("_id", id)), dest)
}

func (b base) insert(ctx context.Context, doc interface{}) error {
	if err := checkStruct("create", b.table, doc); err != nil {
		return err
	}
	return b.db.Insert(ctx, b.table, doc)
}

// patch validates update, applies the fields it assigns and reports NotFound
// when the row is missing.
func (b base) patch(ctx context.Context, id string, update interface{}) error {
	if err := checkStruct("update", b.table, update); err != nil {
		return err
	}
	set, err := store.Patch(update)
	if err != nil {
		return store.E(store.KindValidation, "update", b.table, err)
	}
	return b.set(ctx, id, set)
}

func (b base) set(ctx context.Context, id string, set map[string]interface{}) error {
	if b.stamped {
		set["updated_at"] = b.now()
	}
	if len(set) == 0 {
		return nil
	}
	found, err := b.db.Update(ctx, b.table, id, set)
	if err != nil {
		return err
	}
	if !found {
		return notFound("update", b.table, id)
	}
	return nil
}

func (b base) delete(ctx context.Context, id string) error {
	found, err := b.db.Delete(ctx, b.table, id)
	if err != nil {
		return err
	}
	if !found {
		return notFound("delete", b.table, id)
	}
	return nil
}

// byIDs loads the rows of table whose id is in ids, keyed by id.
func byIDs[T any](ctx context.Context, db store.Store, table string, ids []string, idOf func(T) string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := list[T](ctx, db, store.From(table).Where(store.In("_id", ids)))
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[idOf(row)] = row
	}
	return out, nil
}

// idSet collects distinct non-empty ids in first-seen order.
type idSet struct {
	seen map[string]bool
	ids  []string
}

func (s *idSet) add(id *string) {
	if id == nil || *id == "" {
		return
	}
	s.addValue(*id)
}

func (s *idSet) addValue(id string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	if id == "" || s.seen[id] {
		return
	}
	s.seen[id] = true
	s.ids = append(s.ids, id)
}
