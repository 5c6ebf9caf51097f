// Package memstore is an in-memory store.Store with a native change feed.
// It backs tests and single-process development runs.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"logitrack/internal/store"
)

type table struct {
	rows  map[string]bson.M
	order []string
}

type Store struct {
	mu       sync.RWMutex
	tables   map[string]*table
	unique   map[string][]string
	notifier *store.Notifier
	now      func() time.Time

	faultMu sync.Mutex
	faults  map[string]error
	calls   map[string]int
}

type Option func(*Store)

// WithUnique rejects inserts and updates that duplicate field in table.
func WithUnique(tableName string, fields ...string) Option {
	return func(s *Store) {
		s.unique[tableName] = append(s.unique[tableName], fields...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		tables:   make(map[string]*table),
		unique:   make(map[string][]string),
		notifier: store.NewNotifier(),
		now:      time.Now,
		faults:   make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNext makes the next read against table return err.
func (s *Store) FailNext(tableName string, err error) {
	s.faultMu.Lock()
	s.faults[tableName] = err
	s.faultMu.Unlock()
}

// Reads returns how many Find/FindOne/Count calls hit table.
func (s *Store) Reads(tableName string) int {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.calls[tableName]
}

func (s *Store) beginRead(tableName string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.calls[tableName]++
	if err, ok := s.faults[tableName]; ok {
		delete(s.faults, tableName)
		return err
	}
	return nil
}

func (s *Store) table(name string) *table {
	t, ok := s.tables[name]
	if !ok {
		t = &table{rows: make(map[string]bson.M)}
		s.tables[name] = t
	}
	return t
}

func (s *Store) selectRows(q store.Query) []bson.M {
	t, ok := s.tables[q.Table]
	if !ok {
		return nil
	}
	out := make([]bson.M, 0, len(t.order))
	for _, id := range t.order {
		doc := t.rows[id]
		if matchAll(doc, q.Filters) {
			out = append(out, doc)
		}
	}
	if len(q.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j], q.Sort) })
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (s *Store) Find(ctx context.Context, q store.Query, dest interface{}) error {
	if err := ctx.Err(); err != nil {
		return store.E(store.KindTransient, "find", q.Table, err)
	}
	if err := s.beginRead(q.Table); err != nil {
		return err
	}
	s.mu.RLock()
	rows := s.selectRows(q)
	s.mu.RUnlock()
	if err := store.DecodeAll(rows, dest); err != nil {
		return store.E(store.KindUnknown, "find", q.Table, err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, q store.Query, dest interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.E(store.KindTransient, "find_one", q.Table, err)
	}
	if err := s.beginRead(q.Table); err != nil {
		return false, err
	}
	q.Limit = 1
	s.mu.RLock()
	rows := s.selectRows(q)
	s.mu.RUnlock()
	if len(rows) == 0 {
		return false, nil
	}
	if err := store.FromDoc(rows[0], dest); err != nil {
		return false, store.E(store.KindUnknown, "find_one", q.Table, err)
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context, q store.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.E(store.KindTransient, "count", q.Table, err)
	}
	if err := s.beginRead(q.Table); err != nil {
		return 0, err
	}
	q.Limit = 0
	q.Sort = nil
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.selectRows(q))), nil
}

func (s *Store) Insert(ctx context.Context, tableName string, doc interface{}) error {
	if err := ctx.Err(); err != nil {
		return store.E(store.KindTransient, "insert", tableName, err)
	}
	row, err := store.ToDoc(doc)
	if err != nil {
		return store.E(store.KindValidation, "insert", tableName, err)
	}
	id, _ := row["_id"].(string)
	if id == "" {
		return store.Errorf(store.KindValidation, "insert", tableName, "missing _id")
	}

	s.mu.Lock()
	t := s.table(tableName)
	if _, exists := t.rows[id]; exists {
		s.mu.Unlock()
		return store.Errorf(store.KindValidation, "insert", tableName, "duplicate id %s", id)
	}
	if err := s.checkUnique(tableName, t, id, row); err != nil {
		s.mu.Unlock()
		return err
	}
	t.rows[id] = row
	t.order = append(t.order, id)
	snapshot := copyDoc(row)
	s.mu.Unlock()

	s.notifier.Notify(store.Change{Table: tableName, Type: store.EventInsert, ID: id, Row: snapshot, At: s.now()})
	return nil
}

func (s *Store) Update(ctx context.Context, tableName, id string, set map[string]interface{}) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.E(store.KindTransient, "update", tableName, err)
	}
	s.mu.Lock()
	t := s.table(tableName)
	row, ok := t.rows[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	next := copyDoc(row)
	for k, v := range set {
		if k == "_id" {
			continue
		}
		next[k] = v
	}
	if err := s.checkUnique(tableName, t, id, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	t.rows[id] = next
	snapshot := copyDoc(next)
	s.mu.Unlock()

	s.notifier.Notify(store.Change{Table: tableName, Type: store.EventUpdate, ID: id, Row: snapshot, At: s.now()})
	return true, nil
}

func (s *Store) UpdateWhere(ctx context.Context, q store.Query, set map[string]interface{}) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, store.E(store.KindTransient, "update_where", q.Table, err)
	}
	s.mu.Lock()
	t := s.table(q.Table)
	var changes []store.Change
	for _, id := range t.order {
		row := t.rows[id]
		if !matchAll(row, q.Filters) {
			continue
		}
		next := copyDoc(row)
		for k, v := range set {
			if k != "_id" {
				next[k] = v
			}
		}
		t.rows[id] = next
		changes = append(changes, store.Change{Table: q.Table, Type: store.EventUpdate, ID: id, Row: copyDoc(next), At: s.now()})
	}
	s.mu.Unlock()

	for _, c := range changes {
		s.notifier.Notify(c)
	}
	return int64(len(changes)), nil
}

func (s *Store) Delete(ctx context.Context, tableName, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.E(store.KindTransient, "delete", tableName, err)
	}
	s.mu.Lock()
	t := s.table(tableName)
	row, ok := t.rows[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	delete(t.rows, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notifier.Notify(store.Change{Table: tableName, Type: store.EventDelete, ID: id, Row: row, At: s.now()})
	return true, nil
}

// Subscribe implements store.ChangeFeed.
func (s *Store) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	return s.notifier.Subscribe(ctx, scope, fn)
}

// Subscribers returns the number of open feed subscriptions.
func (s *Store) Subscribers() int {
	return s.notifier.Len()
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

func (s *Store) checkUnique(tableName string, t *table, id string, row bson.M) error {
	for _, field := range s.unique[tableName] {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		for otherID, other := range t.rows {
			if otherID == id {
				continue
			}
			if equal(other[field], v) {
				return store.Errorf(store.KindValidation, "write", tableName, "duplicate value for %s", field)
			}
		}
	}
	return nil
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// ErrUnavailable is a convenience transient failure for tests.
var ErrUnavailable = store.E(store.KindTransient, "find", "", errors.New("store unavailable"))
