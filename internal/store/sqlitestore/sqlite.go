// Package sqlitestore implements the storage port on SQLite for single-node
// deployments. Each table keeps the bson-encoded document for exact decoding
// and a JSON projection of its scalar fields for filtering and ordering.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson"

	"logitrack/internal/store"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Store struct {
	conn     *sql.DB
	notifier *store.Notifier
	unique   map[string][]string

	mu     sync.Mutex
	tables map[string]bool
}

type Option func(*Store)

// WithUnique adds a unique index on a scalar field of table.
func WithUnique(table string, fields ...string) Option {
	return func(s *Store) { s.unique[table] = append(s.unique[table], fields...) }
}

// Open opens (or creates) the database at path with WAL journaling.
func Open(path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1) // single writer
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	s := &Store{
		conn:     conn,
		notifier: store.NewNotifier(),
		unique:   make(map[string][]string),
		tables:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) ensureTable(ctx context.Context, table string) error {
	if !identifier.MatchString(table) {
		return store.Errorf(store.KindValidation, "schema", table, "invalid table name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
			id TEXT PRIMARY KEY,
			doc BLOB NOT NULL,
			attrs TEXT NOT NULL
		)`, table),
	}
	for _, field := range s.unique[table] {
		stmts = append(stmts, fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %q ON %q (json_extract(attrs, '$.%s'))`,
			"ux_"+table+"_"+field, table, field))
	}
	for _, stmt := range stmts {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return classify("schema", table, err)
		}
	}
	s.tables[table] = true
	return nil
}

func (s *Store) Find(ctx context.Context, q store.Query, dest interface{}) error {
	if err := s.ensureTable(ctx, q.Table); err != nil {
		return err
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return store.E(store.KindValidation, "find", q.Table, err)
	}
	order, err := buildOrder(q.Sort)
	if err != nil {
		return store.E(store.KindValidation, "find", q.Table, err)
	}

	query := fmt.Sprintf("SELECT doc FROM %q WHERE %s ORDER BY %s", q.Table, where, order)
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return classify("find", q.Table, err)
	}
	defer rows.Close()

	var docs []bson.M
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return classify("find", q.Table, err)
		}
		var doc bson.M
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return store.E(store.KindUnknown, "find", q.Table, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return classify("find", q.Table, err)
	}
	return store.DecodeAll(docs, dest)
}

func (s *Store) FindOne(ctx context.Context, q store.Query, dest interface{}) (bool, error) {
	q.Limit = 1
	var docs []bson.M
	if err := s.Find(ctx, q, &docs); err != nil {
		return false, err
	}
	if len(docs) == 0 {
		return false, nil
	}
	if err := store.FromDoc(docs[0], dest); err != nil {
		return false, store.E(store.KindUnknown, "find_one", q.Table, err)
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context, q store.Query) (int64, error) {
	if err := s.ensureTable(ctx, q.Table); err != nil {
		return 0, err
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return 0, store.E(store.KindValidation, "count", q.Table, err)
	}
	var n int64
	row := s.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE %s", q.Table, where), args...)
	if err := row.Scan(&n); err != nil {
		return 0, classify("count", q.Table, err)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, table string, doc interface{}) error {
	if err := s.ensureTable(ctx, table); err != nil {
		return err
	}
	row, err := store.ToDoc(doc)
	if err != nil {
		return store.E(store.KindValidation, "insert", table, err)
	}
	id, _ := row["_id"].(string)
	if id == "" {
		return store.Errorf(store.KindValidation, "insert", table, "missing _id")
	}
	raw, attrs, err := encode(row)
	if err != nil {
		return store.E(store.KindValidation, "insert", table, err)
	}
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("INSERT INTO %q (id, doc, attrs) VALUES (?, ?, ?)", table), id, raw, attrs); err != nil {
		return classify("insert", table, err)
	}
	s.notifier.Notify(store.Change{Table: table, Type: store.EventInsert, ID: id, Row: row, At: time.Now()})
	return nil
}

func (s *Store) Update(ctx context.Context, table, id string, set map[string]interface{}) (bool, error) {
	n, err := s.update(ctx, "update", store.From(table).Where(store.Eq("_id", id)), set)
	return n > 0, err
}

func (s *Store) UpdateWhere(ctx context.Context, q store.Query, set map[string]interface{}) (int64, error) {
	return s.update(ctx, "update_where", q, set)
}

func (s *Store) update(ctx context.Context, op string, q store.Query, set map[string]interface{}) (int64, error) {
	if err := s.ensureTable(ctx, q.Table); err != nil {
		return 0, err
	}
	where, args, err := buildWhere(q.Filters)
	if err != nil {
		return 0, store.E(store.KindValidation, op, q.Table, err)
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(op, q.Table, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT id, doc FROM %q WHERE %s", q.Table, where), args...)
	if err != nil {
		return 0, classify(op, q.Table, err)
	}
	type pending struct {
		id  string
		doc bson.M
	}
	var targets []pending
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, classify(op, q.Table, err)
		}
		var doc bson.M
		if err := bson.Unmarshal(raw, &doc); err != nil {
			rows.Close()
			return 0, store.E(store.KindUnknown, op, q.Table, err)
		}
		targets = append(targets, pending{id: id, doc: doc})
	}
	rows.Close()

	changes := make([]store.Change, 0, len(targets))
	for _, t := range targets {
		for k, v := range set {
			if k != "_id" {
				t.doc[k] = v
			}
		}
		raw, attrs, err := encode(t.doc)
		if err != nil {
			return 0, store.E(store.KindValidation, op, q.Table, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %q SET doc = ?, attrs = ? WHERE id = ?", q.Table), raw, attrs, t.id); err != nil {
			return 0, classify(op, q.Table, err)
		}
		changes = append(changes, store.Change{Table: q.Table, Type: store.EventUpdate, ID: t.id, Row: t.doc, At: time.Now()})
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(op, q.Table, err)
	}

	for _, c := range changes {
		s.notifier.Notify(c)
	}
	return int64(len(changes)), nil
}

func (s *Store) Delete(ctx context.Context, table, id string) (bool, error) {
	if err := s.ensureTable(ctx, table); err != nil {
		return false, err
	}
	res, err := s.conn.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE id = ?", table), id)
	if err != nil {
		return false, classify("delete", table, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	s.notifier.Notify(store.Change{Table: table, Type: store.EventDelete, ID: id, At: time.Now()})
	return true, nil
}

// Subscribe implements store.ChangeFeed for writes made through this Store.
func (s *Store) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	return s.notifier.Subscribe(ctx, scope, fn)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.conn.Close()
}

func encode(doc bson.M) ([]byte, string, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	attrs := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "_id" {
			attrs[k] = v
			continue
		}
		if sv, ok := scalarValue(v); ok {
			attrs[k] = sv
		}
	}
	js, err := json.Marshal(attrs)
	if err != nil {
		return nil, "", err
	}
	return raw, string(js), nil
}

func classify(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return store.E(store.KindTransient, op, table, err)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			return store.E(store.KindValidation, op, table, err)
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return store.E(store.KindTransient, op, table, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return store.E(store.KindUnauthorized, op, table, err)
		}
	}
	if strings.Contains(err.Error(), "database is locked") {
		return store.E(store.KindTransient, op, table, err)
	}
	return store.E(store.KindUnknown, op, table, err)
}
