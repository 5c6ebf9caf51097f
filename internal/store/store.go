// Package store defines the storage port used by the entity query layer.
//
// Backends (memory, MongoDB, SQLite) implement Store over documents encoded
// with the bson tags declared on the models. Rows are never mutated in place
// by callers; every write goes through Insert, Update, UpdateWhere or Delete.
package store

import "context"

// Store is the database boundary.
type Store interface {
	// Find decodes every row matching q into dest, which must be a pointer to a slice.
	Find(ctx context.Context, q Query, dest interface{}) error
	// FindOne decodes the first matching row into dest. Absence is not an error.
	FindOne(ctx context.Context, q Query, dest interface{}) (bool, error)
	Count(ctx context.Context, q Query) (int64, error)
	Insert(ctx context.Context, table string, doc interface{}) error
	// Update applies set to the row with the given id and reports whether it existed.
	Update(ctx context.Context, table, id string, set map[string]interface{}) (bool, error)
	UpdateWhere(ctx context.Context, q Query, set map[string]interface{}) (int64, error)
	Delete(ctx context.Context, table, id string) (bool, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ChangeFeed delivers row changes matching a scope until cancel is called.
type ChangeFeed interface {
	Subscribe(ctx context.Context, scope Scope, fn func(Change)) (cancel func(), err error)
}

// Publisher announces a change to peers that cannot observe the store directly.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}
