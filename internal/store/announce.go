package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Announcing wraps a Store and publishes a Change after every successful
// write. It is used when peers learn about changes through a broker.
type Announcing struct {
	Store
	publisher Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAnnouncing(inner Store, publisher Publisher, logger zerolog.Logger) *Announcing {
	return &Announcing{Store: inner, publisher: publisher, logger: logger, now: time.Now}
}

func (a *Announcing) Insert(ctx context.Context, table string, doc interface{}) error {
	if err := a.Store.Insert(ctx, table, doc); err != nil {
		return err
	}
	row, _ := ToDoc(doc)
	id, _ := row["_id"].(string)
	a.announce(ctx, Change{Table: table, Type: EventInsert, ID: id, Row: row})
	return nil
}

func (a *Announcing) Update(ctx context.Context, table, id string, set map[string]interface{}) (bool, error) {
	found, err := a.Store.Update(ctx, table, id, set)
	if err != nil || !found {
		return found, err
	}
	a.announce(ctx, Change{Table: table, Type: EventUpdate, ID: id, Row: set})
	return true, nil
}

func (a *Announcing) UpdateWhere(ctx context.Context, q Query, set map[string]interface{}) (int64, error) {
	n, err := a.Store.UpdateWhere(ctx, q, set)
	if err != nil || n == 0 {
		return n, err
	}
	a.announce(ctx, Change{Table: q.Table, Type: EventUpdate, Row: set})
	return n, nil
}

func (a *Announcing) Delete(ctx context.Context, table, id string) (bool, error) {
	found, err := a.Store.Delete(ctx, table, id)
	if err != nil || !found {
		return found, err
	}
	a.announce(ctx, Change{Table: table, Type: EventDelete, ID: id})
	return true, nil
}

func (a *Announcing) announce(ctx context.Context, c Change) {
	c.At = a.now()
	if err := a.publisher.Publish(ctx, c); err != nil {
		a.logger.Warn().Err(err).Str("table", c.Table).Str("type", string(c.Type)).Msg("failed to announce change")
	}
}
