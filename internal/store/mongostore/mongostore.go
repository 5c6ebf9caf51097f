// Package mongostore implements the storage port on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logitrack/internal/store"
	"logitrack/pkg/log"
)

const defaultTimeout = 10 * time.Second

type Store struct {
	db      *mongo.Database
	timeout time.Duration
	logger  zerolog.Logger
}

func New(db *mongo.Database, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{
		db:      db,
		timeout: timeout,
		logger:  log.WithComponent("mongostore"),
	}
}

func (s *Store) Find(ctx context.Context, q store.Query, dest interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find()
	if sort := buildSort(q.Sort); sort != nil {
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(q.Table).Find(ctx, buildFilter(q.Filters), opts)
	if err != nil {
		return classify("find", q.Table, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, dest); err != nil {
		return classify("find", q.Table, err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, q store.Query, dest interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOne()
	if sort := buildSort(q.Sort); sort != nil {
		opts.SetSort(sort)
	}

	err := s.db.Collection(q.Table).FindOne(ctx, buildFilter(q.Filters), opts).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, classify("find_one", q.Table, err)
	}
	return true, nil
}

func (s *Store) Count(ctx context.Context, q store.Query) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.db.Collection(q.Table).CountDocuments(ctx, buildFilter(q.Filters))
	if err != nil {
		return 0, classify("count", q.Table, err)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, table string, doc interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Collection(table).InsertOne(ctx, doc); err != nil {
		return classify("insert", table, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, table, id string, set map[string]interface{}) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(table).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, classify("update", table, err)
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) UpdateWhere(ctx context.Context, q store.Query, set map[string]interface{}) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(q.Table).UpdateMany(ctx, buildFilter(q.Filters), bson.M{"$set": set})
	if err != nil {
		return 0, classify("update_where", q.Table, err)
	}
	return res.ModifiedCount, nil
}

func (s *Store) Delete(ctx context.Context, table, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.Collection(table).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, classify("delete", table, err)
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.Client().Ping(ctx, nil); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// MongoDB server error codes that map onto the port's taxonomy.
const (
	codeUnauthorized       = 13
	codeAuthFailed         = 18
	codeDocumentValidation = 121
)

func classify(op, table string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case mongo.IsDuplicateKeyError(err):
		return store.E(store.KindValidation, op, table, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return store.E(store.KindTransient, op, table, err)
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch {
		case cmdErr.Code == codeUnauthorized || cmdErr.Code == codeAuthFailed:
			return store.E(store.KindUnauthorized, op, table, err)
		case cmdErr.Code == codeDocumentValidation:
			return store.E(store.KindValidation, op, table, err)
		case cmdErr.HasErrorLabel("RetryableWriteError"), cmdErr.HasErrorLabel("TransientTransactionError"):
			return store.E(store.KindTransient, op, table, err)
		}
	}

	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if we.Code == codeDocumentValidation {
				return store.E(store.KindValidation, op, table, err)
			}
		}
	}

	var encodeErr mongo.MarshalError
	if errors.As(err, &encodeErr) {
		return store.E(store.KindValidation, op, table, err)
	}

	return store.E(store.KindUnknown, op, table, err)
}
