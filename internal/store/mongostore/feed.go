package mongostore

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"logitrack/internal/store"
)

type changeEvent struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.M `bson:"fullDocument"`
}

// Subscribe opens a change stream for scope. Requires a replica set or a
// sharded cluster. The stream resumes after transient failures.
func (s *Store) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	coll := s.db.Collection(scope.Table)
	pipeline := mongo.Pipeline{{{Key: "$match", Value: buildChangeMatch(scope)}}}

	open := func(ctx context.Context, resume bson.Raw) (*mongo.ChangeStream, error) {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resume != nil {
			opts.SetStartAfter(resume)
		}
		return coll.Watch(ctx, pipeline, opts)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	openCtx, openCancel := context.WithTimeout(ctx, s.timeout)
	defer openCancel()

	stream, err := open(openCtx, nil)
	if err != nil {
		cancel()
		return nil, classify("watch", scope.Table, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.consume(streamCtx, scope, stream, open, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (s *Store) consume(ctx context.Context, scope store.Scope, stream *mongo.ChangeStream,
	open func(context.Context, bson.Raw) (*mongo.ChangeStream, error), fn func(store.Change)) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				s.logger.Warn().Err(err).Str("table", scope.Table).Msg("failed to decode change event")
				continue
			}
			fn(store.Change{
				Table: scope.Table,
				Type:  eventType(ev.OperationType),
				ID:    ev.DocumentKey.ID,
				Row:   ev.FullDocument,
				At:    time.Now(),
			})
			backoff = time.Second
		}

		resume := stream.ResumeToken()
		err := stream.Err()
		stream.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn().Err(err).Str("scope", scope.Key()).Dur("retry_in", backoff).Msg("change stream interrupted")
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			next, err := open(ctx, resume)
			if err == nil {
				stream = next
				break
			}
			s.logger.Warn().Err(err).Str("scope", scope.Key()).Msg("failed to reopen change stream")
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
