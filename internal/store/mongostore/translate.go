package mongostore

import (
	"go.mongodb.org/mongo-driver/bson"

	"logitrack/internal/store"
)

var operators = map[store.Op]string{
	store.OpEq:  "$eq",
	store.OpNe:  "$ne",
	store.OpIn:  "$in",
	store.OpGt:  "$gt",
	store.OpGte: "$gte",
	store.OpLt:  "$lt",
	store.OpLte: "$lte",
}

// buildFilter translates port filters into a MongoDB query document.
func buildFilter(filters []store.Filter) bson.M {
	switch len(filters) {
	case 0:
		return bson.M{}
	case 1:
		return buildOne(filters[0])
	}
	parts := make([]bson.M, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, buildOne(f))
	}
	return bson.M{"$and": parts}
}

func buildOne(f store.Filter) bson.M {
	switch f.Op {
	case store.OpOr:
		alts := make([]bson.M, 0, len(f.Any))
		for _, alt := range f.Any {
			alts = append(alts, buildOne(alt))
		}
		return bson.M{"$or": alts}
	case store.OpNull:
		// matches both explicit nulls and missing fields
		return bson.M{f.Field: nil}
	case store.OpNotNull:
		return bson.M{f.Field: bson.M{"$ne": nil}}
	}
	return bson.M{f.Field: bson.M{operators[f.Op]: f.Value}}
}

func buildSort(sorts []store.Sort) bson.D {
	if len(sorts) == 0 {
		return nil
	}
	d := make(bson.D, 0, len(sorts))
	for _, s := range sorts {
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: s.Field, Value: dir})
	}
	return d
}

// buildChangeMatch builds the $match stage of a change stream for scope.
// Deletes carry no document, so a field filter cannot narrow them.
func buildChangeMatch(scope store.Scope) bson.M {
	ops := make([]string, 0, 3)
	events := scope.Events
	if len(events) == 0 {
		events = []store.EventType{store.EventInsert, store.EventUpdate, store.EventDelete}
	}
	for _, e := range events {
		switch e {
		case store.EventInsert:
			ops = append(ops, "insert")
		case store.EventUpdate:
			ops = append(ops, "update", "replace")
		case store.EventDelete:
			ops = append(ops, "delete")
		}
	}

	match := bson.M{"operationType": bson.M{"$in": ops}}
	if scope.Field == "" {
		return match
	}
	return bson.M{"$and": []bson.M{
		match,
		{"$or": []bson.M{
			{"fullDocument." + scope.Field: scope.Value},
			{"operationType": "delete"},
		}},
	}}
}

func eventType(operationType string) store.EventType {
	switch operationType {
	case "insert":
		return store.EventInsert
	case "delete":
		return store.EventDelete
	default:
		return store.EventUpdate
	}
}
