package mongostore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"logitrack/internal/store"
)

func TestBuildFilter(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, bson.M{}, buildFilter(nil))
	})

	t.Run("single equality", func(t *testing.T) {
		assert.Equal(t, bson.M{"status": bson.M{"$eq": "active"}}, buildFilter([]store.Filter{store.Eq("status", "active")}))
	})

	t.Run("range on one field uses $and", func(t *testing.T) {
		got := buildFilter([]store.Filter{store.Gte("recorded_at", 1), store.Lt("recorded_at", 5)})
		assert.Equal(t, bson.M{"$and": []bson.M{
			{"recorded_at": bson.M{"$gte": 1}},
			{"recorded_at": bson.M{"$lt": 5}},
		}}, got)
	})

	t.Run("or and null", func(t *testing.T) {
		got := buildFilter([]store.Filter{store.Or(store.Eq("sender_id", "u"), store.IsNull("receiver_id"))})
		assert.Equal(t, bson.M{"$or": []bson.M{
			{"sender_id": bson.M{"$eq": "u"}},
			{"receiver_id": nil},
		}}, got)
	})
}

func TestBuildSort(t *testing.T) {
	assert.Nil(t, buildSort(nil))
	assert.Equal(t, bson.D{{Key: "priority", Value: -1}, {Key: "plate", Value: 1}},
		buildSort([]store.Sort{{Field: "priority", Desc: true}, {Field: "plate"}}))
}

func TestBuildChangeMatch(t *testing.T) {
	t.Run("table wide", func(t *testing.T) {
		got := buildChangeMatch(store.Scope{Table: "alerts"})
		assert.Equal(t, bson.M{"operationType": bson.M{"$in": []string{"insert", "update", "replace", "delete"}}}, got)
	})

	t.Run("row filter", func(t *testing.T) {
		got := buildChangeMatch(store.Scope{Table: "telemetry_data", Events: []store.EventType{store.EventInsert}, Field: "vehicle_id", Value: "V"})
		assert.Equal(t, bson.M{"$and": []bson.M{
			{"operationType": bson.M{"$in": []string{"insert"}}},
			{"$or": []bson.M{{"fullDocument.vehicle_id": "V"}, {"operationType": "delete"}}},
		}}, got)
	})
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("find", "vehicles", nil))
	err := classify("find", "vehicles", context.DeadlineExceeded)
	assert.True(t, store.IsTransient(err))
}
