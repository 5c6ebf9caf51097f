package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"logitrack/internal/models"
	"logitrack/pkg/log"
)

const defaultDatabase = "logitrack"

// Connect establishes a connection to MongoDB. The database name comes from
// dbName, then the URI path, then the default.
func Connect(mongoURI, dbName string) (*mongo.Database, error) {
	cs, err := connstring.ParseAndValidate(mongoURI)
	if err != nil {
		return nil, fmt.Errorf("invalid MongoDB URI: %v", err)
	}

	clientOptions := options.Client().ApplyURI(mongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	logger := log.WithComponent("mongodb")
	logger.Info().Msg("connected to MongoDB")

	if dbName == "" {
		dbName = cs.Database
	}
	if dbName == "" {
		dbName = defaultDatabase
	}

	db := client.Database(dbName)

	if err := CreateIndexes(db); err != nil {
		logger.Warn().Err(err).Msg("failed to create indexes")
	}

	return db, nil
}

// Indexes lists the index set of every collection, keyed by collection.
// Keys follow the orderings and filters used by the entity repositories.
func Indexes() map[string][]mongo.IndexModel {
	asc := func(field string) mongo.IndexModel { return mongo.IndexModel{Keys: bson.D{{Key: field, Value: 1}}} }
	desc := func(field string) mongo.IndexModel { return mongo.IndexModel{Keys: bson.D{{Key: field, Value: -1}}} }

	return map[string][]mongo.IndexModel{
		models.TableVehicles: {
			{Keys: bson.D{{Key: "plate", Value: 1}}, Options: options.Index().SetUnique(true)},
			asc("status"),
		},
		models.TableDrivers: {
			asc("full_name"),
			asc("status"),
			{Keys: bson.D{{Key: "license_number", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		models.TableDriverPerformance: {
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "period_end", Value: -1}}},
		},
		models.TableRoutes: {
			desc("created_at"),
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "actual_end", Value: -1}}},
		},
		models.TableRouteStops: {
			{Keys: bson.D{{Key: "route_id", Value: 1}, {Key: "stop_order", Value: 1}}},
		},
		models.TableAlerts: {
			desc("created_at"),
			{Keys: bson.D{{Key: "is_read", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "level", Value: 1}, {Key: "is_resolved", Value: 1}}},
		},
		models.TableCargos: {
			desc("created_at"),
			asc("status"),
		},
		models.TableCargoConditions: {
			{Keys: bson.D{{Key: "cargo_id", Value: 1}, {Key: "recorded_at", Value: -1}}},
		},
		models.TableTelemetry: {
			desc("recorded_at"),
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "recorded_at", Value: -1}}},
		},
		models.TableMaintenance: {
			asc("scheduled_date"),
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "scheduled_date", Value: -1}}},
			asc("status"),
		},
		models.TableFuelRecords: {
			desc("recorded_at"),
			{Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "recorded_at", Value: -1}}},
		},
		models.TableFuelAnalysis: {
			desc("period_end"),
		},
		models.TableGeofences: {
			desc("created_at"),
			asc("is_active"),
		},
		models.TableGeofenceEvents: {
			desc("occurred_at"),
			{Keys: bson.D{{Key: "geofence_id", Value: 1}, {Key: "occurred_at", Value: -1}}},
		},
		models.TableDriverPoints: {
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "earned_at", Value: -1}}},
		},
		models.TableChallenges: {
			desc("start_date"),
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "end_date", Value: 1}}},
		},
		models.TableDriverChallenges: {
			{Keys: bson.D{{Key: "driver_id", Value: 1}, {Key: "challenge_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		models.TableNotifications: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}}},
		},
		models.TableMessages: {
			{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		models.TableDrivingEvents:   {desc("occurred_at")},
		models.TableSpeedViolations: {desc("occurred_at")},
	}
}

// CreateIndexes creates the index set on every collection.
func CreateIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := log.WithComponent("mongodb")
	var failed int
	for collection, indexes := range Indexes() {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
			logger.Warn().Err(err).Str("collection", collection).Msg("failed to create indexes")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("index creation failed for %d collections", failed)
	}

	logger.Info().Msg("database indexes created")
	return nil
}

// Disconnect closes the MongoDB connection
func Disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %v", err)
	}

	logger := log.WithComponent("mongodb")
	logger.Info().Msg("disconnected from MongoDB")
	return nil
}

// Health checks the database connection health
func Health(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return db.Client().Ping(ctx, nil)
}
