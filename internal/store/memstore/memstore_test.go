package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

func seedVehicles(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	vehicles := []models.Vehicle{
		{ID: "v1", Plate: "CCC-3333", Brand: "Volvo", Model: "FH", Year: 2020, FuelType: models.FuelTypeDiesel, Status: models.VehicleStatusActive},
		{ID: "v2", Plate: "AAA-1111", Brand: "Scania", Model: "R", Year: 2019, FuelType: models.FuelTypeDiesel, Status: models.VehicleStatusInTransit},
		{ID: "v3", Plate: "BBB-2222", Brand: "BYD", Model: "T7", Year: 2023, FuelType: models.FuelTypeElectric, Status: models.VehicleStatusMaintenance},
	}
	for _, v := range vehicles {
		require.NoError(t, s.Insert(ctx, models.TableVehicles, v))
	}
}

func TestStore_FindFiltersAndSorts(t *testing.T) {
	s := New()
	seedVehicles(t, s)
	ctx := context.Background()

	t.Run("sort ascending by plate", func(t *testing.T) {
		var out []models.Vehicle
		require.NoError(t, s.Find(ctx, store.From(models.TableVehicles).OrderBy("plate", false), &out))
		require.Len(t, out, 3)
		assert.Equal(t, []string{"v2", "v3", "v1"}, []string{out[0].ID, out[1].ID, out[2].ID})
	})

	t.Run("membership filter with typed values", func(t *testing.T) {
		var out []models.Vehicle
		q := store.From(models.TableVehicles).Where(store.In("status", []models.VehicleStatus{models.VehicleStatusActive, models.VehicleStatusInTransit}))
		require.NoError(t, s.Find(ctx, q, &out))
		assert.Len(t, out, 2)
	})

	t.Run("range filter and limit", func(t *testing.T) {
		var out []models.Vehicle
		q := store.From(models.TableVehicles).Where(store.Gte("year", 2020)).OrderBy("year", true).Take(1)
		require.NoError(t, s.Find(ctx, q, &out))
		require.Len(t, out, 1)
		assert.Equal(t, "v3", out[0].ID)
	})

	t.Run("or filter", func(t *testing.T) {
		n, err := s.Count(ctx, store.From(models.TableVehicles).Where(store.Or(store.Eq("brand", "BYD"), store.Eq("brand", "Volvo"))))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("null filter matches absent fields", func(t *testing.T) {
		n, err := s.Count(ctx, store.From(models.TableVehicles).Where(store.IsNull("vin")))
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})
}

func TestStore_TimeComparisons(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Insert(ctx, models.TableTelemetry, models.TelemetryData{
			ID:         string(rune('a' + i)),
			VehicleID:  "v1",
			RecordedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	var out []models.TelemetryData
	q := store.From(models.TableTelemetry).Where(store.Gte("recorded_at", base.Add(2*time.Hour))).OrderBy("recorded_at", true)
	require.NoError(t, s.Find(ctx, q, &out))
	require.Len(t, out, 2)
	assert.True(t, out[0].RecordedAt.Equal(base.Add(3*time.Hour)))
}

func TestStore_FindOneAbsentIsNotAnError(t *testing.T) {
	s := New()
	var v models.Vehicle
	found, err := s.FindOne(context.Background(), store.From(models.TableVehicles).Where(store.Eq("_id", "missing")), &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_WritesAndUniqueness(t *testing.T) {
	s := New(WithUnique(models.TableVehicles, "plate"))
	seedVehicles(t, s)
	ctx := context.Background()

	err := s.Insert(ctx, models.TableVehicles, models.Vehicle{ID: "v4", Plate: "AAA-1111"})
	require.Error(t, err)
	assert.True(t, store.IsValidation(err))

	found, err := s.Update(ctx, models.TableVehicles, "v1", map[string]interface{}{"status": "inactive"})
	require.NoError(t, err)
	assert.True(t, found)

	var v models.Vehicle
	_, err = s.FindOne(ctx, store.From(models.TableVehicles).Where(store.Eq("_id", "v1")), &v)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleStatusInactive, v.Status)

	found, err = s.Update(ctx, models.TableVehicles, "nope", map[string]interface{}{"status": "inactive"})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.Delete(ctx, models.TableVehicles, "v2")
	require.NoError(t, err)
	assert.True(t, found)
	n, _ := s.Count(ctx, store.From(models.TableVehicles))
	assert.Equal(t, int64(2), n)
}

func TestStore_ChangeFeed(t *testing.T) {
	s := New()
	ctx := context.Background()

	var got []store.Change
	cancel, err := s.Subscribe(ctx, store.Scope{Table: models.TableTelemetry, Events: []store.EventType{store.EventInsert}, Field: "vehicle_id", Value: "v1"}, func(c store.Change) {
		got = append(got, c)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Subscribers())

	require.NoError(t, s.Insert(ctx, models.TableTelemetry, models.TelemetryData{ID: "t1", VehicleID: "v1", RecordedAt: time.Now()}))
	require.NoError(t, s.Insert(ctx, models.TableTelemetry, models.TelemetryData{ID: "t2", VehicleID: "v2", RecordedAt: time.Now()}))
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)

	cancel()
	cancel()
	assert.Equal(t, 0, s.Subscribers())
	require.NoError(t, s.Insert(ctx, models.TableTelemetry, models.TelemetryData{ID: "t3", VehicleID: "v1", RecordedAt: time.Now()}))
	assert.Len(t, got, 1)
}

func TestStore_FailNext(t *testing.T) {
	s := New()
	s.FailNext(models.TableVehicles, ErrUnavailable)

	var out []models.Vehicle
	err := s.Find(context.Background(), store.From(models.TableVehicles), &out)
	require.Error(t, err)
	assert.True(t, store.IsTransient(err))

	require.NoError(t, s.Find(context.Background(), store.From(models.TableVehicles), &out))
	assert.Equal(t, 2, s.Reads(models.TableVehicles))
}
