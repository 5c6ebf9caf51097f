package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/internal/models"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

func keyStrings(keys []cache.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

func TestKeysFor(t *testing.T) {
	tests := []struct {
		name   string
		change store.Change
		want   []string
	}{
		{
			name:   "telemetry narrows to the vehicle",
			change: store.Change{Table: models.TableTelemetry, Type: store.EventInsert, Row: map[string]interface{}{"vehicle_id": "V"}},
			want:   []string{"telemetry:V", "telemetry:latest", "dashboard-kpis"},
		},
		{
			name:   "telemetry without a row falls back to the table",
			change: store.Change{Table: models.TableTelemetry, Type: store.EventInsert},
			want:   []string{"telemetry", "dashboard-kpis"},
		},
		{
			name:   "notification narrows to the user",
			change: store.Change{Table: models.TableNotifications, Row: map[string]interface{}{"user_id": "u1"}},
			want:   []string{"notifications:u1"},
		},
		{
			name:   "message narrows to both parties",
			change: store.Change{Table: models.TableMessages, Row: map[string]interface{}{"sender_id": "a", "receiver_id": "b"}},
			want:   []string{"messages:a", "messages:b", "conversations:a", "conversations:b"},
		},
		{
			name:   "unknown table",
			change: store.Change{Table: "audit_log"},
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keyStrings(KeysFor(tt.change)))
		})
	}
}

func TestKeysFor_VehicleChangesReachJoinedQueries(t *testing.T) {
	keys := keyStrings(KeysFor(store.Change{Table: models.TableVehicles, Type: store.EventUpdate}))
	for _, want := range []string{"vehicles", "routes", "alerts", "cargos", "fuel-records", "maintenance", "dashboard-kpis"} {
		assert.Contains(t, keys, want)
	}
}

func TestResolve(t *testing.T) {
	t.Run("telemetry of one vehicle", func(t *testing.T) {
		ch, err := Resolve("telemetry:V", "u1")
		require.NoError(t, err)
		require.Len(t, ch.Scopes, 1)
		assert.Equal(t, "vehicle_id", ch.Scopes[0].Field)
		assert.Equal(t, "V", ch.Scopes[0].Value)
		assert.Equal(t, []string{"telemetry:V", "telemetry:latest"}, keyStrings(ch.Keys))
	})

	t.Run("latest telemetry", func(t *testing.T) {
		ch, err := Resolve(TopicTelemetryLatest, "u1")
		require.NoError(t, err)
		assert.Empty(t, ch.Scopes[0].Field)
		assert.Equal(t, []string{"telemetry:latest", "dashboard-kpis"}, keyStrings(ch.Keys))
	})

	t.Run("alerts", func(t *testing.T) {
		ch, err := Resolve(TopicAlerts, "u1")
		require.NoError(t, err)
		assert.Empty(t, ch.Scopes[0].Events)
		assert.Equal(t, []string{"alerts", "dashboard-kpis", "recent-activity"}, keyStrings(ch.Keys))
	})

	t.Run("messages watch both directions", func(t *testing.T) {
		ch, err := Resolve("messages:u1", "u1")
		require.NoError(t, err)
		require.Len(t, ch.Scopes, 2)
		assert.Equal(t, "sender_id", ch.Scopes[0].Field)
		assert.Equal(t, "receiver_id", ch.Scopes[1].Field)
	})

	t.Run("another user's topic", func(t *testing.T) {
		_, err := Resolve("notifications:u2", "u1")
		assert.True(t, store.IsUnauthorized(err))
		_, err = Resolve("messages:u2", "u1")
		assert.True(t, store.IsUnauthorized(err))
	})

	t.Run("user tables need the per-user topic", func(t *testing.T) {
		_, err := Resolve(models.TableNotifications, "u1")
		assert.True(t, store.IsValidation(err))
	})

	t.Run("plain table", func(t *testing.T) {
		ch, err := Resolve(models.TableMaintenance, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.TableMaintenance, ch.Scopes[0].Table)
		assert.Contains(t, keyStrings(ch.Keys), "pending-maintenance")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Resolve("weather", "u1")
		assert.True(t, store.IsValidation(err))
	})
}

func TestService_WatchInvalidatesOnlyTheWatchedVehicle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, v := range []string{"V", "W"} {
		_, err := f.repos.Telemetry.Record(ctx, &models.TelemetryData{VehicleID: v, Latitude: -23, Longitude: -46})
		require.NoError(t, err)
		require.True(t, f.svc.VehicleTelemetry(ctx, v, 10).OK())
	}
	require.True(t, f.svc.LatestTelemetry(ctx).OK())

	release, err := f.svc.Watch(ctx, "telemetry:V", "u1")
	require.NoError(t, err)
	defer release()
	assert.Equal(t, 1, f.hub.Refs("telemetry:V"))

	// written behind the service, so only the feed can report it
	_, err = f.repos.Telemetry.Record(ctx, &models.TelemetryData{VehicleID: "V", Latitude: -23.1, Longitude: -46.1})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.qc.State(telemetryRecentKey("V", 10)) == cache.StateStale
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, cache.StateStale, f.qc.State(TelemetryLatestKey()))
	assert.Equal(t, cache.StateFresh, f.qc.State(telemetryRecentKey("W", 10)))
	assert.Len(t, f.svc.VehicleTelemetry(ctx, "V", 10).Data, 2)
}

func TestService_WatchReleaseClosesTheChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Watch(ctx, TopicDashboard, "u1")
	require.NoError(t, err)
	second, err := f.svc.Watch(ctx, TopicDashboard, "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, f.hub.Refs(TopicDashboard))

	// the dashboard watch keeps the KPI query observed
	require.Eventually(t, func() bool {
		return f.qc.State(cache.K(QueryDashboardKPIs)) == cache.StateFresh
	}, time.Second, 5*time.Millisecond)

	first()
	first()
	assert.Equal(t, 1, f.hub.Refs(TopicDashboard))
	second()
	assert.Empty(t, f.hub.Active())
	assert.Zero(t, f.ms.Subscribers())
}

func TestService_WatchRejectsForeignTopics(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Watch(context.Background(), "notifications:u2", "u1")
	assert.True(t, store.IsUnauthorized(err))
	assert.Empty(t, f.hub.Active())
}

func TestService_WatchWithoutRealtime(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repos, f.qc)
	_, err := svc.Watch(context.Background(), TopicAlerts, "u1")
	assert.ErrorIs(t, err, ErrRealtimeDisabled)
}
