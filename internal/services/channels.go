package services

import (
	"strings"

	"logitrack/internal/models"
	"logitrack/internal/realtime"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

// Watch topics understood by Resolve besides plain table names.
const (
	TopicDashboard       = "dashboard"
	TopicAlerts          = "alerts"
	TopicTelemetryLatest = "telemetry:latest"
)

var inserts = []store.EventType{store.EventInsert}

// dashboardTables feed the KPI and activity queries.
var dashboardTables = []string{
	models.TableVehicles,
	models.TableDrivers,
	models.TableRoutes,
	models.TableAlerts,
	models.TableMaintenance,
	models.TableFuelRecords,
	models.TableDrivingEvents,
}

// Resolve maps a watch topic to the hub channel that keeps its queries fresh.
// Per-user topics are only open to that user.
func Resolve(topic, userID string) (realtime.Channel, error) {
	name, arg, _ := strings.Cut(topic, ":")

	switch {
	case topic == TopicDashboard:
		ch := realtime.Channel{
			Name: topic,
			Keys: []cache.Key{cache.K(QueryDashboardKPIs), cache.K(QueryRecentActivity)},
		}
		for _, table := range dashboardTables {
			ch.Scopes = append(ch.Scopes, store.Scope{Table: table})
		}
		ch.Scopes = append(ch.Scopes, store.Scope{Table: models.TableTelemetry, Events: inserts})
		return ch, nil

	case topic == TopicTelemetryLatest:
		return realtime.Channel{
			Name:   topic,
			Scopes: []store.Scope{{Table: models.TableTelemetry, Events: inserts}},
			Keys:   []cache.Key{TelemetryLatestKey(), cache.K(QueryDashboardKPIs)},
		}, nil

	case name == QueryTelemetry && arg != "":
		return realtime.Channel{
			Name:   topic,
			Scopes: []store.Scope{{Table: models.TableTelemetry, Events: inserts, Field: "vehicle_id", Value: arg}},
			Keys:   []cache.Key{TelemetryKey(arg), TelemetryLatestKey()},
		}, nil

	case topic == TopicAlerts:
		return realtime.Channel{
			Name:   topic,
			Scopes: []store.Scope{{Table: models.TableAlerts}},
			Keys:   []cache.Key{cache.K(QueryAlerts), cache.K(QueryDashboardKPIs), cache.K(QueryRecentActivity)},
		}, nil

	case name == QueryNotifications && arg != "":
		if err := owner("resolve", arg, userID); err != nil {
			return realtime.Channel{}, err
		}
		return realtime.Channel{
			Name:   topic,
			Scopes: []store.Scope{{Table: models.TableNotifications, Events: inserts, Field: "user_id", Value: arg}},
			Keys:   []cache.Key{NotificationsKey(arg)},
		}, nil

	case name == QueryMessages && arg != "":
		if err := owner("resolve", arg, userID); err != nil {
			return realtime.Channel{}, err
		}
		return realtime.Channel{
			Name: topic,
			Scopes: []store.Scope{
				{Table: models.TableMessages, Events: inserts, Field: "sender_id", Value: arg},
				{Table: models.TableMessages, Events: inserts, Field: "receiver_id", Value: arg},
			},
			Keys: []cache.Key{MessagesKey(arg), ConversationsKey(arg)},
		}, nil
	}

	if arg == "" {
		if _, ok := dependents[topic]; ok && !userScoped(topic) {
			return realtime.Channel{
				Name:   topic,
				Scopes: []store.Scope{{Table: topic}},
				Keys:   TableKeys(topic),
			}, nil
		}
	}
	return realtime.Channel{}, store.Errorf(store.KindValidation, "resolve", "", "unknown topic %q", topic)
}

// userScoped tables can only be watched through their per-user topic.
func userScoped(table string) bool {
	return table == models.TableNotifications || table == models.TableMessages
}

func owner(op, subject, userID string) error {
	if subject == "" || subject != userID {
		return store.Errorf(store.KindUnauthorized, op, "", "topic belongs to another user")
	}
	return nil
}
