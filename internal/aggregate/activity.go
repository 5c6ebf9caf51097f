package aggregate

import (
	"sort"
	"time"

	"logitrack/internal/models"
)

type ActivityType string

const (
	ActivityAlert       ActivityType = "alert"
	ActivityRoute       ActivityType = "route"
	ActivityMaintenance ActivityType = "maintenance"
)

const (
	ActivityPerType = 5
	ActivityLimit   = 10
)

type Activity struct {
	Type      ActivityType `json:"type"`
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Subtitle  string       `json:"subtitle"`
	Status    string       `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// RecentActivity merges the three feeds newest first and keeps limit items.
// Items with equal timestamps keep the alert, route, maintenance order.
func RecentActivity(alerts []models.Alert, routes []models.Route, maintenance []models.MaintenanceRecord, limit int) []Activity {
	items := make([]Activity, 0, len(alerts)+len(routes)+len(maintenance))
	for _, a := range alerts {
		item := Activity{Type: ActivityAlert, ID: a.ID, Title: a.Title, Status: string(a.Level), Timestamp: a.CreatedAt}
		if a.Vehicle != nil {
			item.Subtitle = a.Vehicle.Plate
		}
		items = append(items, item)
	}
	for _, r := range routes {
		item := Activity{Type: ActivityRoute, ID: r.ID, Title: "Unnamed route", Status: string(r.Status), Timestamp: r.UpdatedAt}
		if r.Name != nil && *r.Name != "" {
			item.Title = *r.Name
		}
		if r.Driver != nil {
			item.Subtitle = r.Driver.FullName
		}
		items = append(items, item)
	}
	for _, m := range maintenance {
		item := Activity{Type: ActivityMaintenance, ID: m.ID, Title: m.Title, Status: string(m.Status), Timestamp: m.ActivityTime()}
		if m.Vehicle != nil {
			item.Subtitle = m.Vehicle.Plate
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp.After(items[j].Timestamp) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
