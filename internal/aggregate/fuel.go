package aggregate

import "logitrack/internal/models"

// FuelWindowDays is the trailing period covered by fuel statistics.
const FuelWindowDays = 30

type FuelStats struct {
	TotalFuel       float64 `json:"totalFuel"`
	TotalCost       float64 `json:"totalCost"`
	AvgCostPerLiter float64 `json:"avgCostPerLiter"`
	RecordCount     int     `json:"recordCount"`
}

func Fuel(records []models.FuelRecord) FuelStats {
	stats := FuelStats{RecordCount: len(records)}
	for _, r := range records {
		stats.TotalFuel += r.Quantity
		stats.TotalCost += r.TotalCost
	}
	if stats.TotalFuel > 0 {
		stats.AvgCostPerLiter = stats.TotalCost / stats.TotalFuel
	}
	return stats
}
