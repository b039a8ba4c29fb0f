package out

import (
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
)

type DailySummary struct {
	VehicleID       int64     `gorm:"column:vehicle_id"`
	TravelDay       time.Time `gorm:"column:travel_day"`
	TotalUpdates    int64     `gorm:"column:total_updates"`
	AvgSpeed        float64   `gorm:"column:avg_speed"`
	MinSpeed        float64   `gorm:"column:min_speed"`
	MaxSpeed        float64   `gorm:"column:max_speed"`
	TotalDistanceKm float64   `gorm:"column:total_distance_km"`
}

func (s DailySummary) ToDailySummary() types.DailySummary {
	day := s.TravelDay
	return types.DailySummary{
		VehicleID:       s.VehicleID,
		TravelDay:       time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		TotalUpdates:    s.TotalUpdates,
		AvgSpeed:        s.AvgSpeed,
		MinSpeed:        s.MinSpeed,
		MaxSpeed:        s.MaxSpeed,
		TotalDistanceKm: s.TotalDistanceKm,
	}
}
