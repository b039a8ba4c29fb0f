package out

import (
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
)

type Location struct {
	ID         int64     `gorm:"column:id"`
	VehicleID  int64     `gorm:"column:vehicle_id"`
	Latitude   float64   `gorm:"column:latitude"`
	Longitude  float64   `gorm:"column:longitude"`
	Speed      float64   `gorm:"column:speed"`
	Heading    float64   `gorm:"column:heading"`
	RecordedAt time.Time `gorm:"column:recorded_at"`
}

func (l Location) ToLocationPoint() types.LocationPoint {
	return types.LocationPoint{
		ID:         l.ID,
		VehicleID:  l.VehicleID,
		Latitude:   l.Latitude,
		Longitude:  l.Longitude,
		Speed:      l.Speed,
		Heading:    l.Heading,
		RecordedAt: l.RecordedAt.UTC(),
	}
}
