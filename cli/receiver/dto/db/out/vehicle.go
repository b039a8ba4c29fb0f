package out

import (
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
)

type Vehicle struct {
	ID             int64      `gorm:"column:id"`
	Name           *string    `gorm:"column:name"`
	RegNumber      *string    `gorm:"column:reg_number"`
	Status         string     `gorm:"column:status"`
	Version        int32      `gorm:"column:version"`
	LastUpdated    *time.Time `gorm:"column:last_updated"`
	LastRecordedAt *time.Time `gorm:"column:last_recorded_at"`
}

func (v Vehicle) ToVehicle() types.Vehicle {
	return types.Vehicle{
		ID:             v.ID,
		Name:           v.Name,
		RegNumber:      v.RegNumber,
		Status:         types.VehicleStatus(v.Status),
		LastUpdated:    v.LastUpdated,
		LastRecordedAt: v.LastRecordedAt,
	}
}
