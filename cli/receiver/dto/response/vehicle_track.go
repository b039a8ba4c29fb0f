package response

import "github.com/daniil11ru/fleettrack/cli/receiver/types"

type VehicleTrack struct {
	VehicleID int64                 `json:"vehicle_id"`
	Locations []types.LocationPoint `json:"locations"`
}
