package response

import "github.com/daniil11ru/fleettrack/cli/receiver/types"

type Near struct {
	Center       types.Point           `json:"center"`
	RadiusMeters float64               `json:"radius_meters"`
	Vehicles     []types.NearbyVehicle `json:"vehicles"`
}
