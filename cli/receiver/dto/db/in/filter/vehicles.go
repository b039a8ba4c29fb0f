package filter

import "github.com/daniil11ru/fleettrack/cli/receiver/types"

type Vehicles struct {
	Status *types.VehicleStatus
	Limit  int
	Offset int
}
