package insert

import "github.com/daniil11ru/fleettrack/cli/receiver/types"

type Vehicle struct {
	Name      *string             `json:"name"`
	RegNumber *string             `json:"reg_number"`
	Status    types.VehicleStatus `json:"status"`
}
