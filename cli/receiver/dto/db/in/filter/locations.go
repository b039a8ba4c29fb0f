package filter

import "time"

type Locations struct {
	VehicleID int64
	After     *time.Time
	Before    *time.Time
	Limit     int
}
