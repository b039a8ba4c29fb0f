package filter

import "time"

type Summaries struct {
	VehicleID *int64
	Since     *time.Time
	Limit     int
}
