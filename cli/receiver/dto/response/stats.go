package response

import "github.com/daniil11ru/fleettrack/cli/receiver/domain"

type Observers struct {
	Clients int   `json:"clients"`
	Dropped int64 `json:"dropped"`
}

type Stats struct {
	domain.StatsSnapshot
	Observers  *Observers `json:"observers,omitempty"`
	Partitions *int       `json:"partitions,omitempty"`
}
