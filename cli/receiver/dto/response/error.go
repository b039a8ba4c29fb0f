package response

import "github.com/daniil11ru/fleettrack/cli/receiver/domain"

type Error struct {
	Error   string                  `json:"error"`
	Details []domain.FieldViolation `json:"details,omitempty"`
}

type Success struct {
	Success bool `json:"success"`
}
