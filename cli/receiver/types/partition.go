package types

import (
	"fmt"
	"time"
)

type PartitionState string

const (
	PartitionStateUnprovisioned PartitionState = "unprovisioned"
	PartitionStateProvisioned   PartitionState = "provisioned"
	PartitionStateIndexed       PartitionState = "indexed"
)

const LocationTable = "vehicle_locations"

// PartitionRange полуинтервал [From, To) секции таблицы местоположений
type PartitionRange struct {
	Name  string         `json:"name"`
	From  time.Time      `json:"from"`
	To    time.Time      `json:"to"`
	State PartitionState `json:"state"`
}

func (r PartitionRange) Covers(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// MonthRange месячная секция, содержащая момент t (границы в UTC)
func MonthRange(t time.Time) PartitionRange {
	t = t.UTC()
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return PartitionRange{
		Name:  fmt.Sprintf("%s_y%04d_m%02d", LocationTable, from.Year(), int(from.Month())),
		From:  from,
		To:    to,
		State: PartitionStateUnprovisioned,
	}
}
