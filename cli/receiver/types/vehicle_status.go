package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type VehicleStatus string

const (
	VehicleStatusMoving  VehicleStatus = "moving"
	VehicleStatusIdling  VehicleStatus = "idling"
	VehicleStatusStopped VehicleStatus = "stopped"
	VehicleStatusActive  VehicleStatus = "active"
)

var vehicleStatusSet = map[VehicleStatus]struct{}{
	VehicleStatusMoving:  {},
	VehicleStatusIdling:  {},
	VehicleStatusStopped: {},
	VehicleStatusActive:  {},
}

func (vs VehicleStatus) IsValid() bool {
	_, ok := vehicleStatusSet[vs]
	return ok
}

func ParseVehicleStatus(s string) (VehicleStatus, error) {
	v := VehicleStatus(s)
	if !v.IsValid() {
		return "", fmt.Errorf("недопустимый статус транспорта: %q", s)
	}
	return v, nil
}

func (vs *VehicleStatus) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseVehicleStatus(s)
	if err != nil {
		return err
	}
	*vs = v
	return nil
}

func (vs VehicleStatus) MarshalJSON() ([]byte, error) {
	if !vs.IsValid() {
		return nil, fmt.Errorf("недопустимый статус транспорта: %q", string(vs))
	}
	return json.Marshal(string(vs))
}

func (vs *VehicleStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*vs = VehicleStatus(string(v))
	case string:
		*vs = VehicleStatus(v)
	default:
		return fmt.Errorf("невозможно извлечь VehicleStatus из %T", value)
	}
	if !vs.IsValid() {
		return fmt.Errorf("недопустимый VehicleStatus: %q", string(*vs))
	}
	return nil
}

func (vs VehicleStatus) Value() (driver.Value, error) {
	if !vs.IsValid() {
		return nil, fmt.Errorf("недопустимый VehicleStatus: %q", string(vs))
	}
	return string(vs), nil
}
