package types

import (
	"time"
)

// Report принятый валидатором отчёт о местоположении транспорта
type Report struct {
	VehicleID  int64         `json:"vehicleId"`
	Latitude   float64       `json:"lat"`
	Longitude  float64       `json:"lng"`
	Speed      float64       `json:"speed"`
	Heading    float64       `json:"heading"`
	Status     VehicleStatus `json:"status"`
	RecordedAt time.Time     `json:"recordedAt"`
}

func (r Report) Point() Point {
	return Point{Latitude: r.Latitude, Longitude: r.Longitude}
}

type Vehicle struct {
	ID             int64         `json:"id"`
	Name           *string       `json:"name,omitempty"`
	RegNumber      *string       `json:"reg_number,omitempty"`
	Status         VehicleStatus `json:"status"`
	LastUpdated    *time.Time    `json:"last_updated,omitempty"`
	LastRecordedAt *time.Time    `json:"last_recorded_at,omitempty"`
}

type LocationPoint struct {
	ID         int64     `json:"id"`
	VehicleID  int64     `json:"vehicle_id"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"lng"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LatestPosition последняя известная точка транспорта в кэше
type LatestPosition struct {
	VehicleID  int64         `json:"vehicle_id"`
	Point      Point         `json:"point"`
	Speed      float64       `json:"speed"`
	Heading    float64       `json:"heading"`
	Status     VehicleStatus `json:"status,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

type NearbyVehicle struct {
	LatestPosition
	DistanceMeters float64 `json:"distance_meters"`
}

// DailySummary сводка по транспорту за календарный день
type DailySummary struct {
	VehicleID       int64     `json:"vehicle_id"`
	TravelDay       time.Time `json:"travel_day"`
	TotalUpdates    int64     `json:"total_updates"`
	AvgSpeed        float64   `json:"avg_speed"`
	MinSpeed        float64   `json:"min_speed"`
	MaxSpeed        float64   `json:"max_speed"`
	TotalDistanceKm float64   `json:"total_distance_km"`
}
