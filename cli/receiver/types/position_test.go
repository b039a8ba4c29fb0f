package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoint_DistanceTo(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Point
		expected float64
		delta    float64
	}{
		{
			name:     "Same point",
			a:        Point{Latitude: 25.1972, Longitude: 55.2744},
			b:        Point{Latitude: 25.1972, Longitude: 55.2744},
			expected: 0,
			delta:    1e-9,
		},
		{
			name:     "One hundredth of a degree of latitude",
			a:        Point{Latitude: 25.1972, Longitude: 55.2744},
			b:        Point{Latitude: 25.2072, Longitude: 55.2744},
			expected: 1111.95,
			delta:    1,
		},
		{
			name:     "One degree of longitude on the equator",
			a:        Point{Latitude: 0, Longitude: 0},
			b:        Point{Latitude: 0, Longitude: 1},
			expected: 111195,
			delta:    10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.a.DistanceTo(tt.b), tt.delta)
			assert.InDelta(t, tt.expected, tt.b.DistanceTo(tt.a), tt.delta)
		})
	}
}

func TestBox(t *testing.T) {
	box := Box{MinLatitude: 25.0, MinLongitude: 55.0, MaxLatitude: 25.2, MaxLongitude: 55.4}

	assert.True(t, box.Contains(Point{Latitude: 25.1, Longitude: 55.2}))
	assert.True(t, box.Contains(Point{Latitude: 25.0, Longitude: 55.4}))
	assert.False(t, box.Contains(Point{Latitude: 25.3, Longitude: 55.2}))
	center := box.Center()
	assert.InDelta(t, 25.1, center.Latitude, 1e-9)
	assert.InDelta(t, 55.2, center.Longitude, 1e-9)

	radius := box.CircumscribedRadius()
	assert.GreaterOrEqual(t, radius, center.DistanceTo(Point{Latitude: 25.0, Longitude: 55.0}))
	assert.GreaterOrEqual(t, radius, center.DistanceTo(Point{Latitude: 25.2, Longitude: 55.4}))
}

func TestMonthRange(t *testing.T) {
	r := MonthRange(time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, "vehicle_locations_y2026_m01", r.Name)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), r.To)

	assert.True(t, r.Covers(r.From))
	assert.False(t, r.Covers(r.To))

	dec := MonthRange(time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, "vehicle_locations_y2025_m12", dec.Name)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), dec.To)

	// A local timestamp just past midnight UTC+4 still belongs to the previous UTC month.
	dubai := time.FixedZone("GST", 4*3600)
	local := MonthRange(time.Date(2026, time.February, 1, 2, 0, 0, 0, dubai))
	assert.Equal(t, "vehicle_locations_y2026_m01", local.Name)
}

func TestVehicleStatus(t *testing.T) {
	for _, s := range []string{"moving", "idling", "stopped", "active"} {
		v, err := ParseVehicleStatus(s)
		assert.NoError(t, err)
		assert.Equal(t, VehicleStatus(s), v)
	}

	_, err := ParseVehicleStatus("parked")
	assert.Error(t, err)

	var vs VehicleStatus
	assert.NoError(t, vs.Scan([]byte("idling")))
	assert.Equal(t, VehicleStatusIdling, vs)
	assert.Error(t, vs.Scan(42))
}
