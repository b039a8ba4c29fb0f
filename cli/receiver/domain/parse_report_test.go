package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

func violatedFields(t *testing.T, err error) []string {
	t.Helper()
	require.True(t, errors.Is(err, ErrInvalidReport), "expected ErrInvalidReport, got %v", err)

	var invalid *InvalidReportError
	require.True(t, errors.As(err, &invalid))

	fields := make([]string, 0, len(invalid.Violations))
	for _, v := range invalid.Violations {
		fields = append(fields, v.Field)
	}
	return fields
}

func TestParseReport_Valid(t *testing.T) {
	payload := `{"vehicleId": 7, "lat": 25.1972, "lng": 55.2744, "speed": 42.5, "heading": 90, "status": "moving", "recordedAt": "2026-01-15T09:30:00+04:00"}`

	report, err := ParseReport([]byte(payload), receivedAt)
	require.NoError(t, err)

	assert.Equal(t, types.Report{
		VehicleID:  7,
		Latitude:   25.1972,
		Longitude:  55.2744,
		Speed:      42.5,
		Heading:    90,
		Status:     types.VehicleStatusMoving,
		RecordedAt: time.Date(2026, time.January, 15, 5, 30, 0, 0, time.UTC),
	}, report)
}

func TestParseReport_RecordedAtDefaultsToReceivedAt(t *testing.T) {
	payload := `{"vehicleId": 1, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "stopped"}`

	report, err := ParseReport([]byte(payload), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, receivedAt, report.RecordedAt)
}

func TestParseReport_VersionIsIgnored(t *testing.T) {
	payload := `{"vehicleId": 1, "lat": 1, "lng": 1, "speed": 1, "heading": 1, "status": "idling", "version": 12}`

	report, err := ParseReport([]byte(payload), receivedAt)
	require.NoError(t, err)
	assert.Equal(t, types.VehicleStatusIdling, report.Status)
}

func TestParseReport_Boundaries(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		fields  []string
	}{
		{
			name:    "extreme but valid values",
			payload: `{"vehicleId": 1, "lat": -90, "lng": 180, "speed": 0, "heading": 359.999, "status": "active"}`,
		},
		{
			name:    "heading of 360 is out of range",
			payload: `{"vehicleId": 1, "lat": 0, "lng": 0, "speed": 0, "heading": 360, "status": "moving"}`,
			fields:  []string{"heading"},
		},
		{
			name:    "latitude above 90",
			payload: `{"vehicleId": 1, "lat": 90.0001, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"lat"},
		},
		{
			name:    "longitude below -180",
			payload: `{"vehicleId": 1, "lat": 0, "lng": -180.5, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"lng"},
		},
		{
			name:    "negative speed",
			payload: `{"vehicleId": 1, "lat": 0, "lng": 0, "speed": -1, "heading": 0, "status": "moving"}`,
			fields:  []string{"speed"},
		},
		{
			name:    "zero vehicle id",
			payload: `{"vehicleId": 0, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"vehicleId"},
		},
		{
			name:    "fractional vehicle id",
			payload: `{"vehicleId": 1.5, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"vehicleId"},
		},
		{
			name:    "vehicle id beyond int64",
			payload: `{"vehicleId": 9223372036854775808, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"vehicleId"},
		},
		{
			name:    "vehicle id in exponent form beyond exact float range",
			payload: `{"vehicleId": 1e19, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"vehicleId"},
		},
		{
			name:    "integral vehicle id written as float",
			payload: `{"vehicleId": 7.0, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
		},
		{
			name:    "vehicle id as string",
			payload: `{"vehicleId": "1", "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`,
			fields:  []string{"vehicleId"},
		},
		{
			name:    "unknown status",
			payload: `{"vehicleId": 1, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "flying"}`,
			fields:  []string{"status"},
		},
		{
			name:    "malformed recordedAt",
			payload: `{"vehicleId": 1, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving", "recordedAt": "yesterday"}`,
			fields:  []string{"recordedAt"},
		},
		{
			name:    "unrecognized field",
			payload: `{"vehicleId": 1, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving", "altitude": 10}`,
			fields:  []string{"altitude"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReport([]byte(tt.payload), receivedAt)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.fields, violatedFields(t, err))
		})
	}
}

func TestParseReport_LargeVehicleIDsAreExact(t *testing.T) {
	tests := map[string]int64{
		"9223372036854775807": 9223372036854775807,
		"9007199254740993":    9007199254740993,
	}

	for raw, expected := range tests {
		payload := `{"vehicleId": ` + raw + `, "lat": 0, "lng": 0, "speed": 0, "heading": 0, "status": "moving"}`
		report, err := ParseReport([]byte(payload), receivedAt)
		require.NoError(t, err, raw)
		assert.Equal(t, expected, report.VehicleID, raw)
	}
}

func TestParseReport_ReportsEveryViolation(t *testing.T) {
	payload := `{"vehicleId": -3, "lat": 91, "lng": 200, "heading": 400, "status": "unknown"}`

	_, err := ParseReport([]byte(payload), receivedAt)
	fields := violatedFields(t, err)

	assert.ElementsMatch(t, []string{"vehicleId", "lat", "lng", "speed", "heading", "status"}, fields)
}

func TestParseReport_MissingAndNullFields(t *testing.T) {
	_, err := ParseReport([]byte(`{"vehicleId": null}`), receivedAt)
	fields := violatedFields(t, err)

	assert.ElementsMatch(t, []string{"vehicleId", "lat", "lng", "speed", "heading", "status"}, fields)
}

func TestParseReport_NotAnObject(t *testing.T) {
	for _, payload := range []string{``, `[]`, `"text"`, `null`, `{"vehicleId": 1`} {
		_, err := ParseReport([]byte(payload), receivedAt)
		assert.Equal(t, []string{"payload"}, violatedFields(t, err), "payload %q", payload)
	}
}
