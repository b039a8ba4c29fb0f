package message

import (
	"testing"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() types.Report {
	return types.Report{
		VehicleID:  7,
		Latitude:   25.1972,
		Longitude:  55.2744,
		Speed:      40,
		Heading:    180,
		Status:     types.VehicleStatusMoving,
		RecordedAt: time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewUpdate(t *testing.T) {
	u := NewUpdate("vehicle_update", testReport())

	_, err := uuid.Parse(u.EventID)
	assert.NoError(t, err)
	assert.Equal(t, "vehicle_update", u.Topic)
	assert.Equal(t, "2026-01-15T10:00:00Z", u.RecordedAt)
	assert.NotEqual(t, u.EventID, NewUpdate("vehicle_update", testReport()).EventID)
}

func TestUpdate_JSONFieldNames(t *testing.T) {
	u := NewUpdate("vehicle_update", testReport())
	u.EventID = "e1"

	data, err := u.Encode("")
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventId":"e1","topic":"vehicle_update","vehicleId":7,"lat":25.1972,"lng":55.2744,"speed":40,"heading":180,"status":"moving","recordedAt":"2026-01-15T10:00:00Z"}`, string(data))
}

func TestUpdate_Codecs(t *testing.T) {
	u := NewUpdate("vehicle_update", testReport())

	for _, codec := range []string{CodecJSON, CodecMsgpack} {
		data, err := u.Encode(codec)
		require.NoError(t, err, codec)

		decoded, err := Decode(codec, data)
		require.NoError(t, err, codec)
		assert.Equal(t, u, decoded, codec)
	}

	_, err := u.Encode("xml")
	assert.Error(t, err)
}
