package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
)

const (
	fieldVehicleID  = "vehicleId"
	fieldLatitude   = "lat"
	fieldLongitude  = "lng"
	fieldSpeed      = "speed"
	fieldHeading    = "heading"
	fieldStatus     = "status"
	fieldRecordedAt = "recordedAt"
	// счётчик версий симулятора, принимается и игнорируется
	fieldVersion = "version"
)

var requiredFields = []string{fieldVehicleID, fieldLatitude, fieldLongitude, fieldSpeed, fieldHeading, fieldStatus}

var knownFields = map[string]struct{}{
	fieldVehicleID:  {},
	fieldLatitude:   {},
	fieldLongitude:  {},
	fieldSpeed:      {},
	fieldHeading:    {},
	fieldStatus:     {},
	fieldRecordedAt: {},
	fieldVersion:    {},
}

// ParseReport проверяет сырой отчёт и возвращает нормализованный Report.
// Ошибка всегда *InvalidReportError со списком всех нарушений.
func ParseReport(payload []byte, receivedAt time.Time) (types.Report, error) {
	var report types.Report
	invalid := &InvalidReportError{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		invalid.add("payload", "ожидается JSON-объект")
		return report, invalid
	}

	unknown := make([]string, 0)
	for key := range raw {
		if _, ok := knownFields[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		invalid.add(key, "неизвестное поле")
	}

	for _, field := range requiredFields {
		if value, ok := raw[field]; !ok || isNull(value) {
			invalid.add(field, "обязательное поле")
		}
	}

	if value, ok := present(raw, fieldVehicleID); ok {
		if _, ok := decodeNumber(value); !ok {
			invalid.add(fieldVehicleID, "ожидается число")
		} else if id, ok := decodeInteger(value); !ok || id < 1 {
			invalid.add(fieldVehicleID, "ожидается положительное целое число")
		} else {
			report.VehicleID = id
		}
	}

	if value, ok := present(raw, fieldLatitude); ok {
		if lat, ok := decodeNumber(value); !ok {
			invalid.add(fieldLatitude, "ожидается число")
		} else if lat < -90 || lat > 90 {
			invalid.add(fieldLatitude, "должна быть в диапазоне [-90, 90]")
		} else {
			report.Latitude = lat
		}
	}

	if value, ok := present(raw, fieldLongitude); ok {
		if lng, ok := decodeNumber(value); !ok {
			invalid.add(fieldLongitude, "ожидается число")
		} else if lng < -180 || lng > 180 {
			invalid.add(fieldLongitude, "должна быть в диапазоне [-180, 180]")
		} else {
			report.Longitude = lng
		}
	}

	if value, ok := present(raw, fieldSpeed); ok {
		if speed, ok := decodeNumber(value); !ok {
			invalid.add(fieldSpeed, "ожидается число")
		} else if speed < 0 {
			invalid.add(fieldSpeed, "не может быть отрицательной")
		} else {
			report.Speed = speed
		}
	}

	if value, ok := present(raw, fieldHeading); ok {
		if heading, ok := decodeNumber(value); !ok {
			invalid.add(fieldHeading, "ожидается число")
		} else if heading < 0 || heading >= 360 {
			invalid.add(fieldHeading, "должен быть в диапазоне [0, 360)")
		} else {
			report.Heading = heading
		}
	}

	if value, ok := present(raw, fieldStatus); ok {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			invalid.add(fieldStatus, "ожидается строка")
		} else if status, err := types.ParseVehicleStatus(s); err != nil {
			invalid.add(fieldStatus, "допустимые значения: moving, idling, stopped, active")
		} else {
			report.Status = status
		}
	}

	report.RecordedAt = receivedAt.UTC()
	if value, ok := present(raw, fieldRecordedAt); ok {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			invalid.add(fieldRecordedAt, "ожидается строка в формате RFC 3339")
		} else if recordedAt, err := time.Parse(time.RFC3339Nano, s); err != nil {
			invalid.add(fieldRecordedAt, "ожидается строка в формате RFC 3339")
		} else {
			report.RecordedAt = recordedAt.UTC()
		}
	}

	if len(invalid.Violations) > 0 {
		return types.Report{}, invalid
	}
	return report, nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func present(raw map[string]json.RawMessage, field string) (json.RawMessage, bool) {
	value, ok := raw[field]
	if !ok || isNull(value) {
		return nil, false
	}
	return value, true
}

func decodeNumber(value json.RawMessage) (float64, bool) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || trimmed[0] == '"' {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// maxExactInteger наибольшее целое, которое float64 хранит без потери точности
const maxExactInteger = 1 << 53

// decodeInteger читает целое без промежуточного float64. Запись вида 7.0
// принимается, только если значение представимо в float64 точно.
func decodeInteger(value json.RawMessage) (int64, bool) {
	var n json.Number
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > maxExactInteger {
		return 0, false
	}
	return int64(f), true
}
