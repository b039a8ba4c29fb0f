package message

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/google/uuid"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// Update сообщение о принятом отчёте для слушателей
type Update struct {
	EventID    string              `json:"eventId" msgpack:"eventId"`
	Topic      string              `json:"topic" msgpack:"topic"`
	VehicleID  int64               `json:"vehicleId" msgpack:"vehicleId"`
	Latitude   float64             `json:"lat" msgpack:"lat"`
	Longitude  float64             `json:"lng" msgpack:"lng"`
	Speed      float64             `json:"speed" msgpack:"speed"`
	Heading    float64             `json:"heading" msgpack:"heading"`
	Status     types.VehicleStatus `json:"status" msgpack:"status"`
	RecordedAt string              `json:"recordedAt" msgpack:"recordedAt"`
}

func NewUpdate(topic string, report types.Report) Update {
	return Update{
		EventID:    uuid.NewString(),
		Topic:      topic,
		VehicleID:  report.VehicleID,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		Speed:      report.Speed,
		Heading:    report.Heading,
		Status:     report.Status,
		RecordedAt: report.RecordedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (u Update) ToBytes() ([]byte, error) {
	return json.Marshal(u)
}

// Encode сериализует обновление в формате codec, пустое значение означает JSON
func (u Update) Encode(codec string) ([]byte, error) {
	switch codec {
	case "", CodecJSON:
		return u.ToBytes()
	case CodecMsgpack:
		return msgpack.Marshal(u)
	default:
		return nil, fmt.Errorf("неизвестный формат сериализации: %s", codec)
	}
}

func Decode(codec string, data []byte) (Update, error) {
	var u Update
	var err error
	switch codec {
	case "", CodecJSON:
		err = json.Unmarshal(data, &u)
	case CodecMsgpack:
		err = msgpack.Unmarshal(data, &u)
	default:
		err = fmt.Errorf("неизвестный формат сериализации: %s", codec)
	}
	return u, err
}
