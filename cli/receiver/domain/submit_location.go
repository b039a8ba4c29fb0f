package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	log "github.com/sirupsen/logrus"
)

const UpdateTopic = "vehicle_update"

var now = time.Now

type PartitionResolver interface {
	Resolve(recordedAt time.Time) (types.PartitionRange, error)
}

// PositionCache асинхронная запись в кэш последних местоположений.
// Dispatch не блокируется, ошибка означает, что запись отброшена.
type PositionCache interface {
	Dispatch(report types.Report) error
	Close()
}

type Broadcaster interface {
	Publish(topic string, report types.Report) error
	Close()
}

type History interface {
	Append(ctx context.Context, report types.Report, partition types.PartitionRange) error
}

type SubmitLocation struct {
	Partitions  PartitionResolver
	Cache       PositionCache
	Broadcaster Broadcaster
	History     History
	Stats       *Stats
}

// Run проверяет отчёт, рассылает его в кэш и слушателям и дожидается записи в историю
func (s *SubmitLocation) Run(ctx context.Context, payload []byte) (types.Report, error) {
	report, err := ParseReport(payload, now())
	if err != nil {
		s.Stats.rejected.Add(1)
		return report, err
	}

	partition, err := s.Partitions.Resolve(report.RecordedAt)
	if err != nil {
		s.Stats.rejected.Add(1)
		return report, fmt.Errorf("отчёт транспорта %d от %s: %w", report.VehicleID, report.RecordedAt.Format(time.RFC3339), err)
	}

	if s.Cache != nil {
		if err := s.Cache.Dispatch(report); err != nil {
			s.Stats.CacheFailed()
			log.WithFields(log.Fields{"vehicle_id": report.VehicleID, "err": err}).Warn("Местоположение не записано в кэш")
		}
	}

	if s.Broadcaster != nil {
		if err := s.Broadcaster.Publish(UpdateTopic, report); err != nil {
			s.Stats.BroadcastFailed()
			log.WithFields(log.Fields{"vehicle_id": report.VehicleID, "err": err}).Warn("Обновление не разослано")
		}
	}

	if err := s.History.Append(ctx, report, partition); err != nil {
		if errors.Is(err, ErrUnknownVehicle) || errors.Is(err, ErrNoPartitionForTimestamp) {
			s.Stats.rejected.Add(1)
		} else {
			s.Stats.storeFailures.Add(1)
		}
		return report, fmt.Errorf("не удалось сохранить отчёт транспорта %d: %w", report.VehicleID, err)
	}

	s.Stats.accepted.Add(1)
	return report, nil
}

// Shutdown дожидается отправки накопленных записей в кэш и слушателям
func (s *SubmitLocation) Shutdown() {
	if s.Cache != nil {
		s.Cache.Close()
	}
	if s.Broadcaster != nil {
		s.Broadcaster.Close()
	}
	log.Info("Приём местоположений остановлен")
}
