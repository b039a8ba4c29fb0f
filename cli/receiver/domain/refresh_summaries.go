package domain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	cron "github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

const DefaultSummaryWindowDays = 90

type SummaryRepository interface {
	// StreamLocations обходит точки с recorded_at >= since в порядке vehicle_id, recorded_at, id
	StreamLocations(ctx context.Context, since time.Time, visit func(types.LocationPoint) error) error
	// ReplaceSummaries атомарно заменяет всё содержимое сводки
	ReplaceSummaries(ctx context.Context, summaries []types.DailySummary) error
}

type RefreshSummaries struct {
	Repository SummaryRepository
	WindowDays int
	Location   *time.Location
	Stats      *Stats

	cronScheduler *cron.Cron
}

type summaryBucket struct {
	summary  types.DailySummary
	speedSum float64
	last     types.Point
}

// WindowStart начало окна агрегации: полночь дня, отстоящего на WindowDays от текущего
func (s *RefreshSummaries) WindowStart(at time.Time) time.Time {
	loc := s.location()
	local := at.In(loc)
	days := s.WindowDays
	if days <= 0 {
		days = DefaultSummaryWindowDays
	}
	return time.Date(local.Year(), local.Month(), local.Day()-days, 0, 0, 0, 0, loc)
}

func (s *RefreshSummaries) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Run пересчитывает сводку целиком по точкам окна
func (s *RefreshSummaries) Run(ctx context.Context) error {
	since := s.WindowStart(now())
	loc := s.location()

	var summaries []types.DailySummary
	var current *summaryBucket

	flush := func() {
		if current == nil {
			return
		}
		current.summary.AvgSpeed = current.speedSum / float64(current.summary.TotalUpdates)
		summaries = append(summaries, current.summary)
		current = nil
	}

	err := s.Repository.StreamLocations(ctx, since, func(point types.LocationPoint) error {
		local := point.RecordedAt.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		position := types.Point{Latitude: point.Latitude, Longitude: point.Longitude}

		if current != nil && (current.summary.VehicleID != point.VehicleID || !current.summary.TravelDay.Equal(day)) {
			flush()
		}

		if current == nil {
			current = &summaryBucket{
				summary: types.DailySummary{
					VehicleID: point.VehicleID,
					TravelDay: day,
					MinSpeed:  math.Inf(1),
					MaxSpeed:  math.Inf(-1),
				},
			}
		} else {
			current.summary.TotalDistanceKm += current.last.DistanceTo(position) / 1000.0
		}

		current.last = position
		current.summary.TotalUpdates++
		current.speedSum += point.Speed
		current.summary.MinSpeed = math.Min(current.summary.MinSpeed, point.Speed)
		current.summary.MaxSpeed = math.Max(current.summary.MaxSpeed, point.Speed)
		return nil
	})
	if err != nil {
		s.failed()
		return fmt.Errorf("не удалось прочитать историю местоположений: %w", err)
	}
	flush()

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].VehicleID != summaries[j].VehicleID {
			return summaries[i].VehicleID < summaries[j].VehicleID
		}
		return summaries[i].TravelDay.Before(summaries[j].TravelDay)
	})

	if err := s.Repository.ReplaceSummaries(ctx, summaries); err != nil {
		s.failed()
		return fmt.Errorf("не удалось заменить суточную сводку: %w", err)
	}

	if s.Stats != nil {
		s.Stats.summaryRefreshes.Add(1)
	}
	log.WithFields(log.Fields{"rows": len(summaries), "since": since.Format(time.RFC3339)}).Info("Суточная сводка пересчитана")
	return nil
}

func (s *RefreshSummaries) failed() {
	if s.Stats != nil {
		s.Stats.summaryFailures.Add(1)
	}
}

// Schedule запускает пересчёт по cron-выражению
func (s *RefreshSummaries) Schedule(expression string, timeout time.Duration) error {
	s.cronScheduler = cron.New(cron.WithLocation(s.location()))

	_, err := s.cronScheduler.AddFunc(expression, func() {
		log.Info("Запуск запланированного пересчёта суточной сводки")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Run(ctx); err != nil {
			log.WithField("err", err).Error("Ошибка пересчёта суточной сводки")
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка при настройке cron-задачи: %w", err)
	}

	s.cronScheduler.Start()
	log.Infof("Запланирован пересчёт суточной сводки: %s", expression)
	return nil
}

func (s *RefreshSummaries) Shutdown() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
		log.Info("Cron-планировщик сводки остановлен")
	}
}
