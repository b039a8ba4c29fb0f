package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/filter"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/insert"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/update"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/out"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultLocationsLimit = 1000
	defaultSummariesLimit = 500
	vehicleColumns        = "id, name, reg_number, status, version, last_updated, last_recorded_at"
)

type DefaultPrimary struct {
	db *gorm.DB
}

// NewDefaultPrimary открывает gorm поверх уже открытого пула соединений
func NewDefaultPrimary(conn *sql.DB) (*DefaultPrimary, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 conn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	return &DefaultPrimary{db: db}, nil
}

func (s *DefaultPrimary) GetVehicles(ctx context.Context, filter filter.Vehicles) ([]out.Vehicle, error) {
	var vehicles []out.Vehicle

	q := s.db.WithContext(ctx).Table("vehicles").Select(vehicleColumns).Order("id")

	if filter.Status != nil {
		q = q.Where("status = ?", string(*filter.Status))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	if err := q.Scan(&vehicles).Error; err != nil {
		return nil, err
	}

	return vehicles, nil
}

func (s *DefaultPrimary) GetVehicle(ctx context.Context, id int64) (out.Vehicle, error) {
	var vehicle out.Vehicle

	res := s.db.WithContext(ctx).Table("vehicles").Select(vehicleColumns).Where("id = ?", id).Take(&vehicle)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return out.Vehicle{}, fmt.Errorf("транспорт %d: %w", id, ErrVehicleNotFound)
	}
	if res.Error != nil {
		return out.Vehicle{}, res.Error
	}

	return vehicle, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (s *DefaultPrimary) AddVehicle(ctx context.Context, v insert.Vehicle) (int64, error) {
	if !v.Status.IsValid() {
		return 0, fmt.Errorf("недопустимый статус транспорта: %q", string(v.Status))
	}

	if v.Name != nil && *v.Name == "" {
		v.Name = nil
	}
	if v.RegNumber != nil && *v.RegNumber == "" {
		v.RegNumber = nil
	}

	const q = `
		INSERT INTO vehicles (name, reg_number, status)
		VALUES (?, ?, ?)
		RETURNING id
	`
	var id int64
	if err := s.db.WithContext(ctx).Raw(q, v.Name, v.RegNumber, string(v.Status)).Scan(&id).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateVehicle
		}
		return 0, err
	}

	return id, nil
}

func (s *DefaultPrimary) UpdateVehicleById(ctx context.Context, id int64, update update.VehicleById) error {
	updates := map[string]interface{}{}
	if update.Name != nil {
		updates["name"] = *update.Name
	}
	if update.RegNumber != nil {
		updates["reg_number"] = *update.RegNumber
	}
	if len(updates) == 0 {
		return nil
	}
	updates["version"] = gorm.Expr("version + 1")

	res := s.db.WithContext(ctx).Table("vehicles").Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicateVehicle
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("транспорт %d: %w", id, ErrVehicleNotFound)
	}
	return nil
}

func (s *DefaultPrimary) GetLocations(ctx context.Context, filter filter.Locations) ([]out.Location, error) {
	var locations []out.Location

	q := s.db.WithContext(ctx).Table("vehicle_locations").
		Select("id, vehicle_id, ST_Y(location::geometry) AS latitude, ST_X(location::geometry) AS longitude, speed, heading, recorded_at").
		Where("vehicle_id = ?", filter.VehicleID)

	if filter.After != nil {
		q = q.Where("recorded_at >= ?", *filter.After)
	}
	if filter.Before != nil {
		q = q.Where("recorded_at < ?", *filter.Before)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLocationsLimit
	}

	if err := q.Order("recorded_at, id").Limit(limit).Scan(&locations).Error; err != nil {
		return nil, err
	}
	return locations, nil
}

func (s *DefaultPrimary) GetDailySummaries(ctx context.Context, filter filter.Summaries) ([]out.DailySummary, error) {
	var summaries []out.DailySummary

	q := s.db.WithContext(ctx).Table("daily_fleet_stats").
		Select("vehicle_id, travel_day, total_updates, avg_speed, min_speed, max_speed, total_distance_km")

	if filter.VehicleID != nil {
		q = q.Where("vehicle_id = ?", *filter.VehicleID)
	}
	if filter.Since != nil {
		q = q.Where("travel_day >= ?", filter.Since.Format("2006-01-02"))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSummariesLimit
	}

	if err := q.Order("travel_day DESC, vehicle_id").Limit(limit).Scan(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (s *DefaultPrimary) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
