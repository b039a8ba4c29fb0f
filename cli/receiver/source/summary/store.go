package summary

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/lib/pq"
)

const (
	summaryTable = "daily_fleet_stats"
	// ключ advisory-блокировки, сериализующей пересчёты сводки
	refreshLockKey = 7305002

	selectWindow = `
		SELECT id, vehicle_id, ST_Y(location::geometry), ST_X(location::geometry), speed, heading, recorded_at
		FROM vehicle_locations
		WHERE recorded_at >= $1
		ORDER BY vehicle_id, recorded_at, id`
)

var summaryColumns = []string{"vehicle_id", "travel_day", "total_updates", "avg_speed", "min_speed", "max_speed", "total_distance_km"}

// Store чтение окна истории и замена суточной сводки
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) StreamLocations(ctx context.Context, since time.Time, visit func(types.LocationPoint) error) error {
	rows, err := s.db.QueryContext(ctx, selectWindow, since.UTC())
	if err != nil {
		return fmt.Errorf("не удалось выбрать точки окна: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p types.LocationPoint
		if err := rows.Scan(&p.ID, &p.VehicleID, &p.Latitude, &p.Longitude, &p.Speed, &p.Heading, &p.RecordedAt); err != nil {
			return fmt.Errorf("не удалось разобрать точку: %w", err)
		}
		if err := visit(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ReplaceSummaries заменяет содержимое сводки в одной транзакции.
// Читатели до фиксации видят прежний набор строк.
func (s *Store) ReplaceSummaries(ctx context.Context, summaries []types.DailySummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", refreshLockKey); err != nil {
		return fmt.Errorf("не удалось получить блокировку сводки: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+summaryTable); err != nil {
		return fmt.Errorf("не удалось очистить сводку: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(summaryTable, summaryColumns...))
	if err != nil {
		return fmt.Errorf("не удалось подготовить копирование сводки: %w", err)
	}
	for _, row := range summaries {
		if _, err := stmt.ExecContext(ctx, row.VehicleID, row.TravelDay.Format("2006-01-02"), row.TotalUpdates,
			row.AvgSpeed, row.MinSpeed, row.MaxSpeed, row.TotalDistanceKm); err != nil {
			stmt.Close()
			return fmt.Errorf("не удалось записать сводку транспорта %d за %s: %w", row.VehicleID, row.TravelDay.Format("2006-01-02"), err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("не удалось завершить копирование сводки: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("не удалось завершить копирование сводки: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось зафиксировать сводку: %w", err)
	}
	return nil
}
