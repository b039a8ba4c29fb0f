package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/lib/pq"
)

// RegistryUpdateMode правило обновления строки транспорта при записи отчёта
type RegistryUpdateMode string

const (
	// RegistryLastReceived последний принятый отчёт перезаписывает статус
	RegistryLastReceived RegistryUpdateMode = "last_received"
	// RegistryLastRecorded статус меняется, только если отчёт не старше уже записанного
	RegistryLastRecorded RegistryUpdateMode = "last_recorded"
)

func (m RegistryUpdateMode) IsValid() bool {
	return m == RegistryLastReceived || m == RegistryLastRecorded
}

const (
	updateLastReceived = `
		UPDATE vehicles
		SET status = $2, last_updated = NOW(), last_recorded_at = $3
		WHERE id = $1`

	updateLastRecorded = `
		UPDATE vehicles
		SET status = $2, last_updated = NOW(), last_recorded_at = $3
		WHERE id = $1 AND (last_recorded_at IS NULL OR last_recorded_at <= $3)`

	vehicleExists = `SELECT EXISTS (SELECT 1 FROM vehicles WHERE id = $1)`
)

// Store запись отчётов в секционированную историю и обновление реестра транспорта
type Store struct {
	db   *sql.DB
	mode RegistryUpdateMode
}

func NewStore(db *sql.DB, mode RegistryUpdateMode) *Store {
	if !mode.IsValid() {
		mode = RegistryLastReceived
	}
	return &Store{db: db, mode: mode}
}

func insertQuery(partition string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (vehicle_id, location, speed, heading, recorded_at)
		VALUES ($1, ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography, $4, $5, $6)`, pq.QuoteIdentifier(partition))
}

// Append добавляет точку в секцию partition и в той же транзакции обновляет реестр
func (s *Store) Append(ctx context.Context, report types.Report, partition types.PartitionRange) error {
	if partition.Name == "" || !partition.Covers(report.RecordedAt) {
		return fmt.Errorf("секция %q не покрывает %s: %w", partition.Name, report.RecordedAt.Format(time.RFC3339), domain.ErrNoPartitionForTimestamp)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("не удалось начать транзакцию", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, insertQuery(partition.Name),
		report.VehicleID, report.Longitude, report.Latitude, report.Speed, report.Heading, report.RecordedAt.UTC()); err != nil {
		return classify(fmt.Sprintf("не удалось добавить точку транспорта %d", report.VehicleID), err)
	}

	update := updateLastReceived
	if s.mode == RegistryLastRecorded {
		update = updateLastRecorded
	}
	result, err := tx.ExecContext(ctx, update, report.VehicleID, string(report.Status), report.RecordedAt.UTC())
	if err != nil {
		return classify(fmt.Sprintf("не удалось обновить транспорт %d", report.VehicleID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return classify("не удалось получить число обновлённых строк", err)
	}
	if affected == 0 {
		// в режиме last_recorded строка не меняется для устаревшего отчёта
		var exists bool
		if err := tx.QueryRowContext(ctx, vehicleExists, report.VehicleID).Scan(&exists); err != nil {
			return classify(fmt.Sprintf("не удалось проверить транспорт %d", report.VehicleID), err)
		}
		if !exists {
			return fmt.Errorf("транспорт %d: %w", report.VehicleID, domain.ErrUnknownVehicle)
		}
	}

	if err := tx.Commit(); err != nil {
		return classify("не удалось зафиксировать транзакцию", err)
	}
	return nil
}

// classify сопоставляет ошибку драйвера с ошибками домена
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23503":
			return fmt.Errorf("%s: %w: %v", op, domain.ErrUnknownVehicle, err)
		// у ошибки маршрутизации строки в секцию нет имени ограничения
		case pqErr.Code == "23514" && pqErr.Constraint == "", pqErr.Code == "42P01":
			return fmt.Errorf("%s: %w: %v", op, domain.ErrNoPartitionForTimestamp, err)
		case pqErr.Code.Class() == "08" || pqErr.Code.Class() == "57":
			return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
