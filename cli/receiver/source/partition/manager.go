package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

var (
	ErrPartitionNotProvisioned = errors.New("секция не создана")
	ErrPartitionOverlap        = errors.New("диапазон секции пересекается с существующей")
)

const (
	// ключ advisory-блокировки, сериализующей изменения секций
	lifecycleLockKey = 7305001

	selectState   = `SELECT state FROM location_partition WHERE name = $1 FOR UPDATE`
	selectOverlap = `
		SELECT name FROM location_partition
		WHERE range_start < $2 AND range_end > $1 AND name <> $3
		LIMIT 1`
	insertRegistry = `
		INSERT INTO location_partition (name, range_start, range_end, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING`
	updateState    = `UPDATE location_partition SET state = $2 WHERE name = $1`
	selectRegistry = `SELECT name, range_start, range_end, state FROM location_partition ORDER BY range_start`
)

// Manager административные операции над месячными секциями истории
type Manager struct {
	db *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

func boundLiteral(t time.Time) string {
	return pq.QuoteLiteral(t.UTC().Format("2006-01-02 15:04:05-07"))
}

func createPartitionQuery(r types.PartitionRange) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM (%s) TO (%s)",
		pq.QuoteIdentifier(r.Name), pq.QuoteIdentifier(types.LocationTable), boundLiteral(r.From), boundLiteral(r.To))
}

func createIndexQueries(r types.PartitionRange) []string {
	table := pq.QuoteIdentifier(r.Name)
	return []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (location)", pq.QuoteIdentifier("idx_"+r.Name+"_location"), table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (vehicle_id, recorded_at)", pq.QuoteIdentifier("idx_"+r.Name+"_vehicle_time"), table),
	}
}

func (m *Manager) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lifecycleLockKey); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("не удалось получить блокировку секций: %w", err)
	}
	return tx, nil
}

func currentState(ctx context.Context, tx *sql.Tx, name string) (types.PartitionState, error) {
	var state string
	err := tx.QueryRowContext(ctx, selectState, name).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PartitionStateUnprovisioned, nil
	}
	if err != nil {
		return "", fmt.Errorf("не удалось получить состояние секции %s: %w", name, err)
	}
	return types.PartitionState(state), nil
}

// Provision создаёт секцию для месяца, содержащего month. Повторный вызов ничего не меняет.
func (m *Manager) Provision(ctx context.Context, month time.Time) (types.PartitionRange, error) {
	r := types.MonthRange(month)

	tx, err := m.begin(ctx)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()

	state, err := currentState(ctx, tx, r.Name)
	if err != nil {
		return r, err
	}
	if state != types.PartitionStateUnprovisioned {
		r.State = state
		return r, nil
	}

	var other string
	err = tx.QueryRowContext(ctx, selectOverlap, r.From, r.To, r.Name).Scan(&other)
	if err == nil {
		return r, fmt.Errorf("%s и %s: %w", r.Name, other, ErrPartitionOverlap)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("не удалось проверить пересечение секций: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createPartitionQuery(r)); err != nil {
		return r, fmt.Errorf("не удалось создать секцию %s: %w", r.Name, err)
	}
	if _, err := tx.ExecContext(ctx, insertRegistry, r.Name, r.From, r.To, string(types.PartitionStateProvisioned)); err != nil {
		return r, fmt.Errorf("не удалось зарегистрировать секцию %s: %w", r.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return r, fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}

	r.State = types.PartitionStateProvisioned
	log.WithField("partition", r.Name).Info("Секция создана")
	return r, nil
}

// Index строит пространственный и (vehicle_id, recorded_at) индексы созданной секции
func (m *Manager) Index(ctx context.Context, month time.Time) (types.PartitionRange, error) {
	r := types.MonthRange(month)

	tx, err := m.begin(ctx)
	if err != nil {
		return r, err
	}
	defer tx.Rollback()

	state, err := currentState(ctx, tx, r.Name)
	if err != nil {
		return r, err
	}
	switch state {
	case types.PartitionStateUnprovisioned:
		return r, fmt.Errorf("%s: %w", r.Name, ErrPartitionNotProvisioned)
	case types.PartitionStateIndexed:
		r.State = state
		return r, nil
	}

	for _, q := range createIndexQueries(r) {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return r, fmt.Errorf("не удалось создать индекс секции %s: %w", r.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, updateState, r.Name, string(types.PartitionStateIndexed)); err != nil {
		return r, fmt.Errorf("не удалось обновить состояние секции %s: %w", r.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return r, fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}

	r.State = types.PartitionStateIndexed
	log.WithField("partition", r.Name).Info("Индексы секции созданы")
	return r, nil
}

// Ensure доводит до состояния indexed секции months месяцев начиная с from
func (m *Manager) Ensure(ctx context.Context, from time.Time, months int) ([]types.PartitionRange, error) {
	ranges := make([]types.PartitionRange, 0, months)
	start := types.MonthRange(from).From
	for i := 0; i < months; i++ {
		month := start.AddDate(0, i, 0)
		if _, err := m.Provision(ctx, month); err != nil {
			return ranges, err
		}
		r, err := m.Index(ctx, month)
		if err != nil {
			return ranges, err
		}
		ranges = append(ranges, r)
	}
	return ranges, nil
}

// List читает реестр секций
func (m *Manager) List(ctx context.Context) ([]types.PartitionRange, error) {
	rows, err := m.db.QueryContext(ctx, selectRegistry)
	if err != nil {
		return nil, fmt.Errorf("не удалось прочитать реестр секций: %w", err)
	}
	defer rows.Close()

	var ranges []types.PartitionRange
	for rows.Next() {
		var r types.PartitionRange
		var state string
		if err := rows.Scan(&r.Name, &r.From, &r.To, &state); err != nil {
			return nil, fmt.Errorf("не удалось разобрать строку реестра секций: %w", err)
		}
		r.From, r.To, r.State = r.From.UTC(), r.To.UTC(), types.PartitionState(state)
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения реестра секций: %w", err)
	}
	return ranges, nil
}
