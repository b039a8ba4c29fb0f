package cache

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	log "github.com/sirupsen/logrus"
)

type PositionStore interface {
	SetPosition(ctx context.Context, position types.LatestPosition) error
}

// AsyncWriter пишет местоположения в кэш в фоне.
// Записи одного транспорта попадают в один шард и применяются по порядку.
type AsyncWriter struct {
	store   PositionStore
	shards  []chan types.LatestPosition
	timeout time.Duration
	failed  func(vehicleID int64, err error)

	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewAsyncWriter(store PositionStore, workers, buffer int, timeout time.Duration, failed func(vehicleID int64, err error)) *AsyncWriter {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if buffer <= 0 {
		buffer = 1
	}
	w := &AsyncWriter{
		store:   store,
		shards:  make([]chan types.LatestPosition, workers),
		timeout: timeout,
		failed:  failed,
	}
	for i := range w.shards {
		w.shards[i] = make(chan types.LatestPosition, buffer)
		w.wg.Add(1)
		go w.worker(w.shards[i])
	}
	return w
}

func (w *AsyncWriter) worker(ch chan types.LatestPosition) {
	defer w.wg.Done()
	for position := range ch {
		ctx := context.Background()
		var cancel context.CancelFunc = func() {}
		if w.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, w.timeout)
		}
		err := w.store.SetPosition(ctx, position)
		cancel()

		if err != nil {
			log.WithFields(log.Fields{"vehicle_id": position.VehicleID, "err": err}).Error("Ошибка записи местоположения в кэш")
			if w.failed != nil {
				w.failed(position.VehicleID, err)
			}
		}
	}
}

func (w *AsyncWriter) shard(vehicleID int64) chan types.LatestPosition {
	n := int64(len(w.shards))
	idx := vehicleID % n
	if idx < 0 {
		idx += n
	}
	return w.shards[idx]
}

// Dispatch ставит запись в очередь шарда. Переполненная очередь не ждёт, запись отбрасывается.
func (w *AsyncWriter) Dispatch(report types.Report) error {
	position := types.LatestPosition{
		VehicleID:  report.VehicleID,
		Point:      report.Point(),
		Speed:      report.Speed,
		Heading:    report.Heading,
		Status:     report.Status,
		RecordedAt: report.RecordedAt,
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return fmt.Errorf("асинхронная запись в кэш остановлена: %w", domain.ErrCacheUnavailable)
	}

	select {
	case w.shard(report.VehicleID) <- position:
		return nil
	default:
		return fmt.Errorf("очередь записи в кэш переполнена: %w", domain.ErrCacheUnavailable)
	}
}

// Close дожидается применения всех поставленных записей
func (w *AsyncWriter) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, ch := range w.shards {
			close(ch)
		}
		w.mu.Unlock()
		w.wg.Wait()
	})
}
