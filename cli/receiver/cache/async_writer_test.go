package cache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	written map[int64][]float64
}

func (s *recordingStore) SetPosition(_ context.Context, position types.LatestPosition) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.written == nil {
		s.written = make(map[int64][]float64)
	}
	s.written[position.VehicleID] = append(s.written[position.VehicleID], position.Speed)
	return nil
}

func report(vehicleID int64, speed float64) types.Report {
	return types.Report{VehicleID: vehicleID, Latitude: 1, Longitude: 1, Speed: speed, Status: types.VehicleStatusMoving}
}

func TestAsyncWriter_PreservesPerVehicleOrder(t *testing.T) {
	store := &recordingStore{}
	writer := NewAsyncWriter(store, 4, 1000, time.Second, nil)

	for i := 0; i < 100; i++ {
		for vehicle := int64(1); vehicle <= 5; vehicle++ {
			require.NoError(t, writer.Dispatch(report(vehicle, float64(i))))
		}
	}
	writer.Close()

	for vehicle := int64(1); vehicle <= 5; vehicle++ {
		speeds := store.written[vehicle]
		require.Len(t, speeds, 100)
		for i, speed := range speeds {
			assert.Equal(t, float64(i), speed)
		}
	}
}

func TestAsyncWriter_DropsWhenQueueIsFull(t *testing.T) {
	store := &recordingStore{block: make(chan struct{})}
	writer := NewAsyncWriter(store, 1, 1, time.Second, nil)

	// первая запись занимает воркер, вторая очередь
	require.NoError(t, writer.Dispatch(report(1, 1)))
	assert.Eventually(t, func() bool {
		return writer.Dispatch(report(1, 2)) == nil
	}, time.Second, time.Millisecond)

	err := writer.Dispatch(report(1, 3))
	assert.ErrorIs(t, err, domain.ErrCacheUnavailable)

	close(store.block)
	writer.Close()
	assert.Equal(t, []float64{1, 2}, store.written[1])
}

func TestAsyncWriter_ReportsFailures(t *testing.T) {
	log.SetOutput(io.Discard)
	store := &recordingStore{err: errors.New("connection refused")}

	var failures atomic.Int64
	writer := NewAsyncWriter(store, 2, 10, time.Second, func(vehicleID int64, err error) {
		failures.Add(1)
	})

	require.NoError(t, writer.Dispatch(report(1, 1)))
	require.NoError(t, writer.Dispatch(report(2, 1)))
	writer.Close()

	assert.Equal(t, int64(2), failures.Load())
}

func TestAsyncWriter_DispatchAfterClose(t *testing.T) {
	writer := NewAsyncWriter(&recordingStore{}, 1, 1, 0, nil)
	writer.Close()
	writer.Close()

	assert.ErrorIs(t, writer.Dispatch(report(1, 1)), domain.ErrCacheUnavailable)
}

func TestAsyncWriter_WritesThroughToRedis(t *testing.T) {
	cache, _ := newTestRedis(t)
	writer := NewAsyncWriter(cache, 2, 10, time.Second, nil)

	require.NoError(t, writer.Dispatch(types.Report{VehicleID: 9, Latitude: 25.1972, Longitude: 55.2744, Speed: 10, Status: types.VehicleStatusIdling, RecordedAt: time.Now()}))
	writer.Close()

	got, err := cache.GetPosition(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, types.VehicleStatusIdling, got.Status)
}
