package history

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	recordedAt = time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)
	january    = types.PartitionRange{
		Name:  "vehicle_locations_y2026_m01",
		From:  time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:    time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		State: types.PartitionStateIndexed,
	}
	insertPattern = regexp.QuoteMeta(`INSERT INTO "vehicle_locations_y2026_m01"`)
	updatePattern = regexp.QuoteMeta(`UPDATE vehicles`)
)

func testReport() types.Report {
	return types.Report{
		VehicleID:  7,
		Latitude:   25.1972,
		Longitude:  55.2744,
		Speed:      40,
		Heading:    90,
		Status:     types.VehicleStatusMoving,
		RecordedAt: recordedAt,
	}
}

func newMockStore(t *testing.T, mode RegistryUpdateMode) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, mode), mock
}

func TestAppend_LastReceived(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)

	mock.ExpectBegin()
	mock.ExpectExec(insertPattern).
		WithArgs(int64(7), 55.2744, 25.1972, 40.0, 90.0, recordedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(updatePattern).
		WithArgs(int64(7), "moving", recordedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Append(context.Background(), testReport(), january))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_LastRecordedSkipsStaleReport(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastRecorded)

	mock.ExpectBegin()
	mock.ExpectExec(insertPattern).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`last_recorded_at <= $3`)).
		WithArgs(int64(7), "moving", recordedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	require.NoError(t, store.Append(context.Background(), testReport(), january))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_UnknownVehicleOnForeignKey(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)

	mock.ExpectBegin()
	mock.ExpectExec(insertPattern).WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	err := store.Append(context.Background(), testReport(), january)
	assert.ErrorIs(t, err, domain.ErrUnknownVehicle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_UnknownVehicleWithoutRegistryRow(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)

	mock.ExpectBegin()
	mock.ExpectExec(insertPattern).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(updatePattern).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := store.Append(context.Background(), testReport(), january)
	assert.ErrorIs(t, err, domain.ErrUnknownVehicle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_PartitionMismatch(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)

	report := testReport()
	report.RecordedAt = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	err := store.Append(context.Background(), report, january)
	assert.ErrorIs(t, err, domain.ErrNoPartitionForTimestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{name: "partition constraint", err: &pq.Error{Code: "23514"}, expected: domain.ErrNoPartitionForTimestamp},
		{name: "partition dropped", err: &pq.Error{Code: "42P01"}, expected: domain.ErrNoPartitionForTimestamp},
		{name: "connection failure", err: &pq.Error{Code: "08006"}, expected: domain.ErrStoreUnavailable},
		{name: "admin shutdown", err: &pq.Error{Code: "57P01"}, expected: domain.ErrStoreUnavailable},
		{name: "bad connection", err: driver.ErrBadConn, expected: domain.ErrStoreUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, expected: domain.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t, RegistryLastReceived)

			mock.ExpectBegin()
			mock.ExpectExec(insertPattern).WillReturnError(tt.err)
			mock.ExpectRollback()

			err := store.Append(context.Background(), testReport(), january)
			assert.True(t, errors.Is(err, tt.expected), "unexpected error %v", err)
		})
	}
}

func TestAppend_OtherErrorsAreNotClassified(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)

	syntaxErr := &pq.Error{Code: "42601", Message: "syntax error"}
	mock.ExpectBegin()
	mock.ExpectExec(insertPattern).WillReturnError(syntaxErr)
	mock.ExpectRollback()

	err := store.Append(context.Background(), testReport(), january)
	require.Error(t, err)
	assert.ErrorIs(t, err, syntaxErr)
	for _, sentinel := range []error{domain.ErrUnknownVehicle, domain.ErrNoPartitionForTimestamp, domain.ErrStoreUnavailable} {
		assert.False(t, errors.Is(err, sentinel))
	}
}

func TestAppend_NamedCheckConstraintIsNotPartitionError(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)

	checkErr := &pq.Error{Code: "23514", Constraint: "vehicle_locations_speed_check"}
	mock.ExpectBegin()
	mock.ExpectExec(insertPattern).WillReturnError(checkErr)
	mock.ExpectRollback()

	err := store.Append(context.Background(), testReport(), january)
	assert.ErrorIs(t, err, checkErr)
	assert.False(t, errors.Is(err, domain.ErrNoPartitionForTimestamp))
}

func TestAppend_BeginFailure(t *testing.T) {
	store, mock := newMockStore(t, RegistryLastReceived)
	mock.ExpectBegin().WillReturnError(&pq.Error{Code: "08001", Message: "could not connect"})

	err := store.Append(context.Background(), testReport(), january)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestNewStore_DefaultMode(t *testing.T) {
	store := NewStore(nil, "sometimes")
	assert.Equal(t, RegistryLastReceived, store.mode)
}
