package source

import (
	"context"
	"errors"

	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/filter"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/insert"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/update"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/out"
)

var (
	ErrVehicleNotFound  = errors.New("транспорт не найден")
	ErrDuplicateVehicle = errors.New("транспорт с таким регистрационным номером уже существует")
)

// Primary чтение реестра транспорта, истории и суточной сводки
type Primary interface {
	GetVehicles(ctx context.Context, filter filter.Vehicles) ([]out.Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (out.Vehicle, error)
	AddVehicle(ctx context.Context, v insert.Vehicle) (int64, error)
	UpdateVehicleById(ctx context.Context, id int64, update update.VehicleById) error

	GetLocations(ctx context.Context, filter filter.Locations) ([]out.Location, error)

	GetDailySummaries(ctx context.Context, filter filter.Summaries) ([]out.DailySummary, error)

	Ping(ctx context.Context) error
}
