package repository

import (
	"context"

	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/filter"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/insert"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/update"
	"github.com/daniil11ru/fleettrack/cli/receiver/source"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
)

type BusinessData interface {
	GetVehicles(ctx context.Context, filter filter.Vehicles) ([]types.Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (types.Vehicle, error)
	AddVehicle(ctx context.Context, v insert.Vehicle) (types.Vehicle, error)
	UpdateVehicleById(ctx context.Context, id int64, update update.VehicleById) (types.Vehicle, error)
	GetLocations(ctx context.Context, filter filter.Locations) ([]types.LocationPoint, error)
	GetDailySummaries(ctx context.Context, filter filter.Summaries) ([]types.DailySummary, error)
	Ping(ctx context.Context) error
}

type BusinessDataDefault struct {
	PostgreSource source.Primary
}

func NewBusinessDataDefault(postgreSource source.Primary) *BusinessDataDefault {
	return &BusinessDataDefault{PostgreSource: postgreSource}
}

func (r *BusinessDataDefault) GetVehicles(ctx context.Context, filter filter.Vehicles) ([]types.Vehicle, error) {
	rows, err := r.PostgreSource.GetVehicles(ctx, filter)
	if err != nil {
		return nil, err
	}

	vehicles := make([]types.Vehicle, 0, len(rows))
	for _, row := range rows {
		vehicles = append(vehicles, row.ToVehicle())
	}
	return vehicles, nil
}

func (r *BusinessDataDefault) GetVehicle(ctx context.Context, id int64) (types.Vehicle, error) {
	row, err := r.PostgreSource.GetVehicle(ctx, id)
	if err != nil {
		return types.Vehicle{}, err
	}
	return row.ToVehicle(), nil
}

func (r *BusinessDataDefault) AddVehicle(ctx context.Context, v insert.Vehicle) (types.Vehicle, error) {
	id, err := r.PostgreSource.AddVehicle(ctx, v)
	if err != nil {
		return types.Vehicle{}, err
	}
	return r.GetVehicle(ctx, id)
}

func (r *BusinessDataDefault) UpdateVehicleById(ctx context.Context, id int64, update update.VehicleById) (types.Vehicle, error) {
	if err := r.PostgreSource.UpdateVehicleById(ctx, id, update); err != nil {
		return types.Vehicle{}, err
	}
	return r.GetVehicle(ctx, id)
}

func (r *BusinessDataDefault) GetLocations(ctx context.Context, filter filter.Locations) ([]types.LocationPoint, error) {
	rows, err := r.PostgreSource.GetLocations(ctx, filter)
	if err != nil {
		return nil, err
	}

	points := make([]types.LocationPoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, row.ToLocationPoint())
	}
	return points, nil
}

func (r *BusinessDataDefault) GetDailySummaries(ctx context.Context, filter filter.Summaries) ([]types.DailySummary, error) {
	rows, err := r.PostgreSource.GetDailySummaries(ctx, filter)
	if err != nil {
		return nil, err
	}

	summaries := make([]types.DailySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, row.ToDailySummary())
	}
	return summaries, nil
}

func (r *BusinessDataDefault) Ping(ctx context.Context) error {
	return r.PostgreSource.Ping(ctx)
}
