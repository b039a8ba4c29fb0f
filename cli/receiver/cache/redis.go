package cache

/*
Кэш последних местоположений в Redis.

Координаты лежат в GEO-множестве (member = id транспорта), остальные поля
в хэше <key>:<id>. Обе записи выполняются в одной транзакции MULTI/EXEC.
*/

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/go-redis/redis/v8"
)

const DefaultKey = "fleet_locations"

// запас радиуса для поиска в прямоугольнике, Redis считает расстояния на немного другой сфере
const boxRadiusMargin = 1.01

var ErrPositionNotFound = errors.New("местоположение транспорта отсутствует в кэше")

type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) member(vehicleID int64) string {
	return strconv.FormatInt(vehicleID, 10)
}

func (r *Redis) hashKey(vehicleID int64) string {
	return r.key + ":" + r.member(vehicleID)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrCacheUnavailable, err)
}

// SetPosition безусловно перезаписывает местоположение транспорта.
// GEOADD принимает широту только в пределах ±85.05112878, за ними запись завершается ошибкой.
func (r *Redis) SetPosition(ctx context.Context, position types.LatestPosition) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, r.key, &redis.GeoLocation{
			Name:      r.member(position.VehicleID),
			Longitude: position.Point.Longitude,
			Latitude:  position.Point.Latitude,
		})
		pipe.HSet(ctx, r.hashKey(position.VehicleID), map[string]interface{}{
			"speed":       strconv.FormatFloat(position.Speed, 'f', -1, 64),
			"heading":     strconv.FormatFloat(position.Heading, 'f', -1, 64),
			"status":      string(position.Status),
			"recorded_at": position.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
		return nil
	})
	if err != nil {
		return unavailable(fmt.Sprintf("не удалось записать местоположение транспорта %d", position.VehicleID), err)
	}
	return nil
}

func (r *Redis) GetPosition(ctx context.Context, vehicleID int64) (types.LatestPosition, error) {
	positions, err := r.client.GeoPos(ctx, r.key, r.member(vehicleID)).Result()
	if err != nil {
		return types.LatestPosition{}, unavailable(fmt.Sprintf("не удалось получить местоположение транспорта %d", vehicleID), err)
	}
	if len(positions) == 0 || positions[0] == nil {
		return types.LatestPosition{}, ErrPositionNotFound
	}

	position := types.LatestPosition{
		VehicleID: vehicleID,
		Point:     types.Point{Latitude: positions[0].Latitude, Longitude: positions[0].Longitude},
	}

	fields, err := r.client.HGetAll(ctx, r.hashKey(vehicleID)).Result()
	if err != nil {
		return types.LatestPosition{}, unavailable(fmt.Sprintf("не удалось получить данные транспорта %d", vehicleID), err)
	}
	fillAuxiliary(&position, fields)

	return position, nil
}

// QueryNear транспорт в радиусе от точки, ближайшие первыми
func (r *Redis) QueryNear(ctx context.Context, center types.Point, radiusMeters float64) ([]types.NearbyVehicle, error) {
	locations, err := r.client.GeoRadius(ctx, r.key, center.Longitude, center.Latitude, &redis.GeoRadiusQuery{
		Radius:    radiusMeters,
		Unit:      "m",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, unavailable("не удалось выполнить поиск по радиусу", err)
	}

	vehicles := make([]types.NearbyVehicle, 0, len(locations))
	for _, location := range locations {
		id, err := strconv.ParseInt(location.Name, 10, 64)
		if err != nil {
			continue
		}
		vehicles = append(vehicles, types.NearbyVehicle{
			LatestPosition: types.LatestPosition{
				VehicleID: id,
				Point:     types.Point{Latitude: location.Latitude, Longitude: location.Longitude},
			},
			DistanceMeters: location.Dist,
		})
	}

	if err := r.fillAll(ctx, len(vehicles), func(i int) *types.LatestPosition { return &vehicles[i].LatestPosition }); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// QueryWithin транспорт внутри прямоугольной области
func (r *Redis) QueryWithin(ctx context.Context, box types.Box) ([]types.LatestPosition, error) {
	nearby, err := r.QueryNear(ctx, box.Center(), box.CircumscribedRadius()*boxRadiusMargin)
	if err != nil {
		return nil, err
	}

	positions := make([]types.LatestPosition, 0, len(nearby))
	for _, vehicle := range nearby {
		if box.Contains(vehicle.Point) {
			positions = append(positions, vehicle.LatestPosition)
		}
	}
	return positions, nil
}

func (r *Redis) fillAll(ctx context.Context, n int, at func(i int) *types.LatestPosition) error {
	if n == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	commands := make([]*redis.StringStringMapCmd, n)
	for i := 0; i < n; i++ {
		commands[i] = pipe.HGetAll(ctx, r.hashKey(at(i).VehicleID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable("не удалось получить данные транспорта", err)
	}

	for i, cmd := range commands {
		fillAuxiliary(at(i), cmd.Val())
	}
	return nil
}

func fillAuxiliary(position *types.LatestPosition, fields map[string]string) {
	if v, err := strconv.ParseFloat(fields["speed"], 64); err == nil {
		position.Speed = v
	}
	if v, err := strconv.ParseFloat(fields["heading"], 64); err == nil {
		position.Heading = v
	}
	if status, err := types.ParseVehicleStatus(fields["status"]); err == nil {
		position.Status = status
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["recorded_at"]); err == nil {
		position.RecordedAt = t
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("Redis недоступен", err)
	}
	return nil
}
