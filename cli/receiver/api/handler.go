package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/api/repository"
	"github.com/daniil11ru/fleettrack/cli/receiver/cache"
	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/filter"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/insert"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/db/in/update"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/request"
	"github.com/daniil11ru/fleettrack/cli/receiver/dto/response"
	"github.com/daniil11ru/fleettrack/cli/receiver/source"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	maxReportBytes   = 64 << 10
	maxRadiusMeters  = 50000.0
	maxLocationLimit = 10000
	healthTimeout    = 2 * time.Second
	refreshTimeout   = 5 * time.Minute
)

var now = time.Now

type Ingestor interface {
	Run(ctx context.Context, payload []byte) (types.Report, error)
}

type PositionReader interface {
	GetPosition(ctx context.Context, vehicleID int64) (types.LatestPosition, error)
	QueryNear(ctx context.Context, center types.Point, radiusMeters float64) ([]types.NearbyVehicle, error)
	QueryWithin(ctx context.Context, box types.Box) ([]types.LatestPosition, error)
	Ping(ctx context.Context) error
}

type SummaryRefresher interface {
	Run(ctx context.Context) error
}

type StatsReader interface {
	Snapshot() domain.StatsSnapshot
}

// ObserverCounter счётчики подключённых websocket-наблюдателей
type ObserverCounter interface {
	Clients() int
	Dropped() int64
}

type PartitionLister interface {
	Ranges() []types.PartitionRange
}

type Handler struct {
	Ingestor    Ingestor
	Positions   PositionReader
	Repository  repository.BusinessData
	Refresher   SummaryRefresher
	Stats       StatsReader
	SummaryDays int

	// необязательные, попадают в /stats если заданы
	Observers  ObserverCounter
	Partitions PartitionLister
}

func NewHandler(ingestor Ingestor, positions PositionReader, repository repository.BusinessData, refresher SummaryRefresher, stats StatsReader) *Handler {
	return &Handler{
		Ingestor:    ingestor,
		Positions:   positions,
		Repository:  repository,
		Refresher:   refresher,
		Stats:       stats,
		SummaryDays: domain.DefaultSummaryWindowDays,
	}
}

func abort(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"path": c.FullPath(), "err": err}).Error("Ошибка обработки запроса")
	}
	c.JSON(status, response.Error{Error: err.Error()})
}

func badRequest(c *gin.Context, field, reason string) {
	c.JSON(http.StatusBadRequest, response.Error{
		Error:   "некорректные параметры запроса",
		Details: []domain.FieldViolation{{Field: field, Reason: reason}},
	})
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidReport):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownVehicle):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoPartitionForTimestamp):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func registryStatus(err error) int {
	switch {
	case errors.Is(err, source.ErrVehicleNotFound):
		return http.StatusNotFound
	case errors.Is(err, source.ErrDuplicateVehicle):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func positionStatus(err error) int {
	switch {
	case errors.Is(err, cache.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCacheUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func vehicleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "id", "ожидается положительное целое число")
		return 0, false
	}
	return id, true
}

func queryFloat(c *gin.Context, name string, required bool) (float64, bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		if required {
			badRequest(c, name, "обязательный параметр")
			return 0, false, false
		}
		return 0, false, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		badRequest(c, name, "ожидается число")
		return 0, false, false
	}
	return v, true, true
}

func queryInt(c *gin.Context, name string) (int, bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		badRequest(c, name, "ожидается неотрицательное целое число")
		return 0, false, false
	}
	return v, true, true
}

func queryTime(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		badRequest(c, name, "ожидается время в формате RFC3339")
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

func validPoint(c *gin.Context, latField, lngField string, p types.Point) bool {
	if p.Latitude < -90 || p.Latitude > 90 {
		badRequest(c, latField, "широта вне диапазона [-90, 90]")
		return false
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		badRequest(c, lngField, "долгота вне диапазона [-180, 180]")
		return false
	}
	return true
}

func (h *Handler) SubmitLocation(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	report, err := h.Ingestor.Run(c.Request.Context(), payload)
	if err != nil {
		status := submitStatus(err)

		var invalid *domain.InvalidReportError
		if errors.As(err, &invalid) {
			c.JSON(status, response.Error{Error: domain.ErrInvalidReport.Error(), Details: invalid.Violations})
			return
		}
		abort(c, status, err)
		return
	}

	log.WithFields(log.Fields{
		"vehicle_id":  report.VehicleID,
		"recorded_at": report.RecordedAt,
	}).Debug("Отчёт о местоположении принят")

	c.JSON(http.StatusOK, response.Success{Success: true})
}

func (h *Handler) GetPosition(c *gin.Context) {
	id, ok := vehicleID(c)
	if !ok {
		return
	}

	position, err := h.Positions.GetPosition(c.Request.Context(), id)
	if err != nil {
		abort(c, positionStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, position)
}

func (h *Handler) GetNear(c *gin.Context) {
	lat, _, ok := queryFloat(c, "lat", true)
	if !ok {
		return
	}
	lng, _, ok := queryFloat(c, "lng", true)
	if !ok {
		return
	}
	radius, _, ok := queryFloat(c, "radius", true)
	if !ok {
		return
	}

	center := types.Point{Latitude: lat, Longitude: lng}
	if !validPoint(c, "lat", "lng", center) {
		return
	}
	if radius <= 0 || radius > maxRadiusMeters {
		badRequest(c, "radius", "радиус в метрах должен быть в диапазоне (0, 50000]")
		return
	}

	vehicles, err := h.Positions.QueryNear(c.Request.Context(), center, radius)
	if err != nil {
		abort(c, positionStatus(err), err)
		return
	}
	if vehicles == nil {
		vehicles = []types.NearbyVehicle{}
	}

	c.JSON(http.StatusOK, response.Near{Center: center, RadiusMeters: radius, Vehicles: vehicles})
}

func (h *Handler) GetWithin(c *gin.Context) {
	var box types.Box
	var ok bool

	if box.MinLatitude, _, ok = queryFloat(c, "min_lat", true); !ok {
		return
	}
	if box.MinLongitude, _, ok = queryFloat(c, "min_lng", true); !ok {
		return
	}
	if box.MaxLatitude, _, ok = queryFloat(c, "max_lat", true); !ok {
		return
	}
	if box.MaxLongitude, _, ok = queryFloat(c, "max_lng", true); !ok {
		return
	}

	minCorner := types.Point{Latitude: box.MinLatitude, Longitude: box.MinLongitude}
	maxCorner := types.Point{Latitude: box.MaxLatitude, Longitude: box.MaxLongitude}
	if !validPoint(c, "min_lat", "min_lng", minCorner) || !validPoint(c, "max_lat", "max_lng", maxCorner) {
		return
	}
	if box.MinLatitude > box.MaxLatitude {
		badRequest(c, "min_lat", "min_lat больше max_lat")
		return
	}
	if box.MinLongitude > box.MaxLongitude {
		badRequest(c, "min_lng", "min_lng больше max_lng")
		return
	}
	if box.CircumscribedRadius() > maxRadiusMeters {
		badRequest(c, "max_lat", "область слишком велика")
		return
	}

	positions, err := h.Positions.QueryWithin(c.Request.Context(), box)
	if err != nil {
		abort(c, positionStatus(err), err)
		return
	}
	if positions == nil {
		positions = []types.LatestPosition{}
	}

	c.JSON(http.StatusOK, positions)
}

func (h *Handler) GetVehicles(c *gin.Context) {
	f := filter.Vehicles{}

	if statusStr := c.Query("status"); statusStr != "" {
		status, err := types.ParseVehicleStatus(statusStr)
		if err != nil {
			badRequest(c, "status", err.Error())
			return
		}
		f.Status = &status
	}

	var ok bool
	if f.Limit, _, ok = queryInt(c, "limit"); !ok {
		return
	}
	if f.Offset, _, ok = queryInt(c, "offset"); !ok {
		return
	}

	vehicles, err := h.Repository.GetVehicles(c.Request.Context(), f)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, vehicles)
}

func (h *Handler) GetVehicle(c *gin.Context) {
	id, ok := vehicleID(c)
	if !ok {
		return
	}

	vehicle, err := h.Repository.GetVehicle(c.Request.Context(), id)
	if err != nil {
		abort(c, registryStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) AddVehicle(c *gin.Context) {
	var req request.AddVehicle
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}

	v := insert.Vehicle{Name: req.Name, RegNumber: req.RegNumber, Status: types.VehicleStatusActive}
	if req.Status != "" {
		status, err := types.ParseVehicleStatus(req.Status)
		if err != nil {
			badRequest(c, "status", err.Error())
			return
		}
		v.Status = status
	}

	vehicle, err := h.Repository.AddVehicle(c.Request.Context(), v)
	if err != nil {
		abort(c, registryStatus(err), err)
		return
	}

	c.JSON(http.StatusCreated, vehicle)
}

func (h *Handler) UpdateVehicle(c *gin.Context) {
	id, ok := vehicleID(c)
	if !ok {
		return
	}

	var req request.UpdateVehicle
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	if req.Name == nil && req.RegNumber == nil {
		badRequest(c, "body", "нет изменяемых полей")
		return
	}

	vehicle, err := h.Repository.UpdateVehicleById(c.Request.Context(), id, update.VehicleById{Name: req.Name, RegNumber: req.RegNumber})
	if err != nil {
		abort(c, registryStatus(err), err)
		return
	}

	c.JSON(http.StatusOK, vehicle)
}

func (h *Handler) GetLocations(c *gin.Context) {
	id, ok := vehicleID(c)
	if !ok {
		return
	}

	f := filter.Locations{VehicleID: id}
	if f.After, ok = queryTime(c, "after"); !ok {
		return
	}
	if f.Before, ok = queryTime(c, "before"); !ok {
		return
	}
	if f.After != nil && f.Before != nil && !f.After.Before(*f.Before) {
		badRequest(c, "after", "after должен быть раньше before")
		return
	}
	if f.Limit, _, ok = queryInt(c, "limit"); !ok {
		return
	}
	if f.Limit > maxLocationLimit {
		f.Limit = maxLocationLimit
	}

	if _, err := h.Repository.GetVehicle(c.Request.Context(), id); err != nil {
		abort(c, registryStatus(err), err)
		return
	}

	locations, err := h.Repository.GetLocations(c.Request.Context(), f)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if locations == nil {
		locations = []types.LocationPoint{}
	}

	c.JSON(http.StatusOK, response.VehicleTrack{VehicleID: id, Locations: locations})
}

func (h *Handler) GetDailySummaries(c *gin.Context) {
	f := filter.Summaries{}

	if vehicleIdStr := c.Query("vehicle_id"); vehicleIdStr != "" {
		id, err := strconv.ParseInt(vehicleIdStr, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "vehicle_id", "ожидается положительное целое число")
			return
		}
		f.VehicleID = &id
	}

	days, set, ok := queryInt(c, "days")
	if !ok {
		return
	}
	if !set || days == 0 || days > h.SummaryDays {
		days = h.SummaryDays
	}
	t := now().UTC()
	since := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
	f.Since = &since

	summaries, err := h.Repository.GetDailySummaries(c.Request.Context(), f)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if summaries == nil {
		summaries = []types.DailySummary{}
	}

	c.JSON(http.StatusOK, summaries)
}

func (h *Handler) RefreshDailySummaries(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()

	if err := h.Refresher.Run(ctx); err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, response.Success{Success: true})
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	health := response.Health{Status: response.HealthOK, Checks: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			health.Status = response.HealthDegraded
			health.Checks[name] = err.Error()
			log.WithFields(log.Fields{"check": name, "err": err}).Warn("Проверка состояния не пройдена")
			return
		}
		health.Checks[name] = response.HealthOK
	}

	check("postgres", h.Repository.Ping(ctx))
	check("redis", h.Positions.Ping(ctx))

	status := http.StatusOK
	if health.Status != response.HealthOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := response.Stats{StatsSnapshot: h.Stats.Snapshot()}
	if h.Observers != nil {
		stats.Observers = &response.Observers{
			Clients: h.Observers.Clients(),
			Dropped: h.Observers.Dropped(),
		}
	}
	if h.Partitions != nil {
		n := len(h.Partitions.Ranges())
		stats.Partitions = &n
	}
	c.JSON(http.StatusOK, stats)
}

func limitBody(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes)
	}
	c.Next()
}
