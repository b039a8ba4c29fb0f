package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/api"
	apirepo "github.com/daniil11ru/fleettrack/cli/receiver/api/repository"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/sink/websocket"
	"github.com/daniil11ru/fleettrack/cli/receiver/cache"
	"github.com/daniil11ru/fleettrack/cli/receiver/config"
	"github.com/daniil11ru/fleettrack/cli/receiver/connector"
	"github.com/daniil11ru/fleettrack/cli/receiver/connector/implementation"
	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/source"
	"github.com/daniil11ru/fleettrack/cli/receiver/source/history"
	"github.com/daniil11ru/fleettrack/cli/receiver/source/partition"
	"github.com/daniil11ru/fleettrack/cli/receiver/source/summary"
	"github.com/daniil11ru/fleettrack/cli/receiver/subscriber"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	flag "github.com/spf13/pflag"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configFilePath := ""
	flag.StringVarP(&configFilePath, "config", "c", "", "путь до конфигурационного файла")
	flag.Parse()
	config, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
		return
	}

	configureLogging(config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var conn connector.Connector = &implementation.Connector{}
	if err := conn.Connect(config.Store); err != nil {
		log.Fatalf("Не удалось подключиться к базе данных: %v", err)
		return
	}
	defer conn.Close()

	if err := applyMigrations(config, conn.URL()); err != nil {
		log.Fatalf("Не удалось применить миграции: %v", err)
		return
	}

	stats := &domain.Stats{}

	manager := partition.NewManager(conn.GetConnection())
	catalog := partition.NewCatalog(manager)
	if err := catalog.Reload(ctx); err != nil {
		log.Fatalf("Не удалось загрузить каталог секций: %v", err)
		return
	}
	log.WithField("partitions", len(catalog.Ranges())).Info("Каталог секций загружен")
	partitionCron, err := schedulePartitions(config, manager, catalog)
	if err != nil {
		log.Fatalf("Не удалось запланировать обслуживание секций: %v", err)
		return
	}

	redisClient, cacheKey := newRedisClient(config.Cache)
	defer redisClient.Close()
	positions := cache.NewRedis(redisClient, cacheKey)
	if err := positions.Ping(ctx); err != nil {
		log.WithField("err", err).Warn("Кэш последних позиций недоступен, приём продолжится без него")
	}
	cacheWriter := cache.NewAsyncWriter(positions, config.CacheWorkers, config.CacheQueueSize, config.GetCacheWriteTimeout(),
		func(vehicleID int64, err error) {
			stats.CacheFailed()
			log.WithFields(log.Fields{"vehicle_id": vehicleID, "err": err}).Warn("Не удалось обновить позицию в кэше")
		})

	hub := websocket.NewHub()
	broadcaster := broadcast.NewBroadcaster(config.BroadcastQueueSize, func(sink string, err error) {
		stats.BroadcastFailed()
		log.WithFields(log.Fields{"sink": sink, "err": err}).Warn("Не удалось доставить обновление получателю")
	})
	sinks := config.Broadcast
	if sinks == nil {
		sinks = map[string]map[string]string{}
	}
	if _, ok := sinks["websocket"]; !ok {
		sinks["websocket"] = map[string]string{}
	}
	if err := broadcaster.LoadSinks(sinks, hub); err != nil {
		log.Fatalf("Не удалось загрузить получателей обновлений: %v", err)
		return
	}

	submitLocation := &domain.SubmitLocation{
		Partitions:  catalog,
		Cache:       cacheWriter,
		Broadcaster: broadcaster,
		History:     history.NewStore(conn.GetConnection(), config.GetRegistryUpdateMode()),
		Stats:       stats,
	}
	defer submitLocation.Shutdown()

	refreshSummaries := &domain.RefreshSummaries{
		Repository: summary.NewStore(conn.GetConnection()),
		WindowDays: config.SummaryWindowDays,
		Location:   config.GetSummaryLocation(),
		Stats:      stats,
	}
	if err := refreshSummaries.Schedule(config.SummaryRefreshCron, config.GetSummaryRefreshTimeout()); err != nil {
		log.Fatalf("Не удалось запланировать пересчёт сводки: %v", err)
		return
	}
	defer refreshSummaries.Shutdown()

	primarySource, err := source.NewDefaultPrimary(conn.GetConnection())
	if err != nil {
		log.Fatalf("Не удалось инициализировать источник данных: %v", err)
		return
	}

	handler := api.NewHandler(submitLocation, positions, apirepo.NewBusinessDataDefault(primarySource), refreshSummaries, stats)
	handler.SummaryDays = config.SummaryWindowDays
	handler.Observers = hub
	handler.Partitions = catalog
	controller := api.NewController(handler, hub, config.ApiKeys)
	go func() {
		if err := controller.Run(config.ApiPort); err != nil {
			log.Fatalf("Не удалось запустить API на порту %d: %v", config.ApiPort, err)
		}
	}()

	var locationSubscriber *subscriber.LocationSubscriber
	if config.MQTTEnabled() {
		locationSubscriber, err = subscriber.Connect(subscriber.Options{
			Broker:   config.MQTT.Broker,
			ClientID: config.MQTT.ClientID,
			Username: config.MQTT.Username,
			Password: config.MQTT.Password,
			Topic:    config.MQTT.Topic,
			QoS:      byte(config.MQTT.QoS),
			Timeout:  config.GetMQTTTimeout(),
		}, submitLocation)
		if err != nil {
			log.Fatalf("Не удалось подключиться к MQTT-брокеру: %v", err)
			return
		}
	}

	<-ctx.Done()
	log.Info("Получен сигнал остановки, завершение работы")

	if locationSubscriber != nil {
		locationSubscriber.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := controller.Shutdown(shutdownCtx); err != nil {
		log.WithField("err", err).Error("Ошибка остановки API")
	}

	<-partitionCron.Stop().Done()
}

func getConfig(configFilePath string) (config.Settings, error) {
	var c config.Settings
	var err error

	if configFilePath == "" {
		return c, errors.New("не задан путь до конфига")
	}

	c, err = config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("ошибка парсинга конфига: %v", err)
	}

	return c, nil
}

func configureLogging(config config.Settings) {
	log.SetLevel(config.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if config.LogFilePath != "" {
		logDir := filepath.Dir(config.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Не получилось создать директорию для логов: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   config.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     config.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}

func newRedisClient(settings map[string]string) (*redis.Client, string) {
	host := settings["host"]
	if host == "" {
		host = "localhost"
	}
	port := settings["port"]
	if port == "" {
		port = "6379"
	}

	db := 0
	if raw := settings["db"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			log.Warnf("Некорректное значение db '%s' в настройках кэша. Используется 0.", raw)
		} else {
			db = n
		}
	}

	key := settings["key"]
	if key == "" {
		key = cache.DefaultKey
	}

	return redis.NewClient(&redis.Options{
		Addr:     host + ":" + port,
		Password: settings["password"],
		DB:       db,
	}), key
}

// schedulePartitions перечитывает каталог секций и, если задано, заранее создаёт секции на будущие месяцы
func schedulePartitions(config config.Settings, manager *partition.Manager, catalog *partition.Catalog) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(config.PartitionReloadCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := catalog.Reload(ctx); err != nil {
			log.WithField("err", err).Error("Не удалось перечитать каталог секций")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при настройке cron-задачи: %w", err)
	}

	if config.PartitionProvisionCron != "" {
		months := config.PartitionProvisionAheadMonths
		_, err = c.AddFunc(config.PartitionProvisionCron, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			ranges, err := manager.Ensure(ctx, time.Now().UTC(), months+1)
			if err != nil {
				log.WithField("err", err).Error("Не удалось подготовить секции на будущие месяцы")
				return
			}
			log.WithField("partitions", len(ranges)).Info("Секции на будущие месяцы подготовлены")
			if err := catalog.Reload(ctx); err != nil {
				log.WithField("err", err).Error("Не удалось перечитать каталог секций")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка при настройке cron-задачи: %w", err)
		}
		log.Infof("Запланировано создание секций на %d мес. вперёд: %s", months, config.PartitionProvisionCron)
	}

	c.Start()
	return c, nil
}

func applyMigrations(config config.Settings, databaseUrl string) error {
	m, err := migrate.New(
		config.MigrationsPath,
		databaseUrl,
	)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info("Нет новых миграций для применения")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %v", err)
	}

	log.Info("Миграции успешно применены")
	return nil
}
