package config

/*
Описание конфигурационного файла
*/

import (
	"os"
	"time"
	_ "time/tzdata"

	"github.com/daniil11ru/fleettrack/cli/receiver/source/history"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"gopkg.in/yaml.v2"
)

const (
	DefaultApiPort                       = 8080
	DefaultMigrationsPath                = "file://migrations"
	DefaultSummaryRefreshCron            = "*/15 * * * *"
	DefaultSummaryWindowDays             = 90
	DefaultSummaryTimeZone               = "UTC"
	DefaultSummaryRefreshTimeoutSec      = 300
	DefaultPartitionReloadCron           = "@every 1m"
	DefaultPartitionProvisionAheadMonths = 2
	DefaultCacheWriteTimeoutMs           = 500
	DefaultCacheWorkers                  = 8
	DefaultCacheQueueSize                = 1024
	DefaultBroadcastQueueSize            = 1024
	DefaultMQTTTimeoutMs                 = 5000
)

type MQTT struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Topic     string `yaml:"topic"`
	QoS       int    `yaml:"qos"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type Settings struct {
	ApiPort        int      `yaml:"api_port"`
	ApiKeys        []string `yaml:"api_keys"`
	LogLevel       string   `yaml:"log_level"`
	LogFilePath    string   `yaml:"log_file_path"`
	LogMaxAgeDays  int      `yaml:"log_max_age_days"`
	MigrationsPath string   `yaml:"migrations_path"`

	Store     map[string]string            `yaml:"store"`
	Cache     map[string]string            `yaml:"cache"`
	Broadcast map[string]map[string]string `yaml:"broadcast"`
	MQTT      MQTT                         `yaml:"mqtt"`

	RegistryUpdateMode string `yaml:"registry_update_mode"`

	SummaryRefreshCron       string `yaml:"summary_refresh_cron"`
	SummaryWindowDays        int    `yaml:"summary_window_days"`
	SummaryTimeZone          string `yaml:"summary_time_zone"`
	SummaryRefreshTimeoutSec int    `yaml:"summary_refresh_timeout_sec"`

	PartitionReloadCron           string `yaml:"partition_reload_cron"`
	PartitionProvisionCron        string `yaml:"partition_provision_cron"`
	PartitionProvisionAheadMonths int    `yaml:"partition_provision_ahead_months"`

	CacheWriteTimeoutMs int `yaml:"cache_write_timeout_ms"`
	CacheWorkers        int `yaml:"cache_workers"`
	CacheQueueSize      int `yaml:"cache_queue_size"`
	BroadcastQueueSize  int `yaml:"broadcast_queue_size"`
}

func (s *Settings) GetLogLevel() log.Level {
	var lvl log.Level

	switch s.LogLevel {
	case "DEBUG":
		lvl = log.DebugLevel
	case "INFO":
		lvl = log.InfoLevel
	case "WARN":
		lvl = log.WarnLevel
	case "ERROR":
		lvl = log.ErrorLevel
	default:
		lvl = log.InfoLevel
	}
	return lvl
}

func (s *Settings) GetRegistryUpdateMode() history.RegistryUpdateMode {
	return history.RegistryUpdateMode(s.RegistryUpdateMode)
}

func (s *Settings) GetSummaryLocation() *time.Location {
	loc, err := time.LoadLocation(s.SummaryTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s *Settings) GetSummaryRefreshTimeout() time.Duration {
	return time.Duration(s.SummaryRefreshTimeoutSec) * time.Second
}

func (s *Settings) GetCacheWriteTimeout() time.Duration {
	return time.Duration(s.CacheWriteTimeoutMs) * time.Millisecond
}

func (s *Settings) GetMQTTTimeout() time.Duration {
	return time.Duration(s.MQTT.TimeoutMs) * time.Millisecond
}

func (s *Settings) MQTTEnabled() bool {
	return s.MQTT.Broker != ""
}

func validCron(expression string) bool {
	_, err := cron.ParseStandard(expression)
	return err == nil
}

func New(confPath string) (Settings, error) {
	c := Settings{}
	data, err := os.ReadFile(confPath)
	if err != nil {
		return c, err
	}
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return c, err
	}

	if c.ApiPort == 0 {
		c.ApiPort = DefaultApiPort
	}
	if c.ApiPort < 0 || c.ApiPort > 65535 {
		log.Errorf("Некорректный api_port (%d). Используется значение по умолчанию %d.", c.ApiPort, DefaultApiPort)
		c.ApiPort = DefaultApiPort
	}

	if c.MigrationsPath == "" {
		c.MigrationsPath = DefaultMigrationsPath
	}

	switch c.GetRegistryUpdateMode() {
	case history.RegistryLastReceived, history.RegistryLastRecorded:
	case "":
		c.RegistryUpdateMode = string(history.RegistryLastReceived)
	default:
		log.Errorf("Некорректный registry_update_mode (%q). Используется %q.", c.RegistryUpdateMode, history.RegistryLastReceived)
		c.RegistryUpdateMode = string(history.RegistryLastReceived)
	}

	if c.SummaryRefreshCron == "" {
		c.SummaryRefreshCron = DefaultSummaryRefreshCron
	}
	if !validCron(c.SummaryRefreshCron) {
		log.Errorf("Некорректный summary_refresh_cron (%q). Используется %q.", c.SummaryRefreshCron, DefaultSummaryRefreshCron)
		c.SummaryRefreshCron = DefaultSummaryRefreshCron
	}

	if c.SummaryWindowDays == 0 {
		c.SummaryWindowDays = DefaultSummaryWindowDays
	}
	if c.SummaryWindowDays < 1 || c.SummaryWindowDays > 366 {
		log.Errorf("Некорректный summary_window_days (%d). Значение должно быть от 1 до 366. Используется %d.", c.SummaryWindowDays, DefaultSummaryWindowDays)
		c.SummaryWindowDays = DefaultSummaryWindowDays
	}

	if c.SummaryTimeZone == "" {
		c.SummaryTimeZone = DefaultSummaryTimeZone
	}
	if _, err := time.LoadLocation(c.SummaryTimeZone); err != nil {
		log.Errorf("Некорректный summary_time_zone (%q): %v. Используется %s.", c.SummaryTimeZone, err, DefaultSummaryTimeZone)
		c.SummaryTimeZone = DefaultSummaryTimeZone
	}

	if c.SummaryRefreshTimeoutSec <= 0 {
		c.SummaryRefreshTimeoutSec = DefaultSummaryRefreshTimeoutSec
	}

	if c.PartitionReloadCron == "" {
		c.PartitionReloadCron = DefaultPartitionReloadCron
	}
	if !validCron(c.PartitionReloadCron) {
		log.Errorf("Некорректный partition_reload_cron (%q). Используется %q.", c.PartitionReloadCron, DefaultPartitionReloadCron)
		c.PartitionReloadCron = DefaultPartitionReloadCron
	}
	if c.PartitionProvisionCron != "" && !validCron(c.PartitionProvisionCron) {
		log.Errorf("Некорректный partition_provision_cron (%q). Автоматическое создание секций отключено.", c.PartitionProvisionCron)
		c.PartitionProvisionCron = ""
	}
	if c.PartitionProvisionAheadMonths <= 0 {
		c.PartitionProvisionAheadMonths = DefaultPartitionProvisionAheadMonths
	}

	if c.CacheWriteTimeoutMs <= 0 {
		c.CacheWriteTimeoutMs = DefaultCacheWriteTimeoutMs
	}
	if c.CacheWorkers <= 0 {
		c.CacheWorkers = DefaultCacheWorkers
	}
	if c.CacheQueueSize <= 0 {
		c.CacheQueueSize = DefaultCacheQueueSize
	}
	if c.BroadcastQueueSize <= 0 {
		c.BroadcastQueueSize = DefaultBroadcastQueueSize
	}

	if c.MQTT.TimeoutMs <= 0 {
		c.MQTT.TimeoutMs = DefaultMQTTTimeoutMs
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		log.Errorf("Некорректный mqtt.qos (%d). Значение должно быть от 0 до 2. Используется 1.", c.MQTT.QoS)
		c.MQTT.QoS = 1
	}

	return c, err
}
