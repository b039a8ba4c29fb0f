package implementation

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

type Settings struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
}

type Connector struct {
	connection *sql.DB
	settings   Settings
}

func getOptionValue(optionName string, optionDefaultValue string, settings map[string]string) string {
	optionValue := settings[optionName]
	if optionValue == "" {
		log.Warnf("Ключ '%s' не найден в конфигурации хранилища. Используется значение по умолчанию '%s'.", optionName, optionDefaultValue)
		optionValue = optionDefaultValue
	}

	return optionValue
}

func (c *Connector) FillSettings(settings map[string]string) {
	c.settings.Host = getOptionValue("host", "localhost", settings)
	c.settings.Port = getOptionValue("port", "5432", settings)
	c.settings.User = getOptionValue("user", "postgres", settings)
	c.settings.Password = getOptionValue("password", "postgres", settings)
	c.settings.Database = getOptionValue("database", "fleet_db", settings)
	c.settings.SSLMode = getOptionValue("sslmode", "disable", settings)

	c.settings.MaxOpenConns = 20
	if raw := settings["max_open_conns"]; raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			c.settings.MaxOpenConns = n
		} else {
			log.Warnf("Некорректное значение max_open_conns '%s'. Используется значение по умолчанию %d.", raw, c.settings.MaxOpenConns)
		}
	}
}

// DSN строка подключения в формате key=value для lib/pq и gorm
func (c *Connector) DSN() string {
	return fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		c.settings.Database, c.settings.Host, c.settings.Port, c.settings.User, c.settings.Password, c.settings.SSLMode)
}

// URL строка подключения в формате postgres:// для миграций
func (c *Connector) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.settings.User, c.settings.Password),
		Host:     c.settings.Host + ":" + c.settings.Port,
		Path:     "/" + c.settings.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.settings.SSLMode),
	}
	return u.String()
}

func (c *Connector) Connect(settings map[string]string) error {
	var err error
	if settings == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.FillSettings(settings)

	if c.connection, err = sql.Open("postgres", c.DSN()); err != nil {
		return fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}
	c.connection.SetMaxOpenConns(c.settings.MaxOpenConns)

	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("PostgreSQL недоступен: %w", err)
	}
	return nil
}

func (c *Connector) GetConnection() *sql.DB {
	return c.connection
}

func (c *Connector) Ping(ctx context.Context) error {
	if c.connection == nil {
		return fmt.Errorf("нет подключения к PostgreSQL")
	}
	return c.connection.PingContext(ctx)
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
