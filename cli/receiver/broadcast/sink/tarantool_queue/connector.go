package tarantool_queue

/*
Рассылка обновлений в очередь Tarantool.

Раздел настроек в конфиге:

host = "localhost"
port = "3301"
user = "user"
password = "pass"
max_recons = 5
timeout = 1
reconnect = 1
queue = "vehicle_updates"
codec = "msgpack"
*/

import (
	"fmt"
	"strconv"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/message"
	"github.com/tarantool/go-tarantool"
	"github.com/tarantool/go-tarantool/queue"
)

type Connector struct {
	connection *tarantool.Connection
	queue      queue.Queue
	config     map[string]string
}

func intOption(cfg map[string]string, key string, fallback int) (int, error) {
	raw, ok := cfg[key]
	if !ok || raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("не удалось получить %s: %w", key, err)
	}
	return value, nil
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}

	c.config = cfg
	if c.config["queue"] == "" {
		return fmt.Errorf("не задана очередь Tarantool")
	}
	conStr := fmt.Sprintf("%s:%s", c.config["host"], c.config["port"])

	maxRecons, err := intOption(c.config, "max_recons", 5)
	if err != nil {
		return err
	}
	timeout, err := intOption(c.config, "timeout", 1)
	if err != nil {
		return err
	}
	reconnect, err := intOption(c.config, "reconnect", 1)
	if err != nil {
		return err
	}
	opts := tarantool.Opts{
		Timeout:       time.Duration(timeout) * time.Second,
		Reconnect:     time.Duration(reconnect) * time.Second,
		MaxReconnects: uint(maxRecons),
		User:          c.config["user"],
		Pass:          c.config["password"],
	}

	c.connection, err = tarantool.Connect(conStr, opts)
	if err != nil {
		return fmt.Errorf("не удалось подключиться к Tarantool: %w", err)
	}
	c.queue = queue.New(c.connection, c.config["queue"])

	return nil
}

func (c *Connector) Save(update message.Update) error {
	payload, err := update.Encode(c.config["codec"])
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления: %w", err)
	}

	if _, err = c.queue.Put(payload); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
