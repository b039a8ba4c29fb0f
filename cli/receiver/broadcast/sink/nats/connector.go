package nats

/*
Рассылка обновлений в NATS.

Раздел настроек в конфиге:

servers = "nats://localhost:4222"
subject = "fleet.vehicle_update"
codec = "json"
*/

import (
	"fmt"

	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/message"
	"github.com/nats-io/nats.go"
)

const defaultSubject = "fleet.vehicle_update"

type Connector struct {
	connection *nats.Conn
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if c.config["subject"] == "" {
		c.config["subject"] = defaultSubject
	}

	servers := c.config["servers"]
	if servers == "" {
		servers = nats.DefaultURL
	}
	if c.connection, err = nats.Connect(servers, nats.Name("fleettrack-receiver")); err != nil {
		return fmt.Errorf("ошибка подключения к NATS: %w", err)
	}
	return nil
}

func (c *Connector) Save(update message.Update) error {
	payload, err := update.Encode(c.config["codec"])
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления: %w", err)
	}

	if err = c.connection.Publish(c.config["subject"], payload); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.connection == nil {
		return nil
	}
	if err := c.connection.Drain(); err != nil {
		c.connection.Close()
		return err
	}
	return nil
}
