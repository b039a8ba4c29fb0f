package redis

/*
Рассылка обновлений через Redis PUBLISH.

Раздел настроек в конфиге:

host = "localhost"
port = "6379"
password = ""
channel = "vehicle_update"
codec = "json"
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/message"
	"github.com/go-redis/redis/v8"
)

const publishTimeout = 2 * time.Second

type Connector struct {
	client *redis.Client
	config map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if c.config["channel"] == "" {
		c.config["channel"] = "vehicle_update"
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", c.config["host"], c.config["port"]),
		Password: c.config["password"],
	})

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.client.Close()
		return fmt.Errorf("Redis недоступен: %w", err)
	}
	return nil
}

func (c *Connector) Save(update message.Update) error {
	payload, err := update.Encode(c.config["codec"])
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err = c.client.Publish(ctx, c.config["channel"], payload).Err(); err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
