package rabbitmq

/*
Рассылка обновлений в fanout-обменник RabbitMQ.

Раздел настроек в конфиге:

host = "localhost"
port = "5672"
user = "guest"
password = "guest"
exchange = "fleet_updates"
codec = "json"
*/

import (
	"fmt"

	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/message"
	"github.com/streadway/amqp"
)

type Connector struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	var err error
	if cfg == nil {
		return fmt.Errorf("некорректная ссылка на конфигурацию")
	}
	c.config = cfg
	if c.config["exchange"] == "" {
		return fmt.Errorf("не задан обменник RabbitMQ")
	}

	conStr := fmt.Sprintf("amqp://%s:%s@%s:%s/", c.config["user"], c.config["password"], c.config["host"], c.config["port"])
	if c.connection, err = amqp.Dial(conStr); err != nil {
		return fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}

	if c.channel, err = c.connection.Channel(); err != nil {
		c.connection.Close()
		return fmt.Errorf("ошибка открытия канала RabbitMQ: %w", err)
	}

	if err = c.channel.ExchangeDeclare(c.config["exchange"], amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		c.connection.Close()
		return fmt.Errorf("не удалось объявить обменник %s: %w", c.config["exchange"], err)
	}
	return nil
}

func contentType(codec string) string {
	if codec == message.CodecMsgpack {
		return "application/x-msgpack"
	}
	return "application/json"
}

func (c *Connector) Save(update message.Update) error {
	payload, err := update.Encode(c.config["codec"])
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления: %w", err)
	}

	err = c.channel.Publish(c.config["exchange"], "", false, false, amqp.Publishing{
		ContentType: contentType(c.config["codec"]),
		MessageId:   update.EventID,
		Type:        update.Topic,
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("не удалось отправить сообщение: %w", err)
	}
	return nil
}

func (c *Connector) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.connection == nil {
		return nil
	}
	return c.connection.Close()
}
