package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTopic    = "fleet/vehicle/+/location"
	DefaultTimeout  = 5 * time.Second
	connectTimeout  = 10 * time.Second
	disconnectQuiet = 250
)

type Ingestor interface {
	Run(ctx context.Context, payload []byte) (types.Report, error)
}

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

type LocationSubscriber struct {
	client   mqtt.Client
	ingestor Ingestor
	topic    string
	qos      byte
	timeout  time.Duration
}

// Connect подключается к брокеру и подписывается на топик, после переподключения подписка восстанавливается
func Connect(opts Options, ingestor Ingestor) (*LocationSubscriber, error) {
	s := &LocationSubscriber{
		ingestor: ingestor,
		topic:    opts.Topic,
		qos:      opts.QoS,
		timeout:  opts.Timeout,
	}
	if s.topic == "" {
		s.topic = DefaultTopic
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithField("err", err).Warn("Соединение с MQTT-брокером потеряно")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			token := c.Subscribe(s.topic, s.qos, s.handleMessage)
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				log.WithFields(log.Fields{"topic": s.topic, "err": token.Error()}).Error("Не удалось подписаться на MQTT-топик")
				return
			}
			log.WithField("topic", s.topic).Info("Подписка на MQTT-топик оформлена")
		})

	s.client = mqtt.NewClient(clientOpts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.New("превышено время подключения к MQTT-брокеру")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к MQTT-брокеру: %w", err)
	}

	return s, nil
}

func (s *LocationSubscriber) Stop() {
	if s.client == nil {
		return
	}
	if token := s.client.Unsubscribe(s.topic); token.WaitTimeout(connectTimeout) && token.Error() != nil {
		log.WithField("err", token.Error()).Warn("Не удалось отписаться от MQTT-топика")
	}
	s.client.Disconnect(disconnectQuiet)
}

func (s *LocationSubscriber) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

// topicVehicleID идентификатор транспорта из сегмента «+» топика, 0 если сегмент не число
func topicVehicleID(topic string) int64 {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if id, payloadID, ok := topicMismatch(msg.Topic(), msg.Payload()); ok {
		log.WithFields(log.Fields{
			"topic":            msg.Topic(),
			"topic_vehicle_id": id,
			"vehicle_id":       payloadID,
		}).Warn("Идентификатор транспорта в топике не совпадает с отчётом, отчёт отклонён")
		return
	}

	report, err := s.ingestor.Run(ctx, msg.Payload())
	if err != nil {
		entry := log.WithFields(log.Fields{"topic": msg.Topic(), "err": err})
		if errors.Is(err, domain.ErrInvalidReport) || errors.Is(err, domain.ErrUnknownVehicle) {
			entry.Warn("Отчёт из MQTT отклонён")
		} else {
			entry.Error("Не удалось сохранить отчёт из MQTT")
		}
		return
	}

	log.WithFields(log.Fields{"topic": msg.Topic(), "vehicle_id": report.VehicleID}).Debug("Отчёт из MQTT принят")
}

// topicMismatch сравнивает числовой сегмент топика с vehicleId отчёта.
// Нечисловой сегмент или нечитаемый vehicleId не считаются расхождением,
// такой отчёт проверяет валидатор.
func topicMismatch(topic string, payload []byte) (int64, int64, bool) {
	id := topicVehicleID(topic)
	if id == 0 {
		return 0, 0, false
	}

	var head struct {
		VehicleID json.Number `json:"vehicleId"`
	}
	if err := json.Unmarshal(payload, &head); err != nil || head.VehicleID == "" {
		return 0, 0, false
	}
	payloadID, err := head.VehicleID.Int64()
	if err != nil {
		return 0, 0, false
	}
	return id, payloadID, payloadID != id
}
