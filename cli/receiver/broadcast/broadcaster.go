package broadcast

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/message"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/sink/nats"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/sink/rabbitmq"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/sink/redis"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/sink/tarantool_queue"
	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/sink/websocket"
	"github.com/daniil11ru/fleettrack/cli/receiver/domain"
	"github.com/daniil11ru/fleettrack/cli/receiver/types"
	log "github.com/sirupsen/logrus"
)

const DefaultQueueSize = 1024

var ErrInvalidSink = errors.New("не задано ни одного получателя обновлений")
var ErrUnknownSink = errors.New("получатель обновлений не поддерживается")

// Sender интерфейс доставки обновления получателю
type Sender interface {
	// Save отправка обновления получателю
	Save(message.Update) error
}

// Connector интерфейс подключения получателя
type Connector interface {
	// Init установка соединения по настройкам из конфига
	Init(map[string]string) error

	// Close закрытие соединения
	Close() error
}

type Sink interface {
	Connector
	Sender
}

type queue struct {
	name string
	sink Sink
	ch   chan message.Update
}

// Broadcaster рассылает обновления всем получателям.
// У каждого получателя своя ограниченная очередь и один воркер, порядок публикации сохраняется.
type Broadcaster struct {
	queueSize int
	failed    func(sink string, err error)

	mu     sync.RWMutex
	queues []*queue
	closed bool
	wg     sync.WaitGroup
}

func NewBroadcaster(queueSize int, failed func(sink string, err error)) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{queueSize: queueSize, failed: failed}
}

// AddSink подключает уже инициализированного получателя
func (b *Broadcaster) AddSink(name string, s Sink) {
	q := &queue{name: name, sink: s, ch: make(chan message.Update, b.queueSize)}

	b.mu.Lock()
	b.queues = append(b.queues, q)
	b.mu.Unlock()

	b.wg.Add(1)
	go b.worker(q)
}

func (b *Broadcaster) worker(q *queue) {
	defer b.wg.Done()
	for update := range q.ch {
		if err := q.sink.Save(update); err != nil {
			log.WithFields(log.Fields{"sink": q.name, "vehicle_id": update.VehicleID, "err": err}).Error("Ошибка рассылки обновления")
			if b.failed != nil {
				b.failed(q.name, err)
			}
		}
	}
}

// LoadSinks загружает получателей из структуры конфига. Для websocket используется переданный hub.
func (b *Broadcaster) LoadSinks(sinks map[string]map[string]string, hub *websocket.Hub) error {
	if len(sinks) == 0 {
		return ErrInvalidSink
	}

	names := make([]string, 0, len(sinks))
	for name := range sinks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var s Sink
		switch name {
		case "websocket":
			if hub == nil {
				return fmt.Errorf("%w: websocket без обработчика подключений", ErrUnknownSink)
			}
			s = hub
		case "nats":
			s = &nats.Connector{}
		case "rabbitmq":
			s = &rabbitmq.Connector{}
		case "redis":
			s = &redis.Connector{}
		case "tarantool_queue":
			s = &tarantool_queue.Connector{}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownSink, name)
		}

		if err := s.Init(sinks[name]); err != nil {
			return fmt.Errorf("не удалось подключить получателя %s: %w", name, err)
		}

		b.AddSink(name, s)
		log.Infof("Подключён получатель обновлений %s", name)
	}
	return nil
}

// Publish ставит обновление в очереди всех получателей без ожидания.
// Если очередь получателя заполнена, обновление для него отбрасывается.
func (b *Broadcaster) Publish(topic string, report types.Report) error {
	update := message.NewUpdate(topic, report)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("рассылка остановлена: %w", domain.ErrBroadcastUnavailable)
	}

	var dropped []string
	for _, q := range b.queues {
		select {
		case q.ch <- update:
		default:
			dropped = append(dropped, q.name)
		}
	}
	if len(dropped) > 0 {
		return fmt.Errorf("очередь получателей %v переполнена: %w", dropped, domain.ErrBroadcastUnavailable)
	}
	return nil
}

// Close дожидается доставки накопленных обновлений и закрывает получателей
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q.ch)
	}
	b.mu.Unlock()

	b.wg.Wait()
	for _, q := range b.queues {
		if err := q.sink.Close(); err != nil {
			log.WithFields(log.Fields{"sink": q.name, "err": err}).Warn("Ошибка закрытия получателя")
		}
	}
}
