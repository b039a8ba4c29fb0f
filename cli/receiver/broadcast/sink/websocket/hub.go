package websocket

/*
Рассылка обновлений подключённым по WebSocket наблюдателям.

Раздел настроек в конфиге:

client_buffer = 64
write_timeout_ms = 5000
codec = "json"
*/

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daniil11ru/fleettrack/cli/receiver/broadcast/message"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	defaultClientBuffer = 64
	defaultWriteTimeout = 5 * time.Second
	pingPeriod          = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.send) })
}

// Hub держит подключения наблюдателей. Медленный наблюдатель теряет
// обновления при заполнении своего буфера и не задерживает остальных.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	clientBuffer int
	writeTimeout time.Duration
	codec        string
	messageType  int

	dropped atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*client]struct{}),
		clientBuffer: defaultClientBuffer,
		writeTimeout: defaultWriteTimeout,
		messageType:  websocket.TextMessage,
	}
}

func (h *Hub) Init(cfg map[string]string) error {
	if cfg == nil {
		return nil
	}
	if raw := cfg["client_buffer"]; raw != "" {
		buffer, err := strconv.Atoi(raw)
		if err != nil || buffer <= 0 {
			return fmt.Errorf("некорректный client_buffer: %s", raw)
		}
		h.clientBuffer = buffer
	}
	if raw := cfg["write_timeout_ms"]; raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return fmt.Errorf("некорректный write_timeout_ms: %s", raw)
		}
		h.writeTimeout = time.Duration(ms) * time.Millisecond
	}
	h.codec = cfg["codec"]
	if h.codec == message.CodecMsgpack {
		h.messageType = websocket.BinaryMessage
	}
	return nil
}

// ServeHTTP переводит соединение на WebSocket и подписывает его на обновления
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Warn("Не удалось установить WebSocket-соединение")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.clientBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.WithField("remote", r.RemoteAddr).Debug("Подключён наблюдатель")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.stop()
	}
	h.mu.Unlock()
}

// чтение нужно только для обработки закрытия соединения
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithField("err", err).Debug("Ошибка WebSocket-соединения")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(h.messageType, payload); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func (h *Hub) Save(update message.Update) error {
	payload, err := update.Encode(h.codec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации обновления: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped число обновлений, не доставленных медленным наблюдателям
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.stop()
	}
	h.closed = true
	return nil
}
