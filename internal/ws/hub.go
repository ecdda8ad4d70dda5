// Package ws pushes dashboard messages to connected WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/devdash/internal/logger"
	"github.com/gorilla/websocket"
)

// Message types sent to clients.
const (
	TypeState        = "state"
	TypeNotification = "notification"
	TypeHaptic       = "haptic"
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 3 * time.Second
	queueSize    = 64
)

// Message is the envelope of every frame.
type Message struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Hub fans out messages to every client. Registration and delivery run on
// the Run goroutine; Publish never blocks.
type Hub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte
	done       chan struct{}
	upgrader   websocket.Upgrader
	count      atomic.Int64
	log        logger.Logger

	// Greeting, when set, produces the first message a new client receives.
	Greeting func() Message
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn, 8),
		unregister: make(chan *websocket.Conn, 8),
		broadcast:  make(chan []byte, queueSize),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// Run delivers messages until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			if h.Greeting != nil {
				if b, err := json.Marshal(h.Greeting()); err == nil {
					h.write(c, websocket.TextMessage, b)
				}
			}

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			for c := range h.clients {
				h.write(c, websocket.TextMessage, msg)
			}

		case <-ping.C:
			for c := range h.clients {
				h.write(c, websocket.PingMessage, nil)
			}
		}
	}
}

func (h *Hub) write(c *websocket.Conn, kind int, b []byte) {
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.WriteMessage(kind, b); err != nil {
		h.log.Debug().Err(err).Str("remote", c.RemoteAddr().String()).Msg("Dropping websocket client")
		h.drop(c)
	}
}

func (h *Hub) drop(c *websocket.Conn) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.count.Store(int64(len(h.clients)))
	_ = c.Close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Handler upgrades requests and registers the connection. Inbound frames
// are discarded; reading only keeps the pong deadline alive.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("Websocket upgrade failed")
			return
		}
		select {
		case h.register <- conn:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go func() {
			defer func() {
				select {
				case h.unregister <- conn:
				case <-h.done:
				}
			}()

			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(readTimeout))
			})

			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
}

// Publish queues a message for every client. It drops the message when the
// queue is full.
func (h *Hub) Publish(kind string, data any) {
	b, err := json.Marshal(Message{Type: kind, At: time.Now(), Data: data})
	if err != nil {
		h.log.Error().Err(err).Str("type", kind).Msg("Failed to encode websocket message")
		return
	}

	select {
	case h.broadcast <- b:
	default:
		h.log.Warn().Str("type", kind).Msg("Websocket queue full, dropping message")
	}
}
