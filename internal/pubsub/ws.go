package pubsub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WS connection tuning, grounded on the teacher's websocket control plane
// constants (same ballpark of buffer sizes and keepalive intervals).
const (
	wsReadBufferBytes  = 8192
	wsWriteBufferBytes = 8192
	wsPingInterval     = 15 * time.Second
	wsPongWait         = 45 * time.Second
	wsWriteWait        = 10 * time.Second
)

// Bridge upgrades HTTP connections to websockets and streams Bus events for
// a topic to each connected client. It is the "optional network fan-out"
// for a push-capable channel sitting on top of the bus, not the bus itself:
// LocalBus/RedisBus work with or without a single subscriber ever using
// this bridge.
type Bridge struct {
	bus      Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewBridge creates a websocket bridge over bus.
func NewBridge(bus Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		bus:    bus,
		logger: logger.With("component", "pubsub_ws_bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBufferBytes,
			WriteBufferSize: wsWriteBufferBytes,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeTopic upgrades the request to a websocket and streams every Event
// published on topic to it until the client disconnects or the bus
// subscription is cancelled. Intended to be mounted behind a handler that
// resolves the topic (typically AgentTopic(session_key)) from the request.
func (b *Bridge) ServeTopic(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Debug("websocket upgrade failed", "error", err, "topic", topic)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe, err := b.bus.Subscribe(ctx, topic)
	if err != nil {
		b.logger.Debug("subscribe failed", "error", err, "topic", topic)
		return
	}
	defer unsubscribe()

	// A reader goroutine exists only to notice the client going away;
	// this bridge never accepts inbound frames.
	go func() {
		defer cancel()
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}
