package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"llmd/internal/manager"
)

const (
	eventBuffer    = 64
	eventWriteWait = 5 * time.Second
	eventPingEvery = 30 * time.Second
)

// EventHub fans manager events out to websocket subscribers. It implements
// manager.EventPublisher; Publish never blocks, and a subscriber whose
// buffer is full loses the event.
type EventHub struct {
	mu       sync.Mutex
	subs     map[chan manager.Event]struct{}
	upgrader websocket.Upgrader
}

// NewEventHub returns a hub accepting connections from any origin.
func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[chan manager.Event]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Publish implements manager.EventPublisher.
func (h *EventHub) Publish(e manager.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			eventsDropped.Inc()
		}
	}
}

func (h *EventHub) subscribe() (<-chan manager.Event, func()) {
	ch := make(chan manager.Event, eventBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	eventSubscribers.Inc()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
		eventSubscribers.Dec()
	}
}

// Subscribers returns the number of connected clients.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events as JSON text frames
// until the client goes away or the server shuts down.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("events upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.subscribe()
	defer unsubscribe()

	// The read loop only detects the peer closing; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-serverBaseCtx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(eventWriteWait))
			return
		case e := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(e); err != nil {
				zlog.Debug().Err(err).Msg("events write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		}
	}
}
