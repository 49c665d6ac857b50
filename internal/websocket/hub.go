package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"rankstream/internal/eventbus"
	"rankstream/internal/metrics"
	"rankstream/internal/models"
	"rankstream/internal/period"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Per-client outbound buffer. A client that falls this far behind is
	// treated as a failed delivery and removed.
	sendBufferSize = 256

	// Named events on the push stream
	eventConnect   = "connect"
	eventRanking   = "ranking"
	eventHeartbeat = "heartbeat"
)

// Conn is the slice of a websocket connection the hub uses. Satisfied by
// *websocket.Conn; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	SetWriteDeadline(t time.Time) error
	Close() error
}

// TopProvider supplies the all-time top-10 sent to each new viewer.
type TopProvider interface {
	TopN(ctx context.Context, pt period.Type, periodKey string, n int) ([]models.RankingEntry, error)
}

// Client is one live viewer connection. Broadcast-only: no associated user.
type Client struct {
	id   string
	hub  *Hub
	conn Conn
	send chan []byte
}

// envelope frames every push message as a named event.
type envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func marshalEvent(event string, data interface{}) ([]byte, error) {
	return json.Marshal(envelope{Event: event, Data: data})
}

// Hub maintains the registry of live viewer connections and fans ranking
// events out to all of them. Delivery is at-most-once: a failed or slow
// connection is removed immediately and missed events are never replayed.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	rankings TopProvider
	bus      eventbus.Bus

	heartbeatInterval time.Duration
	maxConnAge        time.Duration

	mu sync.RWMutex
}

// NewHub creates a new push hub.
func NewHub(rankings TopProvider, bus eventbus.Bus, heartbeatInterval, maxConnAge time.Duration) *Hub {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	if maxConnAge <= 0 {
		maxConnAge = 30 * time.Minute
	}

	return &Hub{
		clients:           make(map[*Client]bool),
		register:          make(chan *Client),
		unregister:        make(chan *Client),
		rankings:          rankings,
		bus:               bus,
		heartbeatInterval: heartbeatInterval,
		maxConnAge:        maxConnAge,
	}
}

// Run owns registration, the heartbeat timer and the bus subscription.
// Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	log.Println("hub: started")

	unsubscribe, err := h.bus.Subscribe(func(event models.RankingChangeEvent) {
		h.Broadcast(event)
	})
	if err != nil {
		log.Printf("hub: event bus subscription failed: %v", err)
	} else {
		defer unsubscribe()
	}

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case client := <-h.register:
			h.admit(ctx, client)

		case client := <-h.unregister:
			h.remove(client)

		case <-heartbeat.C:
			h.heartbeat()

		case <-ctx.Done():
			log.Println("hub: shutting down")
			h.closeAll()
			return
		}
	}
}

// admit queues the connect event and the initial all-time top-10 into the
// client's buffer, then adds it to the broadcast set. Queueing before the
// map insert guarantees both arrive ahead of any live update.
func (h *Hub) admit(ctx context.Context, client *Client) {
	top10, err := h.rankings.TopN(ctx, period.AllTime, period.AllTimeKey, 10)
	if err != nil {
		log.Printf("hub: initial ranking fetch failed: %v", err)
		top10 = []models.RankingEntry{}
	}

	h.mu.Lock()
	count := len(h.clients) + 1

	connectMsg, err := marshalEvent(eventConnect, models.ConnectPayload{ConnectedClients: count})
	if err == nil {
		client.send <- connectMsg
	}

	initialMsg, err := marshalEvent(eventRanking, models.RankingChangeEvent{
		EventType:  models.EventInitialRanking,
		PeriodType: period.AllTime.External(),
		PeriodKey:  period.AllTimeKey,
		Top10:      top10,
		Timestamp:  time.Now(),
	})
	if err == nil {
		client.send <- initialMsg
	}

	h.clients[client] = true
	h.mu.Unlock()

	metrics.ConnectedClients.Set(float64(count))
	log.Printf("hub: client %s connected (total %d)", client.id, count)
}

// remove drops a client from the registry and closes its send channel.
// Safe to call more than once per client.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.ConnectedClients.Set(float64(count))
		log.Printf("hub: client %s disconnected (total %d)", client.id, count)
	}
}

// Broadcast delivers a ranking event to every registered connection,
// independently and without retry. Connections that cannot keep up are
// removed on the spot.
func (h *Hub) Broadcast(event models.RankingChangeEvent) {
	message, err := marshalEvent(eventRanking, event)
	if err != nil {
		log.Printf("hub: failed to marshal ranking event: %v", err)
		return
	}
	h.push(message)
}

// heartbeat pushes a keep-alive to every connection. This detects half-open
// connections and keeps intermediaries from tearing idle streams down.
func (h *Hub) heartbeat() {
	message, err := marshalEvent(eventHeartbeat, models.HeartbeatPayload{Timestamp: time.Now()})
	if err != nil {
		return
	}
	h.push(message)
}

// push fans one framed message out to all clients, pruning failures.
func (h *Hub) push(message []byte) {
	var failed []*Client

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range failed {
		metrics.DroppedPushes.Inc()
		h.remove(client)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	metrics.ConnectedClients.Set(0)
}

// ConnectionCount returns the current number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump discards inbound frames (the stream is one-way) and unregisters
// the client when the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("hub: client %s unexpected close: %v", c.id, err)
			}
			break
		}
	}
}

// writePump drains the send buffer onto the wire. The idle timer bounds the
// total lifetime of an abandoned connection regardless of errors.
func (c *Client) writePump() {
	idle := time.NewTimer(c.hub.maxConnAge)
	defer func() {
		idle.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.remove(c)
				return
			}

		case <-idle.C:
			log.Printf("hub: client %s reached idle ceiling", c.id)
			c.hub.remove(c)
			return
		}
	}
}

// ServeWS registers a new viewer connection and pumps it until disconnect.
func ServeWS(hub *Hub, conn Conn) {
	client := &Client{
		id:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	client.hub.register <- client

	go client.writePump()

	// blocks until the peer goes away
	client.readPump()
}
