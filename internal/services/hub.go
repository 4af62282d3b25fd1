package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/winniek75/flashinput-sub005/internal/config"
	"github.com/winniek75/flashinput-sub005/internal/models"
	"github.com/winniek75/flashinput-sub005/internal/security"
)

// Hub is the connection layer: it knows every live client by connection id,
// keeps topic subscriptions and hands inbound frames and disconnects to the
// registry loop through Messages.
type Hub struct {
	// Live clients: connID -> client
	clients map[string]*Client

	// Topic subscriptions: topic -> set of connIDs
	topics map[string]map[string]struct{}

	// Reverse subscriptions: connID -> set of topics
	subscriptions map[string]map[string]struct{}

	// Unregister client and report its disconnect
	unregister chan *Client

	// Inbound frames and disconnects for the registry
	inbound chan *ClientMessage

	// Closed when Run returns
	quit chan struct{}

	limiter *security.RateLimiter
	metrics *Metrics
	logger  *slog.Logger

	mu sync.RWMutex
}

// ClientMessage represents a message received from a client, or the client's
// disconnect when Closed is set.
type ClientMessage struct {
	ConnID  string
	Message []byte
	Closed  bool
}

func NewHub(metrics *Metrics, limiter *security.RateLimiter, logger *slog.Logger) *Hub {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if limiter == nil {
		limiter = security.NewRateLimiter(config.MaxMessagesPerSecond, config.RateLimitWindow)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		clients:       make(map[string]*Client),
		topics:        make(map[string]map[string]struct{}),
		subscriptions: make(map[string]map[string]struct{}),
		unregister:    make(chan *Client, config.HubUnregisterBufferSize),
		inbound:       make(chan *ClientMessage, config.HubInboundBufferSize),
		quit:          make(chan struct{}),
		limiter:       limiter,
		metrics:       metrics,
		logger:        logger,
	}
}

// Messages is consumed by the session registry loop.
func (h *Hub) Messages() <-chan *ClientMessage {
	return h.inbound
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)

	for {
		select {
		case c := <-h.unregister:
			h.unregisterClient(ctx, c)

		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

// Register makes a client addressable. It is synchronous so that replies to
// the client's first frame cannot race its registration.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.IncrementConnections()
	h.logger.Debug("websocket registered", "conn", c.ID(), "connections", total)
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) unregisterClient(ctx context.Context, c *Client) {
	connID := c.ID()

	h.mu.Lock()
	if _, ok := h.clients[connID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, connID)
	h.removeSubscriptionsLocked(connID)
	h.mu.Unlock()

	h.limiter.Remove(connID)
	h.metrics.DecrementConnections()
	c.Close()
	h.logger.Debug("websocket unregistered", "conn", connID)

	select {
	case h.inbound <- &ClientMessage{ConnID: connID, Closed: true}:
	case <-ctx.Done():
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.topics = make(map[string]map[string]struct{})
	h.subscriptions = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.logger.Info("hub stopped", "closed_connections", len(clients))
}

// receive applies the rate limit and forwards a frame to the registry.
func (h *Hub) receive(c *Client, data []byte) {
	if !h.limiter.Allow(c.ID()) {
		h.logger.Warn("rate limit exceeded", "conn", c.ID())
		h.metrics.IncrementRateLimitViolations()
		h.Send(c.ID(), models.NewErrorMessage("Rate limit exceeded. Please slow down.", "rate limit exceeded"))
		return
	}

	h.metrics.IncrementMessagesReceived()
	select {
	case h.inbound <- &ClientMessage{ConnID: c.ID(), Message: data}:
	case <-c.ctx.Done():
	case <-h.quit:
	}
}

// Send addresses one message to a single connection.
func (h *Hub) Send(connID string, msg *models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()

	if !ok {
		h.logger.Debug("send to unknown connection dropped", "conn", connID, "type", msg.Type)
		return
	}
	c.Send(data)
}

// Publish delivers msg to every subscriber of topic except one connection.
func (h *Hub) Publish(topic string, msg *models.WSMessage, except string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "type", msg.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.topics[topic]))
	for connID := range h.topics[topic] {
		if connID == except {
			continue
		}
		if c, ok := h.clients[connID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	h.logger.Debug("publishing to topic", "room", topic, "type", msg.Type, "recipients", len(targets))
	for _, c := range targets {
		c.Send(data)
	}
}

// Subscribe adds connID to topic. Connections that are already gone are
// ignored so their subscriptions cannot outlive them.
func (h *Hub) Subscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]struct{})
	}
	h.topics[topic][connID] = struct{}{}

	if h.subscriptions[connID] == nil {
		h.subscriptions[connID] = make(map[string]struct{})
	}
	h.subscriptions[connID][topic] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.topics[topic]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	if topics, ok := h.subscriptions[connID]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(h.subscriptions, connID)
		}
	}
}

func (h *Hub) DropTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.topics[topic] {
		if topics, ok := h.subscriptions[connID]; ok {
			delete(topics, topic)
			if len(topics) == 0 {
				delete(h.subscriptions, connID)
			}
		}
	}
	delete(h.topics, topic)
}

// Subscribers lists the connections currently subscribed to topic.
func (h *Hub) Subscribers(topic string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.topics[topic]))
	for connID := range h.topics[topic] {
		ids = append(ids, connID)
	}
	return ids
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetMetrics returns a snapshot of the relay metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}

// removeSubscriptionsLocked drops every subscription of connID. h.mu must be held.
func (h *Hub) removeSubscriptionsLocked(connID string) {
	for topic := range h.subscriptions[connID] {
		if members, ok := h.topics[topic]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.topics, topic)
			}
		}
	}
	delete(h.subscriptions, connID)
}
