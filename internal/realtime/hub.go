package realtime

import (
	"sync"

	"parkwatch/pkg/logger"
	"parkwatch/pkg/model"
)

// Subscriber is one connected client's view of the hub: a bounded event
// channel plus its subscription identity.
type Subscriber struct {
	id     string
	events chan model.AvailabilityEvent
	once   sync.Once
}

func (s *Subscriber) ID() string {
	return s.id
}

// Events delivers availability changes for every lot the subscriber follows,
// in per-lot publish order.
func (s *Subscriber) Events() <-chan model.AvailabilityEvent {
	return s.events
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.events)
	})
}

// Hub routes committed availability events to subscribed clients. Each client
// has one bounded backlog; a client that stops draining it is disconnected
// rather than allowed to stall other subscribers.
type Hub struct {
	mu      sync.RWMutex
	byLot   map[string]map[string]*Subscriber
	clients map[string]*Subscriber
	backlog int
	log     *logger.Logger
}

func NewHub(backlog int, log *logger.Logger) *Hub {
	if backlog < 1 {
		backlog = 1
	}
	return &Hub{
		byLot:   make(map[string]map[string]*Subscriber),
		clients: make(map[string]*Subscriber),
		backlog: backlog,
		log:     log,
	}
}

// Register adds a client and returns its subscriber handle. The handle's
// channel stays open until Disconnect.
func (h *Hub) Register(clientID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.clients[clientID]; ok {
		return existing
	}

	sub := &Subscriber{
		id:     clientID,
		events: make(chan model.AvailabilityEvent, h.backlog),
	}
	h.clients[clientID] = sub

	h.log.Debug("Realtime client registered", "client_id", clientID, "total", len(h.clients))
	return sub
}

// Subscribe adds the client to a lot's fan-out set. Subscribing twice to the
// same lot is a no-op; events are delivered once.
func (h *Hub) Subscribe(clientID, lotID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.clients[clientID]
	if !ok {
		return
	}

	lot, ok := h.byLot[lotID]
	if !ok {
		lot = make(map[string]*Subscriber)
		h.byLot[lotID] = lot
	}
	lot[clientID] = sub
}

func (h *Hub) Unsubscribe(clientID, lotID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromLot(clientID, lotID)
}

// Disconnect drops every subscription the client holds and closes its event
// channel. After it returns the client receives nothing further.
func (h *Hub) Disconnect(clientID string) {
	h.mu.Lock()
	sub, ok := h.clients[clientID]
	if ok {
		delete(h.clients, clientID)
		for lotID := range h.byLot {
			h.removeFromLot(clientID, lotID)
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		sub.close()
		h.log.Debug("Realtime client disconnected", "client_id", clientID, "total", total)
	}
}

// Publish fans the event out to the lot's subscribers without blocking. A
// subscriber whose backlog is full is disconnected; it can reconnect and
// refetch current state.
func (h *Hub) Publish(event model.AvailabilityEvent) {
	h.mu.RLock()
	var stuck []string
	for clientID, sub := range h.byLot[event.LotID] {
		select {
		case sub.events <- event:
		default:
			stuck = append(stuck, clientID)
		}
	}
	h.mu.RUnlock()

	for _, clientID := range stuck {
		h.log.Warn("Dropping stuck realtime client", "client_id", clientID, "lot_id", event.LotID)
		h.Disconnect(clientID)
	}
}

// SubscriberCount reports how many clients follow the lot.
func (h *Hub) SubscriberCount(lotID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byLot[lotID])
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]string, 0, len(h.clients))
	for clientID := range h.clients {
		clients = append(clients, clientID)
	}
	h.mu.Unlock()

	for _, clientID := range clients {
		h.Disconnect(clientID)
	}
	h.log.Info("Realtime hub shut down", "disconnected", len(clients))
}

// removeFromLot requires h.mu to be held.
func (h *Hub) removeFromLot(clientID, lotID string) {
	lot, ok := h.byLot[lotID]
	if !ok {
		return
	}
	delete(lot, clientID)
	if len(lot) == 0 {
		delete(h.byLot, lotID)
	}
}
