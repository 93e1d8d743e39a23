package server

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/npezzotti/flashchat/internal/stats"
)

const (
	MetricActiveConnections        = "NumActiveConnections"
	MetricAuthenticatedConnections = "NumAuthenticatedConnections"
	MetricActiveRooms              = "NumActiveRooms"
	MetricEventsEmitted            = "NumEventsEmitted"
	MetricEventsDropped            = "NumEventsDropped"
)

var (
	ErrHubClosed        = errors.New("hub is shut down")
	ErrNotRegistered    = errors.New("connection is not registered")
	ErrIdentityMismatch = errors.New("own room requires matching identity")
	ErrInvalidRoom      = errors.New("invalid room id")
)

// Emitter delivers payload under event to every connection currently in
// roomId and reports how many connections it was queued for.
type Emitter interface {
	Emit(roomId, event string, payload any) int
}

// Hub owns the room -> connections index. All membership changes and
// deliveries go through it.
type Hub struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	closed  bool

	// pumps tracks running client read/write goroutines
	pumps sync.WaitGroup
}

func NewHub(logger *log.Logger, su stats.StatsProvider) *Hub {
	su.RegisterMetric(MetricActiveConnections)
	su.RegisterMetric(MetricAuthenticatedConnections)
	su.RegisterMetric(MetricActiveRooms)
	su.RegisterMetric(MetricEventsEmitted)
	su.RegisterMetric(MetricEventsDropped)

	return &Hub{
		log:     logger,
		stats:   su,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
	}
}

// Register adds c to the hub. An authenticated connection joins its own
// room before Register returns.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.stats.Incr(MetricActiveConnections)
	if c.Authenticated() {
		h.stats.Incr(MetricAuthenticatedConnections)
		return h.JoinOwnRoom(c, c.userId)
	}

	return nil
}

// trackPumps accounts for the two pump goroutines of a connection. It fails
// once Shutdown has started waiting for them.
func (h *Hub) trackPumps() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.pumps.Add(2)
	return true
}

// Unregister removes c from every room and from the hub. It reports whether
// c was registered.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return false
	}
	h.leaveAllLocked(c)
	delete(h.clients, c)
	h.mu.Unlock()

	h.stats.Decr(MetricActiveConnections)
	if c.Authenticated() {
		h.stats.Decr(MetricAuthenticatedConnections)
	}

	return true
}

func (h *Hub) JoinOwnRoom(c *Client, userId string) error {
	if userId == "" || userId != c.userId {
		return ErrIdentityMismatch
	}
	return h.join(c, UserRoom(userId))
}

func (h *Hub) JoinChatRoom(c *Client, chatId string) error {
	if chatId == "" {
		return ErrInvalidRoom
	}
	return h.join(c, ChatRoom(chatId))
}

func (h *Hub) join(c *Client, roomId string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return ErrNotRegistered
	}
	if _, ok := c.rooms[roomId]; ok {
		return nil
	}

	members, ok := h.rooms[roomId]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomId] = members
		h.stats.Incr(MetricActiveRooms)
	}
	members[c] = struct{}{}
	c.rooms[roomId] = struct{}{}

	return nil
}

// Leave removes c from roomId. Leaving a room c is not in is a no-op.
func (h *Hub) Leave(c *Client, roomId string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(c, roomId)
}

func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveAllLocked(c)
}

func (h *Hub) leaveAllLocked(c *Client) {
	for roomId := range c.rooms {
		h.leaveLocked(c, roomId)
	}
}

func (h *Hub) leaveLocked(c *Client, roomId string) {
	if _, ok := c.rooms[roomId]; !ok {
		return
	}
	delete(c.rooms, roomId)

	members := h.rooms[roomId]
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, roomId)
		h.stats.Decr(MetricActiveRooms)
	}
}

// Emit encodes payload once and queues it on every connection in roomId at
// the time of the call. A connection whose send buffer is full is dropped
// from the hub and closed; the others still receive the event.
func (h *Hub) Emit(roomId, event string, payload any) int {
	msg, err := NewServerMessage(event, payload)
	if err != nil {
		h.log.Printf("emit %s to %q: %v", event, roomId, err)
		return 0
	}

	return h.emitMessage(roomId, msg)
}

func (h *Hub) emitMessage(roomId string, msg *ServerMessage) int {
	var (
		delivered int
		failed    []*Client
	)

	h.mu.RLock()
	for c := range h.rooms[roomId] {
		if c.queueMessage(msg) {
			delivered++
		} else {
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	if delivered > 0 {
		h.stats.Incr(MetricEventsEmitted)
	}

	for _, c := range failed {
		h.log.Printf("dropping connection %s: send buffer full on %q", c.id, roomId)
		h.stats.Incr(MetricEventsDropped)
		h.Unregister(c)
		c.stopClient()
	}

	return delivered
}

// Members returns the connections currently in roomId.
func (h *Hub) Members(roomId string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]*Client, 0, len(h.rooms[roomId]))
	for c := range h.rooms[roomId] {
		members = append(members, c)
	}
	return members
}

func (h *Hub) RoomSize(roomId string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomId])
}

// Rooms returns the sorted room ids c is a member of.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for roomId := range c.rooms {
		rooms = append(rooms, roomId)
	}
	sort.Strings(rooms)
	return rooms
}

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown stops accepting connections, closes every registered connection
// and waits for their pumps to exit or ctx to be done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.log.Println("shutting down hub")

	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
		c.stopClient()
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
