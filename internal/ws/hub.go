package ws

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medivisit/telehealth-api/pkg/logger"
)

type roomOp struct {
	session *Session
	room    uuid.UUID
}

type broadcastOp struct {
	room  uuid.UUID
	frame []byte
}

// Hub owns all room membership state. Every mutation and broadcast
// flows through the single Run goroutine, so the maps never need a
// lock and per-room delivery order matches submission order.
type Hub struct {
	instanceID string

	register   chan *Session
	unregister chan *Session
	join       chan roomOp
	leave      chan roomOp
	broadcast  chan broadcastOp

	rooms    map[uuid.UUID]map[*Session]struct{}
	sessions map[*Session]struct{}

	// done is closed when Run returns; API calls racing a shutdown
	// select on it instead of blocking forever.
	done chan struct{}

	metrics *hubMetrics
	logger  *logger.Logger
}

type hubMetrics struct {
	sessionsLive   prometheus.Gauge
	broadcastsSent prometheus.Counter
	framesDropped  prometheus.Counter
}

func newHubMetrics(reg prometheus.Registerer) *hubMetrics {
	m := &hubMetrics{
		sessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_sessions_live",
			Help: "Number of live websocket sessions",
		}),
		broadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_broadcasts_total",
			Help: "Total frames broadcast to rooms",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_frames_dropped_total",
			Help: "Frames dropped because a session's send buffer was full",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessionsLive, m.broadcastsSent, m.framesDropped)
	}
	return m
}

func NewHub(l *logger.Logger, reg prometheus.Registerer) *Hub {
	return &Hub{
		instanceID: uuid.New().String(),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		join:       make(chan roomOp),
		leave:      make(chan roomOp),
		broadcast:  make(chan broadcastOp, 256),
		done:       make(chan struct{}),
		rooms:      make(map[uuid.UUID]map[*Session]struct{}),
		sessions:   make(map[*Session]struct{}),
		metrics:    newHubMetrics(reg),
		logger:     l.WithComponent("ws-hub"),
	}
}

// InstanceID identifies this hub for cross-instance fan-out dedup.
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Run processes hub operations until ctx is cancelled. Once Run
// returns, every hub API call is a no-op.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for s := range h.sessions {
				h.drop(s)
			}
			return
		case s := <-h.register:
			h.sessions[s] = struct{}{}
			h.metrics.sessionsLive.Inc()
		case s := <-h.unregister:
			h.drop(s)
		case op := <-h.join:
			if _, ok := h.sessions[op.session]; !ok {
				continue
			}
			members, ok := h.rooms[op.room]
			if !ok {
				members = make(map[*Session]struct{})
				h.rooms[op.room] = members
			}
			members[op.session] = struct{}{}
		case op := <-h.leave:
			h.leaveRoom(op.session, op.room)
		case op := <-h.broadcast:
			h.deliver(op)
		}
	}
}

func (h *Hub) drop(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	for room := range h.rooms {
		h.leaveRoom(s, room)
	}
	close(s.done)
	h.metrics.sessionsLive.Dec()
}

func (h *Hub) leaveRoom(s *Session, room uuid.UUID) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) deliver(op broadcastOp) {
	for s := range h.rooms[op.room] {
		select {
		case s.send <- op.frame:
			h.metrics.broadcastsSent.Inc()
		default:
			h.metrics.framesDropped.Inc()
			h.logger.Warn("dropping frame for slow session")
		}
	}
}

// Register adds a session to the hub.
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.done:
	}
}

// Unregister removes a session from the hub and all rooms.
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Join adds a session to a conversation room.
func (h *Hub) Join(s *Session, room uuid.UUID) {
	select {
	case h.join <- roomOp{session: s, room: room}:
	case <-h.done:
	}
}

// Leave removes a session from a conversation room.
func (h *Hub) Leave(s *Session, room uuid.UUID) {
	select {
	case h.leave <- roomOp{session: s, room: room}:
	case <-h.done:
	}
}

// Broadcast queues a frame for every session in the room, including
// the sender's own session.
func (h *Hub) Broadcast(room uuid.UUID, frame []byte) {
	select {
	case h.broadcast <- broadcastOp{room: room, frame: frame}:
	case <-h.done:
	}
}
