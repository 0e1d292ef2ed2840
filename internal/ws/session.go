package ws

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/medivisit/telehealth-api/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Session is one live authenticated connection. The identity is fixed
// at handshake; room membership is transient and lapses on disconnect.
type Session struct {
	identity *model.TokenClaims
	conn     *websocket.Conn
	send     chan []byte

	// done is closed by the hub goroutine when the session is dropped.
	// The send channel itself is never closed, so a frame enqueued
	// concurrently with shutdown can never panic.
	done chan struct{}
}

func newSession(identity *model.TokenClaims, conn *websocket.Conn) *Session {
	return &Session{
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// Identity returns the verified identity bound at handshake.
func (s *Session) Identity() *model.TokenClaims {
	return s.identity
}

func (s *Session) readPump(r *Router) {
	defer func() {
		r.hub.Unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		r.dispatch(s, raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
