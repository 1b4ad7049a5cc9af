package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// Inbound events accepted from clients.
const (
	eventJoinRoom = "join_room"
	eventMarkRead = "mark_read"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// envelope is the frame format on the wire, both directions:
// {"event": "...", "data": {...}}.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Session wraps one WebSocket connection. Writes go through a
// buffered channel drained by a single writer goroutine, since
// gorilla connections allow only one concurrent writer. A session
// that cannot keep up has frames dropped (logged) rather than
// blocking the registry.
type Session struct {
	conn *websocket.Conn
	reg  *Registry

	send      chan outbound
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an upgraded connection. The caller must invoke Run
// to start the pumps.
func NewSession(conn *websocket.Conn, reg *Registry) *Session {
	return &Session{
		conn: conn,
		reg:  reg,
		send: make(chan outbound, sendBuffer),
		done: make(chan struct{}),
	}
}

// Push queues an event for the client. It never blocks; a full
// buffer drops the frame, which is acceptable because pending
// notifications are replayed from storage on reconnect.
func (s *Session) Push(event string, payload interface{}) error {
	select {
	case s.send <- outbound{Event: event, Data: payload}:
		return nil
	case <-s.done:
		return errors.New("session closed")
	default:
		return errors.New("send buffer full")
	}
}

// Run drives the session until the connection drops or ctx is
// cancelled. It blocks; callers run it from the HTTP handler
// goroutine. On return the session has left the registry and the
// connection is closed.
func (s *Session) Run(ctx context.Context) {
	// Closing the connection is what unblocks the read loop, so a
	// cancelled ctx (server shutdown) must translate into a close or
	// the session would pin the shutdown until the client hangs up.
	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	go s.writePump()
	s.readPump(ctx)
	s.reg.Leave(s)
	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var env envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("realtime: read error: %v", err)
			}
			return
		}
		s.handle(ctx, env)
	}
}

func (s *Session) handle(ctx context.Context, env envelope) {
	switch env.Event {
	case eventJoinRoom:
		var data struct {
			CustomerID string `json:"customer_id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.CustomerID == "" {
			s.pushError("missing customer_id")
			return
		}
		if err := s.reg.Join(ctx, s, data.CustomerID); err != nil {
			log.Printf("realtime: join for customer %s failed: %v", data.CustomerID, err)
			s.pushError("failed to load notifications")
		}
	case eventMarkRead:
		var data struct {
			NotificationID string `json:"notification_id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.NotificationID == "" {
			s.pushError("missing notification_id")
			return
		}
		if err := s.reg.MarkRead(ctx, data.NotificationID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.pushError("notification not found")
			} else {
				log.Printf("realtime: mark read %s failed: %v", data.NotificationID, err)
				s.pushError("failed to mark notification read")
			}
			return
		}
		_ = s.Push(EventMarkedRead, map[string]string{"notification_id": data.NotificationID})
	default:
		s.pushError("unknown event")
	}
}

func (s *Session) pushError(msg string) {
	_ = s.Push(EventError, map[string]string{"message": msg})
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case out := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(out); err != nil {
				s.close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}
