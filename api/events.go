package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/alfajr/tailorbook/tailor"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pongs and close frames.
	maxMessageSize = 512

	sendBuffer = 64
)

// EventStream pushes Book update events to websocket clients so list and
// statistics views can refresh without polling.
type EventStream struct {
	book     *tailor.Book
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewEventStream(book *tailor.Book, logger *zap.Logger, checkOrigin func(r *http.Request) bool) *EventStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStream{
		book:   book,
		logger: logger.Named("events"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades the connection and streams events until the client leaves.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote", r.RemoteAddr))
		return
	}

	send := make(chan []byte, sendBuffer)
	done := make(chan struct{})

	unsubscribe := s.book.OnUpdate(func(e tailor.Event) {
		msg, err := json.Marshal(e)
		if err != nil {
			s.logger.Error("encode event", zap.Error(err))
			return
		}
		select {
		case send <- msg:
		case <-done:
		default:
			// A slow client must not block writers; it reloads on the next event.
			s.logger.Warn("event dropped for slow client", zap.String("kind", string(e.Kind)))
		}
	})

	s.logger.Info("client connected", zap.String("remote", r.RemoteAddr))

	go s.writePump(conn, send, done)
	s.readPump(conn)

	unsubscribe()
	close(done)
	s.logger.Info("client disconnected", zap.String("remote", r.RemoteAddr))
}

// readPump consumes control frames until the connection fails.
func (s *EventStream) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *EventStream) writePump(conn *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
