package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/squeeze-sensor/internal/status"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		s.logger.Warn("ws upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		s.wg.Done()
		return
	}
	go s.push(conn, r.RemoteAddr)
}

// push writes the status document to conn every interval until the client
// goes away or the server shuts down.
func (s *Server) push(conn *websocket.Conn, remote string) {
	defer s.wg.Done()
	defer conn.Close()

	s.logger.Info("ws client connected", "remote_addr", remote)
	gone := make(chan struct{})
	go readPump(conn, gone)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.writeStatus(conn); err != nil {
		s.logger.Info("ws client dropped", "remote_addr", remote, "error", err)
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return

		case <-gone:
			s.logger.Info("ws client disconnected", "remote_addr", remote)
			return

		case <-ticker.C:
			if err := s.writeStatus(conn); err != nil {
				s.logger.Info("ws client dropped", "remote_addr", remote, "error", err)
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Info("ws ping failed", "remote_addr", remote, "error", err)
				}
				return
			}
		}
	}
}

func (s *Server) writeStatus(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot()))
}

// readPump discards client frames so control messages are processed, and
// closes gone when the connection fails.
func readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
