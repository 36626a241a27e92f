package webui

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readLimit     = 512 * 1024
	heartbeatWait = 60 * time.Second
)

// SafeConn wraps a websocket connection with a write mutex and panic
// recovery. Events arrive from the bus goroutine while pong replies come
// from the read goroutine; gorilla/websocket does not allow concurrent
// writers.
type SafeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  bool
}

// NewSafeConn creates a safe connection wrapper.
func NewSafeConn(conn *websocket.Conn) *SafeConn {
	return &SafeConn{conn: conn}
}

// WriteJSON writes v to the connection. Writes to a closed connection are
// silently dropped.
func (sc *SafeConn) WriteJSON(v any) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()

	if sc.closed {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			sc.closed = true
		}
	}()

	return sc.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (sc *SafeConn) Close() error {
	sc.writeMu.Lock()
	sc.closed = true
	sc.writeMu.Unlock()
	return sc.conn.Close()
}

// handleWebSocket upgrades the request and streams bus events to the client
// until either side disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Logf("websocket upgrade failed: %v", err)
		return
	}

	safeConn := NewSafeConn(conn)
	defer safeConn.Close()

	sessionID := fmt.Sprintf("ws_%d", time.Now().UnixNano())
	s.connections.Store(conn, &connectionInfo{SessionID: sessionID, ConnectedAt: time.Now()})
	defer s.connections.Delete(conn)

	s.logger.Logf("websocket client connected: %s", sessionID)

	// Subscribe before the greeting so no event published after the client
	// sees the greeting can be missed.
	eventCh := s.bus.Subscribe(sessionID)
	defer s.bus.Unsubscribe(sessionID)

	safeConn.WriteJSON(map[string]any{
		"type": "connection_status",
		"data": map[string]any{"connected": true, "session_id": sessionID},
	})

	ctx := r.Context()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)

		conn.SetReadLimit(readLimit)
		for {
			conn.SetReadDeadline(time.Now().Add(heartbeatWait))

			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					// Idle client; ping to check it is still there.
					if perr := safeConn.WriteJSON(map[string]any{
						"type": "ping",
						"data": map[string]any{"timestamp": time.Now().Unix()},
					}); perr != nil {
						return
					}
					continue
				}
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Logf("websocket %s read error: %v", sessionID, err)
				}
				return
			}

			s.handleClientMessage(safeConn, msg)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			s.logger.Logf("websocket client disconnected: %s", sessionID)
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := safeConn.WriteJSON(event); err != nil {
				s.logger.Logf("websocket %s write error: %v", sessionID, err)
				return
			}
		}
	}
}

// handleClientMessage processes a message from the client. The panel only
// ever keeps the connection alive; everything else is ignored.
func (s *Server) handleClientMessage(safeConn *SafeConn, msg map[string]any) {
	msgType, ok := msg["type"].(string)
	if !ok {
		return
	}

	if msgType == "ping" {
		safeConn.WriteJSON(map[string]any{
			"type": "pong",
			"data": map[string]any{"timestamp": time.Now().Unix()},
		})
	}
}
