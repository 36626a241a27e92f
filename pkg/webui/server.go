// Package webui streams correction progress to local observers (an editor
// panel or browser tab) over websockets. It is purely observational: the
// engine never waits on it, and a slow or absent client changes nothing.
package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mendtool/mend/pkg/events"
	"github.com/mendtool/mend/pkg/utils"
)

const defaultListenAddr = "127.0.0.1:8737"

// connectionInfo stores metadata about a connected websocket client.
type connectionInfo struct {
	SessionID   string
	ConnectedAt time.Time
}

// Server serves the progress websocket and a health endpoint on a local
// address.
type Server struct {
	bus         *events.EventBus
	addr        string
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	connections sync.Map // map[*websocket.Conn]*connectionInfo
	logger      *utils.Logger
	isRunning   bool
	mutex       sync.RWMutex
	startTime   time.Time
}

// NewServer creates a progress server bound to addr ("host:port"). An empty
// addr uses the loopback default.
func NewServer(bus *events.EventBus, addr string, logger *utils.Logger) *Server {
	if addr == "" {
		addr = defaultListenAddr
	}
	if logger == nil {
		logger = utils.GetLogger(true)
	}
	return &Server{
		bus:    bus,
		addr:   addr,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
			},
		},
		startTime: time.Now(),
	}
}

// Start binds the listen address and begins serving. The bind happens
// synchronously so an occupied port fails here rather than in a goroutine;
// the server then runs until Shutdown or ctx cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.isRunning {
		s.mutex.Unlock()
		return fmt.Errorf("progress server is already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mutex.Unlock()
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{Handler: mux}
	s.addr = listener.Addr().String()
	s.isRunning = true
	s.startTime = time.Now()
	s.mutex.Unlock()

	s.logger.LogProcessStep(fmt.Sprintf("🌐 Progress UI listening at http://%s", s.addr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Logf("progress server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return nil
}

// Shutdown closes all client connections and stops the server.
func (s *Server) Shutdown() error {
	s.mutex.Lock()
	if !s.isRunning {
		s.mutex.Unlock()
		return nil
	}
	s.isRunning = false
	s.mutex.Unlock()

	s.connections.Range(func(conn, _ any) bool {
		if wsConn, ok := conn.(*websocket.Conn); ok {
			wsConn.Close()
		}
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// IsRunning reports whether the server is currently serving.
func (s *Server) IsRunning() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address, resolved after Start when the
// configured address used port 0.
func (s *Server) Addr() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"addr":    s.Addr(),
		"uptime":  time.Since(s.startTime).String(),
		"clients": s.countConnections(),
	})
}

func (s *Server) countConnections() int {
	count := 0
	s.connections.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
