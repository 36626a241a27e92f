package webui

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mendtool/mend/pkg/events"
)

func startTestServer(t *testing.T) (*Server, *events.EventBus) {
	t.Helper()
	bus := events.NewEventBus()
	srv := NewServer(bus, "127.0.0.1:0", nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown() })
	return srv, bus
}

func TestStartFailsWhenAddrAlreadyInUse(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve test port: %v", err)
	}
	defer listener.Close()

	srv := NewServer(events.NewEventBus(), listener.Addr().String(), nil)
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail on an occupied address")
	}
	if srv.IsRunning() {
		t.Fatal("server must not report running after a failed start")
	}
}

func TestHealthEndpointReportsStatus(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health payload: %v", err)
	}
	if payload["status"] != "ok" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWebSocketStreamsBusEvents(t *testing.T) {
	srv, bus := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var greeting struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if greeting.Type != "connection_status" {
		t.Fatalf("greeting type = %q", greeting.Type)
	}

	bus.Publish(events.EventTypeIterationStarted, events.IterationStartedEvent(2, 5, 3))

	var event events.ProgressEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != events.EventTypeIterationStarted {
		t.Errorf("event type = %q", event.Type)
	}
	data, ok := event.Data.(map[string]any)
	if !ok {
		t.Fatalf("event data = %T", event.Data)
	}
	if data["iteration"] != float64(2) || data["issue_count"] != float64(3) {
		t.Errorf("event data = %v", data)
	}
}

func TestWebSocketAnswersPing(t *testing.T) {
	srv, _ := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var greeting map[string]any
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	var reply struct {
		Type string `json:"type"`
	}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if reply.Type != "pong" {
		t.Errorf("reply type = %q, want pong", reply.Type)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	bus := events.NewEventBus()
	srv := NewServer(bus, "127.0.0.1:0", nil)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("second Shutdown should be a no-op, got: %v", err)
	}
	if srv.IsRunning() {
		t.Error("server still reports running after shutdown")
	}
}
