package transport

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/peer-link/internal/coordinator"
	"github.com/rudransh-shrivastava/peer-link/internal/protocol"
)

func startTestServer(t *testing.T) (*Server, *coordinator.Coordinator) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	coord := coordinator.New(coordinator.Options{Logger: logger})
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", Logger: logger}, coord)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = srv.Shutdown()
	})

	return srv, coord
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	url := "ws://" + srv.Addr() + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s failed: %v", url, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg protocol.Message) {
	t.Helper()

	data, err := protocol.NewCodec().EncodeToBytes(msg)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
}

func read(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	msg, err := protocol.NewCodec().DecodeFromBytes(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return msg
}

func TestEnableOverWebSocket(t *testing.T) {
	srv, _ := startTestServer(t)

	ws := dial(t, srv)
	send(t, ws, &protocol.EnableP2P{DeviceName: "alice"})

	msg := read(t, ws)
	update, ok := msg.(*protocol.DevicesUpdate)
	if !ok {
		t.Fatalf("expected *DevicesUpdate, got %T", msg)
	}
	if len(update.Devices) != 0 {
		t.Errorf("a lone device should see an empty device list, got %v", update.Devices)
	}
}

func TestSecondDeviceShowsUpInUpdates(t *testing.T) {
	srv, _ := startTestServer(t)

	alice := dial(t, srv)
	send(t, alice, &protocol.EnableP2P{DeviceName: "alice"})
	read(t, alice) // initial empty list

	bob := dial(t, srv)
	send(t, bob, &protocol.EnableP2P{DeviceName: "bob"})

	msg := read(t, alice)
	update, ok := msg.(*protocol.DevicesUpdate)
	if !ok {
		t.Fatalf("expected *DevicesUpdate, got %T", msg)
	}
	if len(update.Devices) != 1 || update.Devices[0].Name != "bob" {
		t.Errorf("expected alice to see bob, got %v", update.Devices)
	}

	msg = read(t, bob)
	update, ok = msg.(*protocol.DevicesUpdate)
	if !ok {
		t.Fatalf("expected *DevicesUpdate, got %T", msg)
	}
	if len(update.Devices) != 1 || update.Devices[0].Name != "alice" {
		t.Errorf("expected bob to see alice, got %v", update.Devices)
	}
}

func TestUndecodableMessageIsDropped(t *testing.T) {
	srv, _ := startTestServer(t)

	ws := dial(t, srv)
	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	// The connection survives and keeps serving.
	send(t, ws, &protocol.EnableP2P{DeviceName: "alice"})
	if _, ok := read(t, ws).(*protocol.DevicesUpdate); !ok {
		t.Error("expected the connection to keep working after a bad frame")
	}
}

func TestDisconnectRemovesDevice(t *testing.T) {
	srv, coord := startTestServer(t)

	alice := dial(t, srv)
	send(t, alice, &protocol.EnableP2P{DeviceName: "alice"})
	read(t, alice)

	bob := dial(t, srv)
	send(t, bob, &protocol.EnableP2P{DeviceName: "bob"})
	read(t, bob)
	read(t, alice) // alice learns about bob

	_ = bob.Close()

	deadline := time.Now().Add(2 * time.Second)
	for len(coord.Devices()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected one registered device after disconnect, got %d", len(coord.Devices()))
		}
		time.Sleep(10 * time.Millisecond)
	}
}
