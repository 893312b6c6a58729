package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/repositories"
	"chat-relay/runtime"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*httptest.Server, repositories.IUserRepository) {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	users := repositories.NewUserRepository(db)

	registry := runtime.NewRegistry(slog.Default(), "main", 64)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = registry.Run(ctx) }()

	handler := NewHandler(slog.Default(), registry, users, HandlerConfig{
		DefaultRoom:       "main",
		OutboundBuffer:    64,
		HeartbeatInterval: 500 * time.Millisecond,
		HeartbeatTimeout:  10 * time.Second,
		MaxFrameSize:      4096,
		WriteTimeout:      5 * time.Second,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, users
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestHandler_EndToEnd_RoomScopedBroadcast(t *testing.T) {
	req := require.New(t)
	server, _ := startServer(t)

	// Given A and B connected and landed in "main"
	connA := dial(t, server, "")
	req.Equal("joined", readFrame(t, connA)["type"])
	connB := dial(t, server, "")
	req.Equal("joined", readFrame(t, connB)["type"])

	// When A sends a message
	writeFrame(t, connA, `{"type":"message","text":"hi"}`)

	// Then B receives exactly it, without a sender name
	frame := readFrame(t, connB)
	req.Equal("message", frame["type"])
	req.Nil(frame["from"])
	req.Equal("main", frame["room"])
	req.Equal("hi", frame["text"])

	// When B moves to "lobby"
	writeFrame(t, connB, `{"type":"join","room":"lobby"}`)
	joined := readFrame(t, connB)
	req.Equal("joined", joined["type"])
	req.Equal("lobby", joined["room"])

	// And A broadcasts to "main" again
	writeFrame(t, connA, `{"type":"message","text":"anyone"}`)

	// Then B hears nothing before the deadline
	req.NoError(connB.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	_, _, err := connB.ReadMessage()
	req.Error(err)
}

func TestHandler_ResolvedIdentity_NamesTheSender(t *testing.T) {
	req := require.New(t)
	server, users := startServer(t)

	alice, err := users.CreateUser(repositories.CreateUserFields{
		Phone:       "+33612345678",
		DisplayName: "Alice",
	})
	req.NoError(err)

	// Given Alice connected with her identity and a plain listener
	connA := dial(t, server, "?user="+alice.ID)
	req.Equal("joined", readFrame(t, connA)["type"])
	connB := dial(t, server, "")
	req.Equal("joined", readFrame(t, connB)["type"])

	// When Alice sends a message
	writeFrame(t, connA, `{"type":"message","text":"hello"}`)

	// Then the listener sees her display name
	frame := readFrame(t, connB)
	req.Equal("message", frame["type"])
	req.Equal("Alice", frame["from"])
}

func TestHandler_UnknownUser_RefusesTheConnection(t *testing.T) {
	req := require.New(t)
	server, _ := startServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?user=ghost"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.Error(err)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestHandler_UnrecognizedCommand_KeepsTheConnectionAlive(t *testing.T) {
	req := require.New(t)
	server, _ := startServer(t)

	conn := dial(t, server, "")
	req.Equal("joined", readFrame(t, conn)["type"])

	// When sending a parseable frame with an unknown type
	writeFrame(t, conn, `{"type":"dance"}`)
	frame := readFrame(t, conn)
	req.Equal("error", frame["type"])

	// Then the connection still works
	writeFrame(t, conn, `{"type":"join","room":"lobby"}`)
	joined := readFrame(t, conn)
	req.Equal("joined", joined["type"])
	req.Equal("lobby", joined["room"])
}
