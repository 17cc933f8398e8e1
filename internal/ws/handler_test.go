package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/hub"
	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	pub "github.com/DoyleJ11/rodizio-backend/pkg/types"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wsURL(srv *httptest.Server, code string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?code=" + code
}

func dial(t *testing.T, code string) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	h := hub.NewHub(ctx, lobby.Config{Limits: engine.DefaultLimits()})
	_, err := h.Create(ctx, code)
	require.NoError(t, err)
	srv := httptest.NewServer(Handler(h, zap.NewNop()))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.Dial(ctx, wsURL(srv, code), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) pub.ServerMessage {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg pub.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg pub.ClientMessage) {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageText, payload))
}

func TestHandler_RegisterAndSeed(t *testing.T) {
	conn, ctx := dial(t, "WSTEST")

	first := read(t, ctx, conn)
	require.Equal(t, pub.MsgStateSnapshot, first.Type)
	assert.Empty(t, first.State.Registered)

	send(t, ctx, conn, pub.ClientMessage{Type: "Register", Name: "Ana", Category: "1", Enqueue: true})
	registered := read(t, ctx, conn)
	require.Equal(t, pub.MsgStateSnapshot, registered.Type)
	require.Len(t, registered.State.Queue, 1)
	assert.Equal(t, "Ana", registered.State.Queue[0].Name)

	send(t, ctx, conn, pub.ClientMessage{Type: "SeedFromQueue"})
	seeded := read(t, ctx, conn)
	require.Len(t, seeded.State.TeamA, 1)
	assert.Empty(t, seeded.State.Queue)

	send(t, ctx, conn, pub.ClientMessage{Type: "ClearTeams"})
	_ = read(t, ctx, conn)

	send(t, ctx, conn, pub.ClientMessage{Type: "SeedFromQueue"})
	notice := read(t, ctx, conn)
	assert.Equal(t, pub.MsgNotice, notice.Type)
}

func TestHandler_RejectsBadInput(t *testing.T) {
	conn, ctx := dial(t, "WSTEST")
	_ = read(t, ctx, conn)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{")))
	assert.Equal(t, "bad json", read(t, ctx, conn).Error)

	send(t, ctx, conn, pub.ClientMessage{Type: "TeamLost", Team: "a"})
	msg := read(t, ctx, conn)
	assert.Equal(t, pub.MsgError, msg.Type)
	assert.Contains(t, msg.Error, "precondition")
}

func TestHandler_UnknownCode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := hub.NewHub(ctx, lobby.Config{Limits: engine.DefaultLimits()})
	srv := httptest.NewServer(Handler(h, zap.NewNop()))
	defer srv.Close()

	_, resp, err := websocket.Dial(ctx, wsURL(srv, "NEVER1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	running, err := h.Get(ctx, "NEVER1")
	require.NoError(t, err)
	assert.Nil(t, running)
}
