package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/room-relay/pkg/config"
	"github.com/mahaj/room-relay/pkg/logging"
	"github.com/mahaj/room-relay/pkg/model"
	"github.com/mahaj/room-relay/pkg/relay"
)

type frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack"`
	Data  json.RawMessage `json:"data"`
}

type testGateway struct {
	srv *httptest.Server
	hub *Hub
	d   *relay.Dispatcher
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	cfg := config.Default()
	hub, d, handler := newGateway(cfg, logging.Discard())
	go hub.Run()
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		hub.Shutdown(ctx)
		srv.Close()
	})
	return &testGateway{srv: srv, hub: hub, d: d}
}

func (g *testGateway) wsURL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http") + "/ws"
}

// dial connects a client and returns it with its connection id, learned
// from the user_list every new connection receives.
func (g *testGateway) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(g.wsURL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var list []model.Participant
	decode(t, readUntil(t, conn, model.EventUserList).Data, &list)
	require.NotEmpty(t, list)
	return conn, list[len(list)-1].ID
}

func send(t *testing.T, conn *websocket.Conn, event string, data any, ack int64) {
	t.Helper()
	env := map[string]any{"event": event, "data": data}
	if ack > 0 {
		env["ack"] = ack
	}
	require.NoError(t, conn.WriteJSON(env))
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		_, b, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		require.NoError(t, json.Unmarshal(b, &f))
		if f.Event == event {
			return f
		}
	}
}

func decode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayAnnounceAndMessage(t *testing.T) {
	g := newTestGateway(t)
	a, aID := g.dial(t)
	b, bID := g.dial(t)
	assert.NotEqual(t, aID, bID)

	send(t, a, model.EventUserJoin, "alice", 1)
	ackFrame := readUntil(t, a, model.EventAck)
	require.NotNil(t, ackFrame.Ack)
	assert.Equal(t, int64(1), *ackFrame.Ack)
	var ack model.Ack
	decode(t, ackFrame.Data, &ack)
	assert.True(t, ack.OK)

	var joined model.UserNotice
	decode(t, readUntil(t, b, model.EventUserJoined).Data, &joined)
	assert.Equal(t, "alice", joined.Username)
	assert.Equal(t, aID, joined.ID)

	send(t, a, model.EventSendMessage, map[string]string{"message": "hello"}, 2)
	decode(t, readUntil(t, a, model.EventAck).Data, &ack)
	assert.Equal(t, "ok", ack.Status)
	assert.NotEmpty(t, ack.ID)

	var got model.Message
	decode(t, readUntil(t, b, model.EventReceiveMessage).Data, &got)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "alice", got.Sender)
	assert.Equal(t, ack.ID, got.ID)
	assert.Equal(t, model.DefaultRoom, got.Room)
}

func TestGatewayPrivateMessage(t *testing.T) {
	g := newTestGateway(t)
	a, _ := g.dial(t)
	b, bID := g.dial(t)

	send(t, a, model.EventPrivateMessage, map[string]string{"toSocketId": bID, "message": "psst"}, 0)

	var got model.Message
	decode(t, readUntil(t, b, model.EventPrivateMessage).Data, &got)
	assert.True(t, got.IsPrivate)
	assert.Equal(t, bID, got.ToID)

	var echo model.Message
	decode(t, readUntil(t, a, model.EventPrivateMessage).Data, &echo)
	assert.Equal(t, got.ID, echo.ID)
}

func TestGatewayDisconnectNotifiesOthers(t *testing.T) {
	g := newTestGateway(t)
	a, aID := g.dial(t)
	b, _ := g.dial(t)

	require.NoError(t, a.Close())

	var left model.UserNotice
	decode(t, readUntil(t, b, model.EventUserLeft).Data, &left)
	assert.Equal(t, aID, left.ID)
	waitFor(t, func() bool { return len(g.d.Participants()) == 1 })
}

func TestGatewayAckOnlyWhenRequested(t *testing.T) {
	g := newTestGateway(t)
	a, _ := g.dial(t)

	send(t, a, model.EventJoinRoom, "dev", 0)
	send(t, a, "no_such_event", nil, 7)
	send(t, a, model.EventJoinRoom, map[string]string{"room": "ops"}, 8)

	f := readUntil(t, a, model.EventAck)
	require.NotNil(t, f.Ack)
	assert.Equal(t, int64(8), *f.Ack, "unknown events are never acknowledged")
	assert.Equal(t, "ops", g.d.Participants()[0].CurrentRoom)
}

func TestGatewayIgnoresMalformedFrames(t *testing.T) {
	g := newTestGateway(t)
	a, _ := g.dial(t)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"data":1}`)))
	send(t, a, model.EventUserJoin, map[string]string{"username": "zed"}, 3)

	f := readUntil(t, a, model.EventAck)
	assert.Equal(t, int64(3), *f.Ack)
	assert.Equal(t, "zed", g.d.Participants()[0].Username)
}

func TestGatewayRejectsForeignOrigin(t *testing.T) {
	g := newTestGateway(t)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(g.wsURL(), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(g.wsURL(), header)
	require.NoError(t, err)
	conn.Close()
}

func TestGatewayHistoryEndpoint(t *testing.T) {
	g := newTestGateway(t)
	a, _ := g.dial(t)

	for i := 1; i <= 3; i++ {
		send(t, a, model.EventSendMessage, map[string]string{"message": "m" + string(rune('0'+i))}, int64(i))
		readUntil(t, a, model.EventAck)
	}

	resp, err := http.Get(g.srv.URL + "/api/messages?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page historyPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	assert.Equal(t, model.DefaultRoom, page.Room)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "m2", page.Items[0].Text)
	assert.Equal(t, "m3", page.Items[1].Text)

	resp2, err := http.Get(g.srv.URL + "/api/messages?room=empty&page=0&limit=abc")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var empty historyPage
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&empty))
	assert.Equal(t, 1, empty.Page)
	assert.Equal(t, defaultPageLimit, empty.Limit)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestGatewayUsersAndHealth(t *testing.T) {
	g := newTestGateway(t)
	a, aID := g.dial(t)
	send(t, a, model.EventJoinRoom, "dev", 1)
	readUntil(t, a, model.EventAck)
	g.dial(t)

	resp, err := http.Get(g.srv.URL + "/api/users?room=dev")
	require.NoError(t, err)
	defer resp.Body.Close()
	var users []model.Participant
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	require.Len(t, users, 1)
	assert.Equal(t, aID, users[0].ID)

	resp, err = http.Get(g.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, h.Participants)

	resp, err = http.Get(g.srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "running")
}

func TestGatewayCORS(t *testing.T) {
	g := newTestGateway(t)

	req, _ := http.NewRequest(http.MethodOptions, g.srv.URL+"/api/users", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, g.srv.URL+"/api/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestGatewayShutdownDisconnectsClients(t *testing.T) {
	g := newTestGateway(t)
	a, _ := g.dial(t)
	g.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.hub.Shutdown(ctx))

	assert.Empty(t, g.d.Participants())
	assert.Zero(t, g.hub.Len())

	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := a.ReadMessage(); err != nil {
			break
		}
	}

	_, resp, err := websocket.DefaultDialer.Dial(g.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
