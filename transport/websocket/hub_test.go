package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/skillwar/game/catalog"
	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
	"github.com/wricardo/skillwar/game/service"
)

func newTestClient(hub *Hub, roomID, playerID string) *Client {
	return &Client{
		hub:      hub,
		roomID:   roomID,
		playerID: playerID,
		send:     make(chan []byte, 16),
	}
}

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	require.NotNil(t, hub)
	assert.NotNil(t, hub.rooms)
	assert.NotNil(t, hub.lobby)
	assert.NotNil(t, hub.broadcast)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	client := newTestClient(hub, "ROOM01", "p1")
	client.initial = [][]byte{[]byte(`{"event":"welcome"}`)}

	hub.registerClient(client)

	assert.True(t, hub.rooms["ROOM01"][client])
	assert.Equal(t, 1, hub.players["p1"])
	assert.Equal(t, []string{`{"event":"welcome"}`}, drain(client))
	assert.Nil(t, client.initial)
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	client := newTestClient(hub, "ROOM01", "p1")

	hub.registerClient(client)
	hub.unregisterClient(client)

	_, exists := hub.rooms["ROOM01"]
	assert.False(t, exists, "room should have been cleaned up after last client unregistered")
	assert.NotContains(t, hub.players, "p1")

	_, ok := <-client.send
	assert.False(t, ok, "send channel should be closed")

	// Second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubLobbyClients(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	client := newTestClient(hub, "", "")

	hub.registerClient(client)
	assert.True(t, hub.lobby[client])
	assert.Empty(t, hub.players)

	hub.unregisterClient(client)
	assert.Empty(t, hub.lobby)
}

func TestHubRouting(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	alice := newTestClient(hub, "ROOM01", "p1")
	bob := newTestClient(hub, "ROOM01", "p2")
	other := newTestClient(hub, "ROOM02", "p3")
	browser := newTestClient(hub, "", "")
	for _, c := range []*Client{alice, bob, other, browser} {
		hub.registerClient(c)
	}

	hub.broadcastMessage(&outbound{roomID: "ROOM01", data: []byte("room")})
	hub.broadcastMessage(&outbound{roomID: "ROOM01", playerID: "p2", data: []byte("private")})
	hub.broadcastMessage(&outbound{lobby: true, data: []byte("lobby")})
	hub.broadcastMessage(&outbound{client: other, data: []byte("direct")})

	assert.Equal(t, []string{"room"}, drain(alice))
	assert.Equal(t, []string{"room", "private"}, drain(bob))
	assert.Equal(t, []string{"direct"}, drain(other))
	assert.Equal(t, []string{"lobby"}, drain(browser))
}

func TestHubRoomClosedMovesClientsToLobby(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	alice := newTestClient(hub, "ROOM01", "p1")
	hub.registerClient(alice)

	hub.broadcastMessage(&outbound{roomID: "ROOM01", data: []byte("closed"), closing: true})

	assert.Equal(t, []string{"closed"}, drain(alice))
	assert.NotContains(t, hub.rooms, "ROOM01")
	assert.True(t, hub.lobby[alice])

	hub.broadcastMessage(&outbound{lobby: true, data: []byte("lobby")})
	assert.Equal(t, []string{"lobby"}, drain(alice))
}

func TestHubSlowClientIsDropped(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	client := &Client{hub: hub, roomID: "ROOM01", send: make(chan []byte, 1)}
	hub.registerClient(client)

	hub.broadcastMessage(&outbound{roomID: "ROOM01", data: []byte("1")})
	hub.broadcastMessage(&outbound{roomID: "ROOM01", data: []byte("2")})

	assert.NotContains(t, hub.where, client)
	assert.Equal(t, []string{"1"}, drain(client))
}

func TestPublishNeverBlocks(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.PublishLobby(nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publishing blocked with no hub loop running")
	}
}

// integration fixture: real registry, service and hub behind an httptest server

type wireMessage struct {
	Event  string          `json:"event"`
	RoomID string          `json:"room_id"`
	Data   json.RawMessage `json:"data"`
}

type hubFixture struct {
	svc service.GameService
	srv *httptest.Server
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	// disconnects run on their own goroutines and may outlive the test
	logger := zap.NewNop()

	hub := NewHub(logger)
	cards := catalog.MustDefault()
	registry := room.NewRegistry(ctx, room.Options{
		Catalog:     cards,
		Publisher:   hub,
		Logger:      logger,
		TurnTimeout: time.Minute,
	})
	svc := service.NewGameService(registry, cards, logger)
	hub.SetService(svc)

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		registry.Close(context.Background())
		cancel()
		<-hubDone
	})
	return &hubFixture{svc: svc, srv: srv}
}

func (f *hubFixture) url(roomID, playerID, token string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/?room=" + roomID + "&player=" + playerID + "&token=" + token
}

// dial connects as the member who received joined
func (f *hubFixture) dial(t *testing.T, joined *room.Joined) *websocket.Conn {
	t.Helper()
	return f.dialURL(t, f.url(joined.Room.ID, joined.PlayerID, joined.Token))
}

func (f *hubFixture) dialURL(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil skips messages until one with the given event arrives
func readUntil(t *testing.T, conn *websocket.Conn, event string) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event == event {
			return msg
		}
	}
}

func TestLobbyConnectionFollowsRoomList(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dialURL(t, f.url("", "", ""))

	readUntil(t, conn, EventWelcome)
	readUntil(t, conn, EventRoomsList)

	joined, err := f.svc.CreateRoom(context.Background(), service.CreateRoomRequest{RoomName: "arena", PlayerName: "alice"})
	require.NoError(t, err)

	msg := readUntil(t, conn, EventRoomsList)
	var rooms []room.Summary
	require.NoError(t, json.Unmarshal(msg.Data, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, joined.Room.ID, rooms[0].ID)

	send(t, conn, Inbound{Type: MsgGetRooms})
	msg = readUntil(t, conn, EventRoomsList)
	require.NoError(t, json.Unmarshal(msg.Data, &rooms))
	assert.Len(t, rooms, 1)
}

func TestServeWSRejectsUnknownRoom(t *testing.T) {
	f := newHubFixture(t)

	_, resp, err := websocket.DefaultDialer.Dial(f.url("NOPE01", "x", "y"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeWSRejectsStranger(t *testing.T) {
	f := newHubFixture(t)
	joined, err := f.svc.CreateRoom(context.Background(), service.CreateRoomRequest{PlayerName: "alice"})
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(f.url(joined.Room.ID, "mallory", joined.Token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServeWSRejectsForgedMember(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	alice, err := f.svc.CreateRoom(ctx, service.CreateRoomRequest{PlayerName: "alice"})
	require.NoError(t, err)
	bob, err := f.svc.JoinRoom(ctx, alice.Room.ID, "bob")
	require.NoError(t, err)

	// anyone can read alice's id from the public room view
	view, err := f.svc.GetRoom(ctx, alice.Room.ID)
	require.NoError(t, err)
	victim := view.Members[0].ID
	require.Equal(t, alice.PlayerID, victim)

	for name, token := range map[string]string{"no token": "", "guessed": "guess", "bob's token": bob.Token} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(f.url(alice.Room.ID, victim, token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}

	// a watcher without a player id can follow the room but not act
	watcher := f.dialURL(t, f.url(alice.Room.ID, "", ""))
	readUntil(t, watcher, string(room.EventRoomUpdated))
	send(t, watcher, Inbound{Type: MsgToggleReady})
	msg := readUntil(t, watcher, EventError)
	var rej engine.Rejection
	require.NoError(t, json.Unmarshal(msg.Data, &rej))
	assert.Equal(t, engine.ReasonUnknownPlayer, rej.Reason)
	watcher.Close()

	// alice was neither readied nor evicted by the stranger
	time.Sleep(50 * time.Millisecond)
	view, err = f.svc.GetRoom(ctx, alice.Room.ID)
	require.NoError(t, err)
	require.Len(t, view.Members, 2)
	assert.Equal(t, alice.PlayerID, view.Members[0].ID)
	assert.False(t, view.Members[0].Ready)
}

func TestGameOverWebSocket(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	host, err := f.svc.CreateRoom(ctx, service.CreateRoomRequest{RoomName: "arena", PlayerName: "alice"})
	require.NoError(t, err)
	guest, err := f.svc.JoinRoom(ctx, host.Room.ID, "bob")
	require.NoError(t, err)

	conns := map[string]*websocket.Conn{
		host.PlayerID:  f.dial(t, host),
		guest.PlayerID: f.dial(t, guest),
	}
	for _, c := range conns {
		readUntil(t, c, EventWelcome)
		readUntil(t, c, string(room.EventRoomUpdated))
	}

	// lobby errors come back privately
	send(t, conns[guest.PlayerID], Inbound{Type: MsgStartGame})
	msg := readUntil(t, conns[guest.PlayerID], EventError)
	var rej engine.Rejection
	require.NoError(t, json.Unmarshal(msg.Data, &rej))
	assert.Equal(t, engine.ReasonNotHost, rej.Reason)

	send(t, conns[host.PlayerID], Inbound{Type: MsgToggleReady})
	send(t, conns[guest.PlayerID], Inbound{Type: MsgToggleReady})
	require.Eventually(t, func() bool {
		view, err := f.svc.GetRoom(ctx, host.Room.ID)
		return err == nil && view.Members[0].Ready && view.Members[1].Ready
	}, 3*time.Second, 10*time.Millisecond)

	send(t, conns[host.PlayerID], Inbound{Type: MsgStartGame})

	var started engine.SessionStarted
	for id, c := range conns {
		msg := readUntil(t, c, string(engine.EventSessionStarted))
		require.NoError(t, json.Unmarshal(msg.Data, &started))
		assert.Len(t, started.Players, 2)

		send(t, c, Inbound{Type: MsgGetHand})
		msg = readUntil(t, c, string(room.EventHandUpdated))
		var hand room.HandUpdated
		require.NoError(t, json.Unmarshal(msg.Data, &hand))
		assert.Equal(t, id, hand.PlayerID)
		assert.Len(t, hand.Hand, engine.InitialHandSize)
	}

	current := started.Players[started.CurrentPlayerIndex].ID
	waiting := host.PlayerID
	if current == host.PlayerID {
		waiting = guest.PlayerID
	}

	send(t, conns[waiting], Inbound{Type: MsgPlayerAction, Action: &engine.Action{Kind: engine.ActionDraw}})
	msg = readUntil(t, conns[waiting], EventError)
	require.NoError(t, json.Unmarshal(msg.Data, &rej))
	assert.Equal(t, engine.ReasonNotYourTurn, rej.Reason)

	send(t, conns[current], Inbound{Type: MsgPlayerAction, Action: &engine.Action{Kind: engine.ActionDraw}})
	for _, c := range conns {
		msg := readUntil(t, c, string(engine.EventActionResolved))
		var resolved engine.ActionResolved
		require.NoError(t, json.Unmarshal(msg.Data, &resolved))
		assert.Equal(t, current, resolved.PlayerID)

		msg = readUntil(t, c, string(engine.EventTurnChanged))
		var turn engine.TurnChanged
		require.NoError(t, json.Unmarshal(msg.Data, &turn))
		assert.Equal(t, waiting, turn.CurrentPlayerID)
	}
}

func TestMalformedMessages(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dialURL(t, f.url("", "", ""))
	readUntil(t, conn, EventWelcome)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readUntil(t, conn, EventError)
	var rej engine.Rejection
	require.NoError(t, json.Unmarshal(msg.Data, &rej))
	assert.Equal(t, engine.ReasonInvalidRequest, rej.Reason)

	send(t, conn, Inbound{Type: "dance"})
	msg = readUntil(t, conn, EventError)
	require.NoError(t, json.Unmarshal(msg.Data, &rej))
	assert.Equal(t, engine.ReasonInvalidRequest, rej.Reason)

	// lobby connections cannot act
	send(t, conn, Inbound{Type: MsgToggleReady})
	msg = readUntil(t, conn, EventError)
	require.NoError(t, json.Unmarshal(msg.Data, &rej))
	assert.Equal(t, engine.ReasonUnknownPlayer, rej.Reason)
}

func TestLeaveRoomReturnsToLobby(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	host, err := f.svc.CreateRoom(ctx, service.CreateRoomRequest{PlayerName: "alice"})
	require.NoError(t, err)
	guest, err := f.svc.JoinRoom(ctx, host.Room.ID, "bob")
	require.NoError(t, err)

	conn := f.dial(t, guest)
	readUntil(t, conn, string(room.EventRoomUpdated))

	send(t, conn, Inbound{Type: MsgLeaveRoom})
	msg := readUntil(t, conn, EventRoomsList)
	var rooms []room.Summary
	require.NoError(t, json.Unmarshal(msg.Data, &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].Players)
}

func TestDisconnectLeavesRoom(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	host, err := f.svc.CreateRoom(ctx, service.CreateRoomRequest{PlayerName: "alice"})
	require.NoError(t, err)
	guest, err := f.svc.JoinRoom(ctx, host.Room.ID, "bob")
	require.NoError(t, err)

	conn := f.dial(t, guest)
	readUntil(t, conn, EventWelcome)
	conn.Close()

	require.Eventually(t, func() bool {
		view, err := f.svc.GetRoom(ctx, host.Room.ID)
		return err == nil && len(view.Members) == 1
	}, 3*time.Second, 10*time.Millisecond)
}
