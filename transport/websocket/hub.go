package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound messages queued for the hub loop before publishers start dropping.
	broadcastBuffer = 1024

	// Time allowed for a disconnect to be processed by the rooms.
	disconnectTimeout = 5 * time.Second
)

// Hub-only event names
const (
	EventWelcome   = "welcome"
	EventRoomsList = "rooms_list"
	EventError     = "error"
)

// Inbound message types
const (
	MsgPlayerAction = "player_action"
	MsgToggleReady  = "toggle_ready"
	MsgStartGame    = "start_game"
	MsgLeaveRoom    = "leave_room"
	MsgGetRooms     = "get_rooms"
	MsgGetHand      = "get_hand"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The browser client may be served from anywhere, including an ngrok tunnel.
		return true
	},
}

// Service is the subset of the game service the hub drives
type Service interface {
	SubmitAction(ctx context.Context, roomID, playerID string, action engine.Action) (*room.ActionOutcome, error)
	ToggleReady(ctx context.Context, roomID, playerID string) (*room.RoomView, error)
	StartGame(ctx context.Context, roomID, playerID string) (*room.RoomView, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	Disconnect(ctx context.Context, playerID string) error
	Authorize(ctx context.Context, roomID, playerID, token string) error
	GetRoom(ctx context.Context, roomID string) (*room.RoomView, error)
	GetHand(ctx context.Context, roomID, playerID string) ([]engine.Card, error)
	ListRooms(ctx context.Context) ([]room.Summary, error)
}

// Message is the outbound envelope
type Message struct {
	Event  string      `json:"event"`
	RoomID string      `json:"room_id,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Inbound is a command sent by a client. Room and player come from the
// connection, not the message.
type Inbound struct {
	Type   string         `json:"type"`
	Action *engine.Action `json:"action,omitempty"`
}

// Welcome is the first message on every connection
type Welcome struct {
	PlayerID string `json:"player_id,omitempty"`
	RoomID   string `json:"room_id,omitempty"`
}

// Client represents a WebSocket client
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	playerID string

	// roomID is owned by readPump once the client is registered.
	roomID string

	// initial messages the hub queues on registration
	initial [][]byte
}

// outbound is one message routed by the hub loop
type outbound struct {
	roomID   string
	playerID string
	lobby    bool
	client   *Client
	data     []byte

	// closing moves the room's clients back to the lobby after delivery
	closing bool
}

type relocation struct {
	client *Client
	roomID string
}

// Hub maintains the set of active clients and routes room output to them.
// It implements room.Publisher.
type Hub struct {
	log *zap.Logger
	svc Service

	// Clients subscribed to each room
	rooms map[string]map[*Client]bool

	// Clients browsing the room list
	lobby map[*Client]bool

	// Room each client is currently subscribed to ("" for the lobby)
	where map[*Client]string

	// Open connections per player id
	players map[string]int

	broadcast  chan *outbound
	register   chan *Client
	unregister chan *Client
	relocate   chan relocation
	done       chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		log:        logger.Named("websocket"),
		rooms:      make(map[string]map[*Client]bool),
		lobby:      make(map[*Client]bool),
		where:      make(map[*Client]string),
		players:    make(map[string]int),
		broadcast:  make(chan *outbound, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		relocate:   make(chan relocation),
		done:       make(chan struct{}),
	}
}

// SetService attaches the game service. It must be called before Run and
// before any connection is served.
func (h *Hub) SetService(svc Service) {
	h.svc = svc
}

// Run starts the hub's event loop and blocks until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case r := <-h.relocate:
			h.moveClient(r.client, r.roomID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for client := range h.where {
		close(client.send)
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.lobby = make(map[*Client]bool)
	h.where = make(map[*Client]string)
}

// ServeWS handles WebSocket requests from clients. A client may pass
// ?room=ID&player=ID&token=T to follow a room as one of its members,
// ?room=ID to watch it, or nothing to follow the room list.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	playerID := r.URL.Query().Get("player")
	token := r.URL.Query().Get("token")

	var initial [][]byte
	if roomID != "" {
		view, err := h.svc.GetRoom(r.Context(), roomID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		roomID = view.ID
		if playerID != "" {
			if err := h.svc.Authorize(r.Context(), roomID, playerID, token); err != nil {
				h.log.Warn("rejected websocket member",
					zap.String("room_id", roomID),
					zap.String("player_id", playerID),
					zap.String("remote", r.RemoteAddr),
					zap.Error(err))
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
		}
		initial = append(initial,
			h.encode(EventWelcome, roomID, Welcome{PlayerID: playerID, RoomID: roomID}),
			h.encode(string(room.EventRoomUpdated), roomID, &room.RoomUpdated{Room: *view}))
		if playerID != "" && view.IsStarted {
			if hand, err := h.svc.GetHand(r.Context(), roomID, playerID); err == nil {
				initial = append(initial, h.encode(string(room.EventHandUpdated), roomID,
					&room.HandUpdated{PlayerID: playerID, Hand: hand}))
			}
		}
	} else {
		playerID = ""
		rooms, _ := h.svc.ListRooms(r.Context())
		initial = append(initial,
			h.encode(EventWelcome, "", Welcome{}),
			h.encode(EventRoomsList, "", rooms))
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		playerID: playerID,
		roomID:   roomID,
		initial:  initial,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// PublishRoom sends an event to every client following a room
func (h *Hub) PublishRoom(roomID string, event engine.Event) {
	h.enqueue(&outbound{
		roomID:  roomID,
		data:    h.encode(string(event.EventType()), roomID, event),
		closing: event.EventType() == room.EventRoomClosed,
	})
}

// PublishPlayer sends an event to the connections of a single room member
func (h *Hub) PublishPlayer(roomID, playerID string, event engine.Event) {
	h.enqueue(&outbound{roomID: roomID, playerID: playerID, data: h.encode(string(event.EventType()), roomID, event)})
}

// PublishLobby sends the joinable room list to every lobby client
func (h *Hub) PublishLobby(rooms []room.Summary) {
	h.enqueue(&outbound{lobby: true, data: h.encode(EventRoomsList, "", rooms)})
}

// enqueue never blocks. Rooms call it from their own loop.
func (h *Hub) enqueue(m *outbound) {
	if m.data == nil {
		return
	}
	select {
	case h.broadcast <- m:
	default:
		h.log.Error("broadcast queue full, dropping message", zap.String("room_id", m.roomID))
	}
}

// reply queues a private message for one client, waiting for room in the queue
func (h *Hub) reply(c *Client, event string, data interface{}) {
	msg := h.encode(event, c.roomID, data)
	if msg == nil {
		return
	}
	select {
	case h.broadcast <- &outbound{client: c, data: msg}:
	case <-h.done:
	}
}

func (h *Hub) encode(event, roomID string, data interface{}) []byte {
	b, err := json.Marshal(&Message{Event: event, RoomID: roomID, Data: data})
	if err != nil {
		h.log.Error("failed to marshal websocket message", zap.String("event", event), zap.Error(err))
		return nil
	}
	return b
}

// registerClient adds a client to its room or to the lobby
func (h *Hub) registerClient(client *Client) {
	h.subscribe(client, client.roomID)
	if client.playerID != "" {
		h.players[client.playerID]++
	}
	for _, msg := range client.initial {
		h.deliver(client, msg)
	}
	client.initial = nil

	h.log.Debug("client registered",
		zap.String("room_id", client.roomID),
		zap.String("player_id", client.playerID),
		zap.Int("clients", len(h.where)))
}

// unregisterClient removes a client. When a player's last connection goes
// away they leave their room.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.where[client]; !ok {
		return
	}
	h.unsubscribe(client)
	delete(h.where, client)
	close(client.send)

	if id := client.playerID; id != "" {
		h.players[id]--
		if h.players[id] <= 0 {
			delete(h.players, id)
			go h.disconnect(id)
		}
	}

	h.log.Debug("client unregistered",
		zap.String("player_id", client.playerID),
		zap.Int("clients", len(h.where)))
}

func (h *Hub) disconnect(playerID string) {
	if h.svc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := h.svc.Disconnect(ctx, playerID); err != nil {
		h.log.Warn("disconnect failed", zap.String("player_id", playerID), zap.Error(err))
	}
}

func (h *Hub) moveClient(client *Client, roomID string) {
	if _, ok := h.where[client]; !ok {
		return
	}
	h.unsubscribe(client)
	h.subscribe(client, roomID)
}

func (h *Hub) subscribe(client *Client, roomID string) {
	h.where[client] = roomID
	if roomID == "" {
		h.lobby[client] = true
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}

func (h *Hub) unsubscribe(client *Client) {
	roomID := h.where[client]
	if roomID == "" {
		delete(h.lobby, client)
		return
	}
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		// Clean up empty rooms
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// broadcastMessage routes a message to its recipients
func (h *Hub) broadcastMessage(m *outbound) {
	switch {
	case m.client != nil:
		if _, ok := h.where[m.client]; ok {
			h.deliver(m.client, m.data)
		}
	case m.lobby:
		for client := range h.lobby {
			h.deliver(client, m.data)
		}
	default:
		for client := range h.rooms[m.roomID] {
			if m.playerID == "" || client.playerID == m.playerID {
				h.deliver(client, m.data)
			}
		}
		if m.closing {
			for client := range h.rooms[m.roomID] {
				h.moveClient(client, "")
			}
		}
	}
}

func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Client's send channel is full, close it
		h.log.Warn("client too slow, dropping connection", zap.String("player_id", client.playerID))
		h.unregisterClient(client)
	}
}

// handle runs one inbound command on behalf of the client
func (c *Client) handle(ctx context.Context, in *Inbound) {
	h := c.hub
	var err error

	switch in.Type {
	case MsgGetRooms:
		var rooms []room.Summary
		if rooms, err = h.svc.ListRooms(ctx); err == nil {
			h.reply(c, EventRoomsList, rooms)
		}
	case MsgGetHand:
		if err = c.requireMember(); err == nil {
			var hand []engine.Card
			if hand, err = h.svc.GetHand(ctx, c.roomID, c.playerID); err == nil {
				h.reply(c, string(room.EventHandUpdated), &room.HandUpdated{PlayerID: c.playerID, Hand: hand})
			}
		}
	case MsgPlayerAction:
		if err = c.requireMember(); err == nil {
			if in.Action == nil {
				err = engine.ErrInvalidAction.WithField("action", "action is required")
			} else {
				_, err = h.svc.SubmitAction(ctx, c.roomID, c.playerID, *in.Action)
			}
		}
	case MsgToggleReady:
		if err = c.requireMember(); err == nil {
			_, err = h.svc.ToggleReady(ctx, c.roomID, c.playerID)
		}
	case MsgStartGame:
		if err = c.requireMember(); err == nil {
			_, err = h.svc.StartGame(ctx, c.roomID, c.playerID)
		}
	case MsgLeaveRoom:
		if err = c.requireMember(); err == nil {
			if err = h.svc.LeaveRoom(ctx, c.roomID, c.playerID); err == nil {
				c.roomID = ""
				select {
				case h.relocate <- relocation{client: c}:
				case <-h.done:
					return
				}
				if rooms, lerr := h.svc.ListRooms(ctx); lerr == nil {
					h.reply(c, EventRoomsList, rooms)
				}
			}
		}
	default:
		err = engine.ErrInvalidRequest.WithField("type", "unknown message type")
	}

	if err != nil {
		h.reply(c, EventError, asRejection(err))
	}
}

func (c *Client) requireMember() error {
	if c.roomID == "" || c.playerID == "" {
		return engine.ErrUnknownPlayer.WithField("player", "connect with ?room=&player=&token= to act")
	}
	return nil
}

func asRejection(err error) *engine.Rejection {
	var rej *engine.Rejection
	if errors.As(err, &rej) {
		return rej
	}
	return engine.ErrInternal
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			break
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.hub.reply(c, EventError, engine.ErrInvalidRequest.WithField("body", "message is not valid JSON"))
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		c.handle(ctx, &in)
		cancel()
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
