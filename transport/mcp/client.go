package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Skill War",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Skill War - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Be the last player standing in a turn-based elemental card battle.

AVAILABLE TOOLS:
- list_rooms: List rooms that can be joined
- create_room: Create a room and become its host
- join_room: Join a room in its lobby
- toggle_ready: Flip your ready flag
- start_game: Start the game (host only)
- room_state: Get the public state of a room
- my_hand: See the cards in your hand
- draw_card: Draw one card (uses your turn)
- play_card: Play a card on a target (uses your turn)
- leave_room: Leave a room
- list_cards: Browse the card catalog
- game_instructions: Get the complete rules

Keep the player_id and token returned by create_room or join_room; every other
call needs both. Your player_id is public, your token is not: never share it.`),
	)

	// Register all tools
	c.registerTools()
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	roomID := stringProp("Room ID")
	playerID := stringProp("Your player ID")
	token := stringProp("Your secret player token, from create_room or join_room")

	// Lobby
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List rooms waiting for players",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a new room. You become its host.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player_name": stringProp("Your display name"),
				"room_name":   stringProp("Room name (optional)"),
				"max_players": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of players (optional, at least 2)",
				},
			},
			Required: []string{"player_name"},
		},
	}, c.handleCreateRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join a room that has not started yet",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":     roomID,
				"player_name": stringProp("Your display name"),
			},
			Required: []string{"room_id", "player_name"},
		},
	}, c.handleJoinRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_ready",
		Description: "Toggle your ready flag in the lobby",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   roomID,
				"player_id": playerID,
				"token":     token,
			},
			Required: []string{"room_id", "player_id", "token"},
		},
	}, c.handleToggleReady)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "start_game",
		Description: "Start the game. Only the host can start, and every player must be ready.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   roomID,
				"player_id": playerID,
				"token":     token,
			},
			Required: []string{"room_id", "player_id", "token"},
		},
	}, c.handleStartGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leave_room",
		Description: "Leave a room. Leaving a running game eliminates you.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   roomID,
				"player_id": playerID,
				"token":     token,
			},
			Required: []string{"room_id", "player_id", "token"},
		},
	}, c.handleLeaveRoom)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Get the public state of a room: players, HP, marks and whose turn it is",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": roomID,
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "my_hand",
		Description: "List the cards in your hand with their instance IDs",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   roomID,
				"player_id": playerID,
				"token":     token,
			},
			Required: []string{"room_id", "player_id", "token"},
		},
	}, c.handleMyHand)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "draw_card",
		Description: "Draw one random card. This ends your turn.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":   roomID,
				"player_id": playerID,
				"token":     token,
			},
			Required: []string{"room_id", "player_id", "token"},
		},
	}, c.handleDrawCard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "play_card",
		Description: "Play a card from your hand on a target player. This ends your turn.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id":          roomID,
				"player_id":        playerID,
				"token":            token,
				"card_instance_id": stringProp("Instance ID of the card, from my_hand"),
				"target_index": map[string]interface{}{
					"type":        "integer",
					"description": "Seat index of the target player, from room_state. Any living player, yourself included.",
				},
			},
			Required: []string{"room_id", "player_id", "token", "card_instance_id", "target_index"},
		},
	}, c.handlePlayCard)

	// Catalog
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_cards",
		Description: "Browse the card catalog, optionally filtered by element",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"element": map[string]interface{}{
					"type":        "string",
					"enum":        elementNames(),
					"description": "Only list cards of this element",
				},
			},
		},
	}, c.handleListCards)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete game rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

func elementNames() []string {
	names := make([]string, 0, len(engine.Elements))
	for _, e := range engine.Elements {
		names = append(names, string(e))
	}
	return names
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

// apiError is a failed API response
type apiError struct {
	Status int
	Reason engine.Reason
	Msg    string
}

func (e *apiError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s)", e.Msg, e.Reason)
	}
	return e.Msg
}

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string        `json:"error"`
			Reason engine.Reason `json:"reason"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return &apiError{Status: resp.StatusCode, Reason: errResp.Reason, Msg: errResp.Error}
		}
		return &apiError{Status: resp.StatusCode, Msg: fmt.Sprintf("API error: %d", resp.StatusCode)}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

func roomPath(roomID string, parts ...string) string {
	p := "/api/rooms/" + url.PathEscape(roomID)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int            `json:"count"`
		Rooms []room.Summary `json:"rooms"`
	}

	if err := c.apiCall(ctx, "GET", "/api/rooms", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(response.Rooms)), nil
}

func (c *Client) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	playerName, _ := args["player_name"].(string)
	roomName, _ := args["room_name"].(string)
	maxPlayers, _ := args["max_players"].(float64)

	body := map[string]interface{}{
		"player_name": playerName,
		"room_name":   roomName,
		"max_players": int(maxPlayers),
	}

	var joined room.Joined
	if err := c.apiCall(ctx, "POST", "/api/rooms", body, &joined); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created room %s (%s)\nYour player ID: %s\nYour token: %s\nYou are the host.\n\n%s",
		joined.Room.ID, joined.Room.Name, joined.PlayerID, joined.Token, formatRoom(&joined.Room))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	playerName, _ := args["player_name"].(string)

	var joined room.Joined
	err := c.apiCall(ctx, "POST", roomPath(roomID, "join"), map[string]string{"player_name": playerName}, &joined)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Joined room %s\nYour player ID: %s\nYour token: %s\n\n%s",
		joined.Room.ID, joined.PlayerID, joined.Token, formatRoom(&joined.Room))
	return mcp.NewToolResultText(result), nil
}

// member reads the room and the caller's credentials from the tool arguments
func member(args map[string]interface{}) (roomID, playerID, token string) {
	roomID, _ = args["room_id"].(string)
	playerID, _ = args["player_id"].(string)
	token, _ = args["token"].(string)
	return roomID, playerID, token
}

func (c *Client) memberCall(ctx context.Context, request mcp.CallToolRequest, op string) (*room.RoomView, error) {
	roomID, playerID, token := member(arguments(request))

	var view room.RoomView
	body := map[string]string{"player_id": playerID, "token": token}
	if err := c.apiCall(ctx, "POST", roomPath(roomID, op), body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *Client) handleToggleReady(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := c.memberCall(ctx, request, "ready")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(view)), nil
}

func (c *Client) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := c.memberCall(ctx, request, "start")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Game started!\n\n" + formatRoom(view)), nil
}

func (c *Client) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, playerID, token := member(arguments(request))

	body := map[string]string{"player_id": playerID, "token": token}
	if err := c.apiCall(ctx, "POST", roomPath(roomID, "leave"), body, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Left room %s", roomID)), nil
}

func (c *Client) handleRoomState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)

	var view room.RoomView
	if err := c.apiCall(ctx, "GET", roomPath(roomID), nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoom(&view)), nil
}

func (c *Client) handleMyHand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, playerID, token := member(arguments(request))

	path := roomPath(roomID, "players", url.PathEscape(playerID), "hand") + "?token=" + url.QueryEscape(token)
	var hand room.HandUpdated
	if err := c.apiCall(ctx, "GET", path, nil, &hand); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHand(hand.Hand)), nil
}

// actionResponse mirrors the API's action response
type actionResponse struct {
	Result     *engine.Result `json:"result"`
	DrawnCards []engine.Card  `json:"drawn_cards"`
	Room       room.RoomView  `json:"room"`
}

func (c *Client) submit(ctx context.Context, roomID string, body map[string]interface{}) (*mcp.CallToolResult, error) {
	var resp actionResponse
	if err := c.apiCall(ctx, "POST", roomPath(roomID, "actions"), body, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatAction(&resp)), nil
}

func (c *Client) handleDrawCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, playerID, token := member(arguments(request))

	return c.submit(ctx, roomID, map[string]interface{}{
		"player_id": playerID,
		"token":     token,
		"type":      engine.ActionDraw,
	})
}

func (c *Client) handlePlayCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, playerID, token := member(args)
	cardID, _ := args["card_instance_id"].(string)
	target, ok := args["target_index"].(float64)
	if !ok {
		return mcp.NewToolResultError("target_index is required"), nil
	}

	return c.submit(ctx, roomID, map[string]interface{}{
		"player_id":        playerID,
		"token":            token,
		"type":             engine.ActionPlay,
		"card_instance_id": cardID,
		"target_index":     int(target),
	})
}

func (c *Client) handleListCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	element, _ := args["element"].(string)

	var response struct {
		Count int                   `json:"count"`
		Cards []engine.CardTemplate `json:"cards"`
	}
	if err := c.apiCall(ctx, "GET", "/api/cards", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatCards(response.Cards, engine.Element(element))), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions()), nil
}

func instructions() string {
	var b strings.Builder
	b.WriteString(`Skill War - Complete Instructions

GAME OBJECTIVE:
Reduce every other player to 0 HP. The last player alive wins.

SETUP:
• 2 or more players join a room and mark themselves ready
• The host starts the game; seat order is shuffled
`)
	fmt.Fprintf(&b, "• Every player starts with %d HP and %d random cards\n", engine.StartingHP, engine.InitialHandSize)
	fmt.Fprintf(&b, "• Max HP can grow up to %d\n", engine.MaxHPCap)

	b.WriteString(`
YOUR TURN:
• Draw one card, or play one card from your hand on any living player (yourself included)
• A card deals its damage and leaves a mark of its element on the target
• If you do nothing before the turn timer runs out, a card is drawn for you
• A stunned player loses their next turn

STATUS MARKS:
`)
	fmt.Fprintf(&b, "• A player carries at most %d marks; a new element pushes out the oldest\n", engine.MaxStatusMarks)
	fmt.Fprintf(&b, "• Marks last %d rounds; playing the same element again refreshes it\n", engine.MarkDuration)
	b.WriteString("• Two different marks that react are consumed and trigger a reaction\n\nREACTIONS:\n")

	table := engine.DefaultReactions()
	var lines []string
	for i, x := range engine.Elements {
		for _, y := range engine.Elements[i+1:] {
			if r, ok := table.Lookup(x, y); ok {
				lines = append(lines, fmt.Sprintf("• %s + %s → %s: %s", x, y, r.Name, reactionEffect(r.Kind)))
			}
		}
	}
	sort.Strings(lines)
	b.WriteString(strings.Join(lines, "\n"))

	b.WriteString(`

SPECIAL CARDS:
• Healing Water: heals the target
• Gale: you draw an extra card
• Earth Wall: raises the target's max HP
• Charge: your next damaging card hits harder

COMMANDS:
• draw_card(room_id, player_id, token)
• play_card(room_id, player_id, token, card_instance_id, target_index)

Good luck in the arena!`)
	return b.String()
}

func reactionEffect(kind engine.ReactionKind) string {
	switch kind {
	case engine.Steam, engine.Burn:
		return "1 damage and a random discard"
	case engine.Shock, engine.Melt, engine.Dissolve:
		return "1 damage and a stun"
	case engine.Overreaction:
		return "2 damage"
	case engine.Erosion:
		return "three random discards"
	default:
		return string(kind)
	}
}

// Formatting helpers

func formatRoomList(rooms []room.Summary) string {
	if len(rooms) == 0 {
		return "No open rooms. Create one with create_room."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Open Rooms (%d):\n\n", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&b, "- %s %q (%d/%d players)\n", r.ID, r.Name, r.Players, r.MaxPlayers)
	}
	return b.String()
}

func formatRoom(view *room.RoomView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s %q\n", view.ID, view.Name)

	if view.Game == nil {
		fmt.Fprintf(&b, "Lobby (%d/%d players)\n", len(view.Members), view.MaxPlayers)
		for _, m := range view.Members {
			flags := ""
			if m.Host {
				flags += " [host]"
			}
			if m.Ready {
				flags += " [ready]"
			}
			fmt.Fprintf(&b, "  %d. %s (%s)%s\n", m.Index, m.Name, m.ID, flags)
		}
		if view.LastResult != nil {
			b.WriteString("\nLast game:\n")
			b.WriteString(formatEnded(view.LastResult))
		}
		return b.String()
	}

	g := view.Game
	fmt.Fprintf(&b, "Turn %d\n", g.TurnNumber)
	if !g.TurnDeadline.IsZero() {
		fmt.Fprintf(&b, "Turn deadline: %s\n", g.TurnDeadline.Format(time.RFC3339))
	}
	for _, p := range g.Players {
		marker := "  "
		if p.Index == g.CurrentPlayerIndex {
			marker = "→ "
		}
		fmt.Fprintf(&b, "%s%s\n", marker, formatPlayer(p))
	}
	return b.String()
}

func formatPlayer(p engine.PublicPlayer) string {
	status := fmt.Sprintf("HP %d/%d, %d cards", p.HP, p.MaxHP, p.HandSize)
	if !p.Alive {
		status = "eliminated"
	}
	line := fmt.Sprintf("[%d] %s (%s): %s", p.Index, p.Name, p.ID, status)
	if len(p.Marks) > 0 {
		marks := make([]string, 0, len(p.Marks))
		for _, m := range p.Marks {
			marks = append(marks, fmt.Sprintf("%s:%d", m.Element, m.RemainingDuration))
		}
		line += " marks=" + strings.Join(marks, ",")
	}
	if p.Stunned {
		line += " STUNNED"
	}
	return line
}

func formatEnded(ended *engine.SessionEnded) string {
	var b strings.Builder
	if ended.Winner != nil {
		fmt.Fprintf(&b, "Winner: %s\n", ended.Winner.Name)
	} else {
		b.WriteString("No winner\n")
	}
	fmt.Fprintf(&b, "Total turns: %d\n", ended.TotalTurns)
	for i, p := range ended.Rankings {
		fmt.Fprintf(&b, "  #%d %s (HP %d)\n", i+1, p.Name, p.HP)
	}
	return b.String()
}

func formatCard(card engine.Card) string {
	return fmt.Sprintf("%s  %s [%s] dmg=%d  %s",
		card.InstanceID, card.Name, card.Element, card.Damage, card.Description)
}

func formatHand(hand []engine.Card) string {
	if len(hand) == 0 {
		return "Your hand is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your hand (%d cards):\n", len(hand))
	for _, card := range hand {
		b.WriteString("- " + formatCard(card) + "\n")
	}
	return b.String()
}

func formatAction(resp *actionResponse) string {
	var b strings.Builder
	if resp.Result != nil {
		fmt.Fprintf(&b, "✓ %s\n", resp.Result.Message)
		for _, line := range resp.Result.EffectLog {
			fmt.Fprintf(&b, "  • %s\n", line)
		}
		if resp.Result.Reaction != nil {
			fmt.Fprintf(&b, "Reaction: %s\n", resp.Result.Reaction.Name)
		}
	}
	for _, card := range resp.DrawnCards {
		b.WriteString("Drew: " + formatCard(card) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(formatRoom(&resp.Room))
	return b.String()
}

func formatCards(cards []engine.CardTemplate, element engine.Element) string {
	var b strings.Builder
	n := 0
	for _, card := range cards {
		if element != "" && card.Element != element {
			continue
		}
		n++
		fmt.Fprintf(&b, "#%d %s [%s] dmg=%d  %s\n", card.ID, card.Name, card.Element, card.Damage, card.Description)
	}
	return fmt.Sprintf("Cards (%d):\n", n) + b.String()
}
