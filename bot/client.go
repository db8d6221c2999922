package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/skillwar/api"
	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
	"github.com/wricardo/skillwar/game/service"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	Status  int
	Reason  engine.Reason
	Message string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Unwrap exposes the server's rejection so errors.Is matches engine errors
func (e *APIError) Unwrap() error {
	if e.Reason == "" {
		return nil
	}
	return &engine.Rejection{Reason: e.Reason, Message: e.Message}
}

// Client talks to the REST API
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Reason: apiErr.Reason, Message: apiErr.Error}
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func roomPath(roomID string, parts ...string) string {
	return "/api/rooms/" + strings.Join(append([]string{roomID}, parts...), "/")
}

func (c *Client) CreateRoom(ctx context.Context, roomName, playerName string, maxPlayers int) (*room.Joined, error) {
	var joined room.Joined
	req := service.CreateRoomRequest{RoomName: roomName, PlayerName: playerName, MaxPlayers: maxPlayers}
	if err := c.do(ctx, http.MethodPost, "/api/rooms", req, &joined); err != nil {
		return nil, err
	}
	return &joined, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomID, playerName string) (*room.Joined, error) {
	var joined room.Joined
	req := map[string]string{"player_name": playerName}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID, "join"), req, &joined); err != nil {
		return nil, err
	}
	return &joined, nil
}

func (c *Client) Room(ctx context.Context, roomID string) (*room.RoomView, error) {
	var view room.RoomView
	if err := c.do(ctx, http.MethodGet, roomPath(roomID), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Seat-scoped calls carry the token returned in room.Joined

func (c *Client) ToggleReady(ctx context.Context, roomID, playerID, token string) (*room.RoomView, error) {
	return c.member(ctx, "ready", roomID, playerID, token)
}

func (c *Client) StartGame(ctx context.Context, roomID, playerID, token string) (*room.RoomView, error) {
	return c.member(ctx, "start", roomID, playerID, token)
}

func (c *Client) Leave(ctx context.Context, roomID, playerID, token string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID, "leave"), credentials(playerID, token), nil)
}

func (c *Client) member(ctx context.Context, op, roomID, playerID, token string) (*room.RoomView, error) {
	var view room.RoomView
	if err := c.do(ctx, http.MethodPost, roomPath(roomID, op), credentials(playerID, token), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func credentials(playerID, token string) map[string]string {
	return map[string]string{"player_id": playerID, "token": token}
}

func (c *Client) Hand(ctx context.Context, roomID, playerID, token string) ([]engine.Card, error) {
	var hand room.HandUpdated
	path := roomPath(roomID, "players", url.PathEscape(playerID), "hand") + "?token=" + url.QueryEscape(token)
	if err := c.do(ctx, http.MethodGet, path, nil, &hand); err != nil {
		return nil, err
	}
	return hand.Hand, nil
}

func (c *Client) Act(ctx context.Context, roomID, playerID, token string, action engine.Action) (*api.ActionResponse, error) {
	var out api.ActionResponse
	req := api.ActionRequest{PlayerID: playerID, Token: token, Action: action}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID, "actions"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
