package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/wricardo/skillwar/game/engine"
	"github.com/wricardo/skillwar/game/room"
	"github.com/wricardo/skillwar/game/service"
	"github.com/wricardo/skillwar/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	handler http.Handler
	log     *zap.Logger
}

// NewServer creates a new API server. hub may be nil, in which case /ws is
// not served.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		log:     logger.Named("api"),
	}

	s.setupRoutes()
	s.handler = s.wrap(s.router)
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Lobby
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/join", s.handleJoinRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/leave", s.handleLeaveRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/ready", s.handleToggleReady).Methods("POST")
	api.HandleFunc("/rooms/{id}/start", s.handleStartGame).Methods("POST")

	// Game operations
	api.HandleFunc("/rooms/{id}/actions", s.handleAction).Methods("POST")
	api.HandleFunc("/rooms/{id}/players/{pid}/hand", s.handleGetHand).Methods("GET")

	// Catalog
	api.HandleFunc("/cards", s.handleListCards).Methods("GET")

	// WebSocket
	if s.hub != nil {
		s.router.HandleFunc("/ws", s.hub.ServeWS)
	}
}

// wrap adds access logging, panic recovery and CORS around the router
func (s *Server) wrap(h http.Handler) http.Handler {
	h = handlers.CustomLoggingHandler(io.Discard, h, s.logRequest)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(s.log)),
		handlers.PrintRecoveryStack(true),
	)(h)
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
}

func (s *Server) logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.Debug("request",
		zap.String("method", p.Request.Method),
		zap.String("path", p.URL.Path),
		zap.Int("status", p.StatusCode),
		zap.Int("size", p.Size),
		zap.Duration("elapsed", time.Since(p.TimeStamp)))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error  string        `json:"error"`
	Reason engine.Reason `json:"reason,omitempty"`
	Field  string        `json:"field,omitempty"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}

// respondFailure maps a service error to a status code
func respondFailure(w http.ResponseWriter, err error) {
	var rej *engine.Rejection
	if !errors.As(err, &rej) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, statusFor(rej), ErrorResponse{Error: rej.Error(), Reason: rej.Reason, Field: rej.Field})
}

func statusFor(rej *engine.Rejection) int {
	switch rej.Kind() {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindState:
		return http.StatusConflict
	case engine.KindResource:
		switch rej.Reason {
		case engine.ReasonRoomNotFound, engine.ReasonUnknownPlayer:
			return http.StatusNotFound
		case engine.ReasonNotHost:
			return http.StatusForbidden
		case engine.ReasonUnauthorized:
			return http.StatusUnauthorized
		default:
			return http.StatusConflict
		}
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body. An empty body decodes to the zero value.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondFailure(w, engine.ErrInvalidRequest.WithField("body", "invalid request body"))
		return false
	}
	return true
}

// playerRequest is the body of lobby operations acting as a member. Token
// is the secret returned when the player joined.
type playerRequest struct {
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
}

func (s *Server) decodePlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req playerRequest
	if !decode(w, r, &req) {
		return "", false
	}
	if !s.authorize(w, r, req.PlayerID, req.Token) {
		return "", false
	}
	return req.PlayerID, true
}

// authorize rejects the request unless token was issued to playerID in the
// room named by the path
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, playerID, token string) bool {
	if playerID == "" {
		respondFailure(w, engine.ErrInvalidRequest.WithField("player_id", "player_id is required"))
		return false
	}
	if token == "" {
		respondFailure(w, engine.ErrInvalidRequest.WithField("token", "token is required"))
		return false
	}
	if err := s.service.Authorize(r.Context(), mux.Vars(r)["id"], playerID, token); err != nil {
		if errors.Is(err, engine.ErrUnauthorized) {
			s.log.Warn("rejected player token",
				zap.String("room_id", mux.Vars(r)["id"]),
				zap.String("player_id", playerID),
				zap.String("remote", r.RemoteAddr))
		}
		respondFailure(w, err)
		return false
	}
	return true
}

// Lobby Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.service.ListRooms(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	if rooms == nil {
		rooms = []room.Summary{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRoomRequest
	if !decode(w, r, &req) {
		return
	}

	joined, err := s.service.CreateRoom(r.Context(), req)
	if err != nil {
		respondFailure(w, err)
		return
	}

	s.log.Info("room created",
		zap.String("room_id", joined.Room.ID),
		zap.String("player_id", joined.PlayerID))
	respondJSON(w, http.StatusCreated, joined)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetRoom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"player_name"`
	}
	if !decode(w, r, &req) {
		return
	}

	joined, err := s.service.JoinRoom(r.Context(), mux.Vars(r)["id"], req.PlayerName)
	if err != nil {
		respondFailure(w, err)
		return
	}

	s.log.Info("player joined",
		zap.String("room_id", joined.Room.ID),
		zap.String("player_id", joined.PlayerID))

	respondJSON(w, http.StatusOK, joined)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.decodePlayer(w, r)
	if !ok {
		return
	}
	roomID := mux.Vars(r)["id"]

	if err := s.service.LeaveRoom(r.Context(), roomID, playerID); err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Left room " + roomID,
	})
}

func (s *Server) handleToggleReady(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.decodePlayer(w, r)
	if !ok {
		return
	}

	view, err := s.service.ToggleReady(r.Context(), mux.Vars(r)["id"], playerID)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.decodePlayer(w, r)
	if !ok {
		return
	}

	view, err := s.service.StartGame(r.Context(), mux.Vars(r)["id"], playerID)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Game Operation Handlers

// ActionRequest is the body of POST /api/rooms/{id}/actions
type ActionRequest struct {
	PlayerID string `json:"player_id"`
	Token    string `json:"token"`
	engine.Action
}

// ActionResponse reports an accepted action. DrawnCards is only ever sent to
// the acting player.
type ActionResponse struct {
	Result     *engine.Result `json:"result"`
	DrawnCards []engine.Card  `json:"drawn_cards,omitempty"`
	Room       room.RoomView  `json:"room"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decode(w, r, &req) {
		return
	}
	if !s.authorize(w, r, req.PlayerID, req.Token) {
		return
	}

	roomID := mux.Vars(r)["id"]
	out, err := s.service.SubmitAction(r.Context(), roomID, req.PlayerID, req.Action)
	if err != nil {
		respondFailure(w, err)
		return
	}

	// Compact server log for observability
	fields := []zap.Field{
		zap.String("room_id", roomID),
		zap.String("player_id", req.PlayerID),
		zap.String("type", string(req.Kind)),
		zap.Int("damage", out.Result.DamageDealt),
	}
	if out.Result.Reaction != nil {
		fields = append(fields, zap.String("reaction", out.Result.Reaction.Name))
	}
	if len(out.Result.Eliminated) > 0 {
		fields = append(fields, zap.Strings("eliminated", out.Result.Eliminated))
	}
	s.log.Info("action", fields...)

	respondJSON(w, http.StatusOK, ActionResponse{
		Result:     out.Result,
		DrawnCards: out.Result.DrawnCards,
		Room:       out.Room,
	})
}

// handleGetHand serves a private hand. The token comes from ?token= since
// the request has no body.
func (s *Server) handleGetHand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.authorize(w, r, vars["pid"], r.URL.Query().Get("token")) {
		return
	}

	hand, err := s.service.GetHand(r.Context(), vars["id"], vars["pid"])
	if err != nil {
		respondFailure(w, err)
		return
	}
	if hand == nil {
		hand = []engine.Card{}
	}

	respondJSON(w, http.StatusOK, room.HandUpdated{PlayerID: vars["pid"], Hand: hand})
}

// Catalog Handlers

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.service.ListCards(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(cards),
		"cards": cards,
	})
}

// Server Handlers

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "skillwar",
		"message": "Skill War server is running",
		"stats": map[string]int{
			"active_rooms":    stats.Rooms,
			"online_players":  stats.Players,
			"active_games":    stats.ActiveGames,
			"available_rooms": stats.AvailableRooms,
		},
		"websocket": "/ws?room={id}&player={player_id}&token={token}",
		"endpoints": []string{
			"GET /api/rooms",
			"POST /api/rooms",
			"GET /api/rooms/{id}",
			"POST /api/rooms/{id}/join",
			"POST /api/rooms/{id}/leave",
			"POST /api/rooms/{id}/ready",
			"POST /api/rooms/{id}/start",
			"POST /api/rooms/{id}/actions",
			"GET /api/rooms/{id}/players/{player_id}/hand?token={token}",
			"GET /api/cards",
			"GET /stats",
			"GET /health",
		},
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"uptime":       stats.Uptime,
		"rooms":        stats.Rooms,
		"players":      stats.Players,
		"active_games": stats.ActiveGames,
		"timestamp":    time.Now().UTC(),
	})
}
