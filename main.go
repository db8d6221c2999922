// Command skillwar starts the Skill War card battle server.
//
// It supports two modes:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from the environment (and a .env file); flags override them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/skillwar/api"
	"github.com/wricardo/skillwar/bot"
	"github.com/wricardo/skillwar/config"
	"github.com/wricardo/skillwar/game/catalog"
	"github.com/wricardo/skillwar/game/room"
	"github.com/wricardo/skillwar/game/service"
	"github.com/wricardo/skillwar/telemetry"
	"github.com/wricardo/skillwar/transport/mcp"
	"github.com/wricardo/skillwar/transport/websocket"
)

// Version information
const (
	Version     = "1.0.0"
	AppName     = "Skill War Server"
	ServiceName = "skillwar"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. Flags live on the root and are visible to every
// subcommand.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    ServiceName,
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "HTTP server host (HOST)"},
			&cli.IntFlag{Name: "port", Usage: "HTTP server port (PORT)"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging (DEBUG)"},
			&cli.DurationFlag{Name: "turn-timeout", Usage: "Time a player has to act (TURN_TIMEOUT)"},
			&cli.StringFlag{Name: "readiness", Usage: "Who must be ready to start: all or non-host (READINESS_POLICY)"},
			&cli.StringFlag{Name: "catalog", Usage: "Card catalog JSON file, embedded catalog when empty (CATALOG_PATH)"},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel (NGROK_ENABLED)"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token (NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (NGROK_DOMAIN)"},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server, with an internal HTTP server when no API is reachable",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "api-url", Usage: "External API to proxy to (default http://localhost:<port>)"},
				},
				Action: runMCP,
			},
			{
				Name:  "bot",
				Usage: "Seat one or more bots in a room and play a game through the REST API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "Game server URL"},
					&cli.StringFlag{Name: "room", Usage: "Room to join; a new room is created when empty"},
					&cli.StringFlag{Name: "name", Value: "bot", Usage: "Bot name prefix"},
					&cli.StringFlag{Name: "level", Value: string(bot.LevelGreedy), Usage: "Strategy: greedy or random"},
					&cli.IntFlag{Name: "count", Value: 1, Usage: "Number of bots to seat"},
					&cli.DurationFlag{Name: "poll", Value: 250 * time.Millisecond, Usage: "Room polling interval"},
				},
				Action: runBots,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, err := fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return err
				},
			},
		},
	}
}

// loadConfig reads the environment and applies any flag set on the command line
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}

	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("turn-timeout") {
		cfg.TurnTimeout = cmd.Duration("turn-timeout")
	}
	if cmd.IsSet("readiness") {
		cfg.Readiness = room.Readiness(cmd.String("readiness"))
	}
	if cmd.IsSet("catalog") {
		cfg.CatalogPath = cmd.String("catalog")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	return cfg, cfg.Validate()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// gameServer holds the wired services of one process
type gameServer struct {
	cfg      config.Config
	log      *zap.Logger
	hub      *websocket.Hub
	registry *room.Registry
	service  service.GameService
	api      *api.Server
}

// buildServer wires the catalog, registry, service, hub and API. Rooms run
// until ctx is done or Close is called.
func buildServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*gameServer, error) {
	cards, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load card catalog: %w", err)
	}

	hub := websocket.NewHub(logger)
	registry := room.NewRegistry(ctx, room.Options{
		TurnTimeout:    cfg.TurnTimeout,
		Readiness:      cfg.Readiness,
		MaxRoomPlayers: cfg.MaxRoomPlayers,
		Catalog:        cards,
		Publisher:      hub,
		Logger:         logger,
	})
	svc := service.NewGameService(registry, cards, logger)
	hub.SetService(svc)

	logger.Info("services initialized",
		zap.Int("cards", cards.Len()),
		zap.Duration("turn_timeout", cfg.TurnTimeout),
		zap.String("readiness", string(cfg.Readiness)))

	return &gameServer{
		cfg:      cfg,
		log:      logger,
		hub:      hub,
		registry: registry,
		service:  svc,
		api:      api.NewServer(svc, hub, logger),
	}, nil
}

// Handler combines the API with an /mcp endpoint proxying back to baseURL
func (s *gameServer) Handler(baseURL string) http.Handler {
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", s.api)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// cleanupIdleRooms periodically closes lobby rooms nobody has touched within RoomIdleTTL
func (s *gameServer) cleanupIdleRooms(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.registry.CleanupIdleRooms(ctx, s.cfg.RoomIdleTTL); removed > 0 {
				s.log.Info("cleaned up idle rooms", zap.Int("removed", removed))
			}
		}
	}
}

// close stops every room and flushes their final events
func (s *gameServer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.registry.Close(ctx)
}

// serveHTTP serves handler on l until ctx is done
func serveHTTP(ctx context.Context, l net.Listener, handler http.Handler) error {
	httpServer := &http.Server{
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Serve(l) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	shutdownTelemetry, err := telemetry.Setup(ctx, ServiceName, cfg.Telemetry)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownTelemetry(flushCtx)
	}()

	logger.Info("starting", zap.String("app", AppName), zap.String("version", Version))

	g, gctx := errgroup.WithContext(ctx)
	srv, err := buildServer(gctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.close()

	addr := cfg.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	handler := srv.Handler("http://" + listener.Addr().String())

	g.Go(func() error { return srv.hub.Run(gctx) })
	g.Go(func() error { return srv.cleanupIdleRooms(gctx) })
	g.Go(func() error {
		logger.Info("HTTP server listening",
			zap.String("addr", addr),
			zap.String("rest", "http://"+addr+"/api"),
			zap.String("websocket", "ws://"+addr+"/ws?room=<room_id>&player=<player_id>"),
			zap.String("mcp", "http://"+addr+"/mcp"))
		return serveHTTP(gctx, listener, handler)
	})
	if cfg.Ngrok.Enabled {
		g.Go(func() error { return runNgrok(gctx, cfg.Ngrok, handler, logger) })
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// runNgrok exposes handler through an ngrok tunnel. A missing token or a
// failed tunnel is logged and does not stop the server.
func runNgrok(ctx context.Context, cfg config.Ngrok, handler http.Handler, logger *zap.Logger) error {
	authToken := cfg.AuthToken
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTH_TOKEN")
	}
	if authToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return nil
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", zap.String("domain", cfg.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", zap.Error(err))
		return nil
	}

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		zap.String("url", ngrokURL),
		zap.String("websocket", ngrokURL+"/ws?room=<room_id>&player=<player_id>"),
		zap.String("mcp", ngrokURL+"/mcp"))

	if err := serveHTTP(ctx, tun, handler); err != nil {
		logger.Error("ngrok server error", zap.Error(err))
	}
	logger.Info("ngrok tunnel closed")
	return nil
}

// runMCP runs an MCP stdio server. It reuses an external API when one answers
// on --api-url; otherwise it starts an internal HTTP API on a random loopback
// port and targets that.
func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	externalURL := cmd.String("api-url")
	if externalURL == "" {
		externalURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	baseURL := externalURL
	if apiAvailable(ctx, externalURL) {
		logger.Info("external API server found, using it for MCP", zap.String("url", externalURL))
	} else {
		logger.Info("no external API server found, starting internal HTTP server")

		srv, err := buildServer(gctx, cfg, logger)
		if err != nil {
			return err
		}
		defer srv.close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()
		logger.Info("internal HTTP server listening", zap.String("url", baseURL))

		g.Go(func() error { return srv.hub.Run(gctx) })
		g.Go(func() error { return srv.cleanupIdleRooms(gctx) })
		g.Go(func() error { return serveHTTP(gctx, listener, srv.Handler(baseURL)) })
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", zap.String("api", baseURL))

	serveErr := server.ServeStdio(mcpClient.GetMCPServer())
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	if serveErr != nil {
		return fmt.Errorf("MCP stdio server error: %w", serveErr)
	}
	return nil
}

// apiAvailable reports whether a Skill War API answers at baseURL
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runBots seats --count bots. Without --room the first bot hosts a new room
// and starts the game once every bot is seated and ready.
func runBots(ctx context.Context, cmd *cli.Command) error {
	logger, err := newLogger(cmd.Bool("debug"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	count := int(cmd.Int("count"))
	if count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", count)
	}
	level := bot.Level(cmd.String("level"))
	client := bot.NewClient(cmd.String("url"))
	name := cmd.String("name")
	roomID := cmd.String("room")

	players := make([]*bot.Player, 0, count)
	for i := 0; i < count; i++ {
		brain, err := bot.NewBrain(level, rand.New(rand.NewSource(time.Now().UnixNano()+int64(i))))
		if err != nil {
			return err
		}

		botName := fmt.Sprintf("%s-%d", name, i+1)
		var joined *room.Joined
		if roomID == "" {
			joined, err = client.CreateRoom(ctx, name, botName, 0)
		} else {
			joined, err = client.JoinRoom(ctx, roomID, botName)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", botName, err)
		}
		roomID = joined.Room.ID

		p := bot.NewPlayer(client, brain, roomID, joined.PlayerID, joined.Token, logger.With(zap.String("bot", botName)))
		p.PollInterval = cmd.Duration("poll")
		p.StartWith = max(count, p.StartWith)
		players = append(players, p)
		logger.Info("bot seated", zap.String("bot", botName), zap.String("room_id", roomID), zap.String("player_id", joined.PlayerID))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range players {
		g.Go(func() error {
			ended, err := p.Run(gctx)
			if err != nil {
				return err
			}
			if ended.Winner != nil && ended.Winner.ID == p.PlayerID() {
				logger.Info("bot won", zap.String("player_id", p.PlayerID()), zap.Int("turns", ended.TotalTurns))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range players {
		// Give the seat back so the room can be reused
		if err := p.Leave(ctx); err != nil {
			logger.Debug("leave failed", zap.Error(err))
		}
	}
	return nil
}
