package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/party"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/room"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/router"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/server/middleware"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/session"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/world"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/pkg/config"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	eventRouter *router.Router
	worldStore  *world.Store
	plazaStore  *world.Store
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) *App {
	registry := session.NewRegistry(logger)
	worldStore := world.NewStore(logger.With(slog.String("store", "global")), world.Options{
		Path: cfg.World.StatePath,
	})
	rooms := room.NewManager(logger, cfg.Room.MaxPlayers)
	parties := party.NewManager(logger, cfg.Party.MaxSize)

	var plazaStore *world.Store
	if cfg.Plaza.Enabled {
		plazaStore = world.NewStore(logger.With(slog.String("store", "plaza")), world.Options{
			Path:          cfg.Plaza.StatePath,
			ResetInterval: cfg.Plaza.ResetInterval,
		})
		rooms.EnablePlaza(cfg.Plaza.RoomID, cfg.Plaza.MaxPlayers)
	}

	eventRouter := router.New(logger, registry, worldStore, plazaStore, rooms, parties)

	app := &App{
		logger:      logger,
		eventRouter: eventRouter,
		worldStore:  worldStore,
		plazaStore:  plazaStore,
		config:      cfg,
		ctx:         rootCtx,
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(logger, cfg.Server.ConnectionLimit.MaxPerIP),
		),
	)

	app.http = &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return app.ctx
		},
	}

	return app
}

func (a *App) Run() error {
	go a.eventRouter.Run(a.ctx)

	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger
	if reqMeta != nil {
		connLogger = a.logger.With(slog.String("remoteAddr", reqMeta.IP))
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.eventRouter.HandleMessage,
		a.eventRouter.HandleClose,
		connLogger,
	)
	a.eventRouter.Connect(conn)
	conn.Run()
	<-conn.Done()
}

// Shutdown drains the server: stop accepting, let connection contexts
// cancel (they derive from the root context), wait for pump goroutines,
// then checkpoint durable state.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.wg.Wait()

	// The router has stopped by now, so touching the stores is safe.
	a.worldStore.Persist()
	if a.plazaStore != nil {
		a.plazaStore.Persist()
	}

	a.logger.Info("Server shut down gracefully.")
	return nil
}
