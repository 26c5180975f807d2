// Package main is the entry point of the application
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/match-server/internal/auth"
	"github.com/tecu23/match-server/pkg/archive"
	"github.com/tecu23/match-server/pkg/config"
	"github.com/tecu23/match-server/pkg/events"
	"github.com/tecu23/match-server/pkg/game"
	"github.com/tecu23/match-server/pkg/matchmaking"
	"github.com/tecu23/match-server/pkg/presence"
	"github.com/tecu23/match-server/pkg/server"
)

// application encapsulates global dependencies
type application struct {
	Auth      *auth.APIKeyAuth
	Logger    *zap.Logger
	Config    *config.Config
	Publisher *events.Publisher
	Registry  *game.Registry
	Presence  *presence.Tracker
	Hub       *server.Hub
	Writer    *archive.Writer
	Store     *archive.SQLiteStore
	Server    *http.Server

	Upgrader websocket.Upgrader

	StartTime time.Time
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "", "server port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}
	if *debug {
		cfg.Debug = true
	}
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	clk := clock.New()

	// Initialize event publisher
	publisher := events.NewPublisher()

	// Initialize session registry and start the flag-fall sweep
	registry := game.NewRegistry(clk, game.LibraryOracle{}, cfg.SweepInterval, publisher, logger)
	go registry.Run()

	// Initialize presence tracking with the disconnect grace period
	tracker := presence.NewTracker(clk, cfg.GracePeriod, registry, publisher, logger)

	// Initialize matchmaking
	queue := matchmaking.NewQueue(cfg.RatingBand, registry, tracker, clk, publisher, logger)

	hub := server.NewHub(registry, tracker, queue, publisher, logger)
	go hub.Run()

	app := &application{
		Auth:      auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:    logger,
		Config:    cfg,
		Publisher: publisher,
		Registry:  registry,
		Presence:  tracker,
		Hub:       hub,
		StartTime: time.Now(),
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowedOrigin == "" {
					return true
				}
				return cfg.AllowedOrigin == r.Header.Get("Origin")
			},
		},
	}

	// The archive is a collaborator, not a dependency: if it cannot open,
	// the server still runs and games stay in memory.
	store, err := archive.Open(cfg.ArchivePath)
	if err != nil {
		logger.Warn("archive unavailable, games will not be persisted", zap.Error(err))
	} else {
		app.Store = store
		app.Writer = archive.NewWriter(store, clk, logger)
		go app.Writer.Run()

		publisher.Subscribe(events.EventSessionEnded, func(event events.Event) {
			// Snapshotting needs the session lock the publisher's caller
			// still holds, so persistence happens off the hot path.
			go app.archiveSession(event.SessionID)
		})
	}

	err = app.serve()
	if err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

func (app *application) archiveSession(sessionID string) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return
	}

	session, ok := app.Registry.Get(id)
	if !ok {
		return
	}

	app.Writer.Enqueue(archive.RecordFromSnapshot(session.Snapshot()))
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	if app.Hub != nil {
		app.Hub.Shutdown()
	}
	if app.Presence != nil {
		app.Presence.Shutdown()
	}
	if app.Registry != nil {
		app.Registry.Shutdown()
	}
	if app.Writer != nil {
		app.Writer.Close()
	}
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Error("closing archive", zap.Error(err))
		}
	}

	app.Logger.Info("All components shut down successfully")
}
