package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Gateway
// -----------------------------------------------------------------------------

// Gateway serves both producer-facing endpoints on one listener: the
// websocket push receiver and the HTTP webhook.
type Gateway struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Writer  interfaces.ISnapshotWriter
	Journal interfaces.IPushJournal

	engine     *gin.Engine
	httpServer *http.Server
	receiver   *PushReceiver
	webhook    *Webhook
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewGateway(cfg *models.MConfig, log *logger.Logger, writer interfaces.ISnapshotWriter, journal interfaces.IPushJournal) *Gateway {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	g := &Gateway{
		Config:  cfg,
		Logger:  log,
		Writer:  writer,
		Journal: journal,
		engine:  gin.New(),
	}
	g.engine.Use(gin.Recovery())

	g.receiver = &PushReceiver{gateway: g, logger: log.Named("PushReceiver"), maxMessageBytes: cfg.Ingest.MaxMessageBytes}
	g.webhook = &Webhook{gateway: g, logger: log.Named("Webhook"), maxBodyBytes: cfg.Ingest.MaxMessageBytes}

	g.setupRoutes()
	g.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Ingest.Host, cfg.Ingest.Port),
		Handler: g.engine,
	}
	return g
}

// -----------------------------------------------------------------------------

func (g *Gateway) setupRoutes() {
	// Producer push connections
	g.engine.GET("/", g.receiver.handleConnection)
	g.engine.GET("/data", g.receiver.handleConnection)

	// Webhook
	hooks := g.engine.Group("/ninjatrader")
	hooks.POST("/webhook", g.webhook.receive)
	hooks.GET("/health", g.webhook.health)
	hooks.GET("/pushes", g.webhook.pushes)
}

// Handler exposes the routes, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start listens until Shutdown is called. It returns nil on a clean shutdown.
func (g *Gateway) Start() error {
	g.Logger.Info("Starting ingestion gateway on %s", g.httpServer.Addr)

	if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Shared persistence path
// -----------------------------------------------------------------------------

// persist writes snap over the live snapshot and journals the push. Journal
// failures are logged only.
func (g *Gateway) persist(snap models.MSnapshot, gateway string, payloadBytes int, remote string) error {
	if len(snap) == 0 {
		return helpers.NewValidationError("no bars in payload")
	}

	if _, err := g.Writer.Write(snap); err != nil {
		return err
	}

	rec := models.MPushRecord{
		ReceivedAt: time.Now().UTC(),
		Gateway:    gateway,
		Instrument: snap.Instrument(),
		Bars:       len(snap),
		Bytes:      payloadBytes,
		RemoteAddr: remote,
	}
	if err := g.Journal.RecordPush(rec); err != nil {
		g.Logger.Warning("Could not journal %s push: %v", gateway, err)
	}
	return nil
}
