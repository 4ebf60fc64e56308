package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// QueryServer
// -----------------------------------------------------------------------------

type QueryServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	Store  interfaces.ISnapshotStore
	Clock  *utils.MarketClock

	engine     *gin.Engine
	httpServer *http.Server

	// Owned by the hub loop
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	subscribe  chan *Client
	broadcast  chan models.MReloadEvent
	quit       chan struct{}

	connections atomic.Int64
	hubStarted  atomic.Bool
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewQueryServer(cfg *models.MConfig, log *logger.Logger, st interfaces.ISnapshotStore, clock *utils.MarketClock) *QueryServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &QueryServer{
		Config:     cfg,
		Logger:     log,
		Store:      st,
		Clock:      clock,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan *Client),
		broadcast:  make(chan models.MReloadEvent, 16),
		quit:       make(chan struct{}),
	}

	s.engine.Use(gin.Recovery(), requestID(), cors())
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.engine,
	}

	st.Subscribe(s.OnReload)
	return s
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *QueryServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/metrics", s.getMetrics)

	// WebSocket endpoints
	s.engine.GET("/data", s.handleWebSocket)
	s.engine.GET("/", s.handleWebSocket)
}

// Handler exposes the routes, mainly for tests.
func (s *QueryServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Run starts the hub loop; it returns when ctx is cancelled, after closing
// every connection.
func (s *QueryServer) Run(ctx context.Context) {
	s.hubStarted.Store(true)
	s.handleWebsockets(ctx)
}

// Start listens until Shutdown is called. It returns nil on a clean shutdown.
func (s *QueryServer) Start() error {
	s.Logger.Info("Starting query service on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are
// closed by the hub when its context ends.
func (s *QueryServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *QueryServer) getHealth(c *gin.Context) {
	ds := s.Store.Current()

	lastReload := int64(0)
	if !ds.LoadedAt.IsZero() {
		lastReload = ds.LoadedAt.Unix()
	}

	body := gin.H{
		"status":      models.StatusOK,
		"freshness":   ds.Freshness,
		"instrument":  ds.Instrument,
		"bars":        len(ds.Bars),
		"connections": s.connections.Load(),
		"last_reload": lastReload,
		"market_open": s.Clock != nil && s.Clock.IsOpen(ds.Instrument),
	}
	if ds.Err != nil {
		body["error"] = ds.Err.Error()
	}
	c.JSON(http.StatusOK, body)
}

// -----------------------------------------------------------------------------

func (s *QueryServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Store.Metrics())
}
