package server

import (
	"context"
	"encoding/json"
	"net/http"

	"market-relay/src/models"
	"market-relay/src/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop. Only subscribed clients receive
// broadcasts; replies to requests go straight to the client's queue.
func (s *QueryServer) handleWebsockets(ctx context.Context) {
	subscribed := make(map[*Client]struct{})

	defer func() {
		close(s.quit)
		for client := range s.clients {
			client.close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connections.Store(int64(len(s.clients)))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				delete(subscribed, client)
				client.close()
			}
			s.connections.Store(int64(len(s.clients)))

		case client := <-s.subscribe:
			if _, ok := s.clients[client]; ok {
				subscribed[client] = struct{}{}
			}

		case event := <-s.broadcast:
			for client := range subscribed {
				select {
				case client.send <- event:
				default:
					// Too slow; drop the connection rather than block the hub.
					s.Logger.Warning("Dropping slow subscriber %s", client.id)
					delete(subscribed, client)
					delete(s.clients, client)
					client.close()
				}
			}
			s.connections.Store(int64(len(s.clients)))
		}
	}
}

// -----------------------------------------------------------------------------
// Reload notifications
// -----------------------------------------------------------------------------

// OnReload queues a reload event for subscribers. It never blocks the store.
func (s *QueryServer) OnReload(e store.Event) {
	if !s.hubStarted.Load() {
		return
	}
	event := models.MReloadEvent{
		Status:            models.StatusSuccess,
		Event:             "reload",
		Ticker:            e.Instrument,
		Bars:              e.Bars,
		Freshness:         e.Freshness,
		InstrumentChanged: e.InstrumentChanged,
	}
	if e.InstrumentChanged {
		event.PreviousTicker = e.Previous
	}
	if e.Err != nil {
		event.Status = models.StatusError
	}

	select {
	case s.broadcast <- event:
	case <-s.quit:
	default:
		s.Logger.Warning("Reload event for %s dropped, broadcast queue full", e.Instrument)
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *QueryServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s, conn, uuid.NewString())

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}
	s.Logger.Info("Client connected from %s (id=%s)", conn.RemoteAddr(), client.id)

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage answers one request. Every request gets exactly one
// reply and the connection stays open whatever the outcome.
func (s *QueryServer) HandleClientMessage(client *Client, message []byte) any {
	var req models.MQueryRequest
	if err := json.Unmarshal(message, &req); err != nil {
		s.Logger.Warning("Invalid JSON from %s: %v", client.id, err)
		return errorReply("Invalid JSON")
	}

	switch req.Action {
	case models.ActionGetHistoricalData:
		return s.historicalData(req)

	case models.ActionGetTickers:
		tickers, err := s.Store.AvailableTickers()
		if err != nil {
			return errorReply(err.Error())
		}
		return models.MTickersResponse{Status: models.StatusSuccess, Tickers: tickers}

	case models.ActionSubscribe:
		select {
		case s.subscribe <- client:
		case <-s.quit:
		}
		return models.MStatusEnvelope{Status: models.StatusSuccess, Message: "Subscribed to reload events"}

	default:
		return errorReply("Unknown action: " + req.Action)
	}
}

func (s *QueryServer) historicalData(req models.MQueryRequest) any {
	if req.Duration == "" {
		req.Duration = models.DefaultDuration
	}
	if req.BarSize == "" {
		req.BarSize = models.DefaultBarSize
	}

	bars, freshness, err := s.Store.Query(req)
	if err != nil {
		s.Logger.Error("Error retrieving data: %v", err)
		return errorReply(err.Error())
	}

	s.Logger.Debug("Serving %d bars for %s (%s)", len(bars), req.Ticker, freshness)
	return models.MHistoricalDataResponse{
		Status:    models.StatusSuccess,
		Ticker:    req.Ticker,
		Duration:  req.Duration,
		BarSize:   req.BarSize,
		Freshness: freshness,
		Data:      bars,
	}
}

func errorReply(message string) models.MErrorResponse {
	return models.MErrorResponse{Status: models.StatusError, Message: message}
}
