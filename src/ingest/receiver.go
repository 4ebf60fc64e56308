package ingest

import (
	"net/http"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/snapshot"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// PushReceiver
// -----------------------------------------------------------------------------

// PushReceiver holds producer connections open indefinitely. Each message is
// a whole snapshot and gets exactly one reply; bad input never closes the
// connection.
type PushReceiver struct {
	gateway         *Gateway
	logger          *logger.Logger
	maxMessageBytes int64
}

// -----------------------------------------------------------------------------

func (r *PushReceiver) handleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warning("Failed to upgrade producer connection: %v", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	remote := conn.RemoteAddr().String()
	r.logger.Info("Producer connected from %s (id=%s)", remote, id)

	conn.SetReadLimit(r.maxMessageBytes)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Warning("Producer %s read error: %v", id, err)
			}
			r.logger.Info("Producer disconnected (id=%s)", id)
			return
		}

		reply := r.process(message, remote)

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(reply); err != nil {
			r.logger.Warning("Producer %s write error: %v", id, err)
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (r *PushReceiver) process(message []byte, remote string) any {
	decoded, err := snapshot.Decode(message)
	if err != nil {
		r.logger.Warning("Rejected push from %s: %v", remote, err)
		return models.MErrorResponse{Status: models.StatusError, Message: err.Error()}
	}
	for _, skipErr := range decoded.Skipped {
		r.logger.Warning("Skipping bar in push: %v", skipErr)
	}

	if err := r.gateway.persist(decoded.Snapshot, models.GatewayPush, len(message), remote); err != nil {
		r.logger.Error("Error processing push: %v", err)
		return models.MErrorResponse{Status: models.StatusError, Message: err.Error()}
	}

	r.logger.Info("Received %d bars for %s", len(decoded.Snapshot), decoded.Snapshot.Instrument())
	return models.MPushAck{
		Status:       models.StatusSuccess,
		BarsReceived: len(decoded.Snapshot),
		Timestamp:    time.Now().Format(time.RFC3339),
	}
}
