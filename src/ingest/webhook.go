package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/snapshot"
	"market-relay/src/storage"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Webhook
// -----------------------------------------------------------------------------

type Webhook struct {
	gateway      *Gateway
	logger       *logger.Logger
	maxBodyBytes int64
}

// -----------------------------------------------------------------------------

func (w *Webhook) receive(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, w.maxBodyBytes)

	var payload models.MWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		w.reject(c, http.StatusBadRequest, fmt.Sprintf("Invalid payload: %v", err))
		return
	}

	snap, err := snapshot.FromEnvelope(payload)
	if err != nil {
		w.reject(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := w.gateway.persist(snap, models.GatewayWebhook, int(max(c.Request.ContentLength, 0)), c.ClientIP()); err != nil {
		var vErr *helpers.ValidationError
		if errors.As(err, &vErr) {
			w.reject(c, http.StatusBadRequest, err.Error())
			return
		}
		w.logger.Error("Error processing webhook: %v", err)
		w.reject(c, http.StatusInternalServerError, err.Error())
		return
	}

	w.logger.Info("Received %d bars for %s", len(snap), payload.Instrument)
	c.JSON(http.StatusOK, models.MWebhookAck{
		Status:       models.StatusSuccess,
		Message:      fmt.Sprintf("Received %d bars for %s", len(snap), payload.Instrument),
		BarsReceived: len(snap),
	})
}

func (w *Webhook) reject(c *gin.Context, code int, message string) {
	if code < http.StatusInternalServerError {
		w.logger.Warning("Rejected webhook from %s: %s", c.ClientIP(), message)
	}
	c.JSON(code, models.MErrorResponse{Status: models.StatusError, Message: message})
}

// -----------------------------------------------------------------------------

func (w *Webhook) health(c *gin.Context) {
	c.JSON(http.StatusOK, models.MStatusEnvelope{
		Status:  models.StatusOK,
		Message: "NinjaTrader webhook is running",
	})
}

// -----------------------------------------------------------------------------

func (w *Webhook) pushes(c *gin.Context) {
	limit := storage.DefaultRecentPushes
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.MErrorResponse{Status: models.StatusError, Message: "limit must be an integer"})
			return
		}
		limit = n
	}

	recs, err := w.gateway.Journal.RecentPushes(storage.ClampLimit(limit))
	if err != nil {
		w.logger.Error("Could not list pushes: %v", err)
		c.JSON(http.StatusInternalServerError, models.MErrorResponse{Status: models.StatusError, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": models.StatusSuccess,
		"pushes": recs,
	})
}
