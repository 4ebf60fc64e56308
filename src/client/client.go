package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"

	"github.com/gorilla/websocket"
)

const retryBaseDelay = 500 * time.Millisecond

// -----------------------------------------------------------------------------
// Outcomes
// -----------------------------------------------------------------------------

type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeServer    Outcome = "server_error"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeTransport Outcome = "transport_error"
)

// Classify names the failure kind of an error returned by QueryClient.
func Classify(err error) Outcome {
	var (
		replyErr   *helpers.ServerReplyError
		timeoutErr *helpers.TimeoutError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &replyErr):
		return OutcomeServer
	case errors.As(err, &timeoutErr):
		return OutcomeTimeout
	default:
		return OutcomeTransport
	}
}

func isTransport(err error) bool {
	var transportErr *helpers.TransportError
	return errors.As(err, &transportErr)
}

// -----------------------------------------------------------------------------
// QueryClient
// -----------------------------------------------------------------------------

// QueryClient opens one connection per request, sends one message, reads one
// reply and closes. Failures come back as an empty result plus a typed error.
type QueryClient struct {
	URL     string
	Timeout time.Duration
	Retries int
	Logger  *logger.Logger

	dialer *websocket.Dialer
}

func NewQueryClient(cfg models.MClientConfig, log *logger.Logger) *QueryClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &QueryClient{
		URL:     cfg.URL,
		Timeout: timeout,
		Retries: cfg.Retries,
		Logger:  log,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
			ReadBufferSize:   64 * 1024,
		},
	}
}

// -----------------------------------------------------------------------------

func (c *QueryClient) Tickers(ctx context.Context) ([]string, error) {
	var resp models.MTickersResponse
	if err := c.request(ctx, models.MQueryRequest{Action: models.ActionGetTickers}, &resp); err != nil {
		return []string{}, err
	}
	if resp.Tickers == nil {
		resp.Tickers = []string{}
	}
	return resp.Tickers, nil
}

func (c *QueryClient) HistoricalData(ctx context.Context, req models.MQueryRequest) (models.MHistoricalDataResponse, error) {
	req.Action = models.ActionGetHistoricalData
	if req.Duration == "" {
		req.Duration = models.DefaultDuration
	}
	if req.BarSize == "" {
		req.BarSize = models.DefaultBarSize
	}

	var resp models.MHistoricalDataResponse
	if err := c.request(ctx, req, &resp); err != nil {
		return models.MHistoricalDataResponse{
			Status:   models.StatusError,
			Ticker:   req.Ticker,
			Duration: req.Duration,
			BarSize:  req.BarSize,
			Data:     []models.MCanonicalBar{},
		}, err
	}
	if resp.Data == nil {
		resp.Data = []models.MCanonicalBar{}
	}
	return resp, nil
}

// -----------------------------------------------------------------------------

// request retries transport failures only; a timeout or an error reply is
// returned at once.
func (c *QueryClient) request(ctx context.Context, req models.MQueryRequest, out any) error {
	var reply []byte
	err := helpers.RetryWithBackoff(ctx, c.Logger, req.Action, c.Retries, retryBaseDelay, isTransport, func() error {
		var err error
		reply, err = c.roundTrip(ctx, req)
		return err
	})
	if err != nil {
		c.Logger.Warning("%s failed (%s): %v", req.Action, Classify(err), err)
		return err
	}

	var envelope models.MStatusEnvelope
	if err := json.Unmarshal(reply, &envelope); err != nil {
		return helpers.NewTransportError("unreadable reply", err)
	}
	if envelope.Status != models.StatusSuccess {
		c.Logger.Warning("%s returned an error: %s", req.Action, envelope.Message)
		return helpers.NewServerReplyError(envelope.Message)
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return helpers.NewTransportError("unexpected reply shape", err)
	}
	return nil
}

func (c *QueryClient) roundTrip(ctx context.Context, req models.MQueryRequest) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	deadline, _ := ctx.Deadline()

	conn, _, err := c.dialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return nil, c.wrap(ctx, "connect", err)
	}
	defer conn.Close()

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(req); err != nil {
		return nil, c.wrap(ctx, "send", err)
	}

	conn.SetReadDeadline(deadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, c.wrap(ctx, "receive", err)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return message, nil
}

func (c *QueryClient) wrap(ctx context.Context, stage string, err error) error {
	var netErr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return helpers.NewTimeoutError(fmt.Sprintf("%s timed out after %v", stage, c.Timeout), err)
	}
	return helpers.NewTransportError(fmt.Sprintf("%s to %s failed", stage, c.URL), err)
}
