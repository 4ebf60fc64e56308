package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/snapshot"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type mockJournal struct {
	mock.Mock
}

func (m *mockJournal) Initialize() error { return m.Called().Error(0) }

func (m *mockJournal) RecordPush(rec models.MPushRecord) error { return m.Called(rec).Error(0) }

func (m *mockJournal) RecentPushes(limit int) ([]models.MPushRecord, error) {
	args := m.Called(limit)
	return args.Get(0).([]models.MPushRecord), args.Error(1)
}

func (m *mockJournal) Close() error { return m.Called().Error(0) }

type failingWriter struct{}

func (failingWriter) Write(models.MSnapshot) (int, error) {
	return 0, errors.New("disk full")
}

// -----------------------------------------------------------------------------

const pushPayload = `{
	"2025-01-02": {"Date":"2025-01-02","Open":100,"High":102,"Low":99,"Close":101,"Volume":1000,"Instrument":"QQQ","Panels":{"Panel ?":{"SMA":98.5}}},
	"2025-01-03": {"Date":"2025-01-03","Open":101,"High":103,"Low":100,"Close":102,"Volume":900,"Instrument":"QQQ"}
}`

const webhookPayload = `{
	"instrument": "QQQ",
	"bars": [
		{"time":"2025-11-13T09:30:00","open":500.25,"high":502.5,"low":499.75,"close":501,"volume":1500000,"sma_20":498.5,"atr":3.45}
	]
}`

type fixture struct {
	live    string
	journal *mockJournal
	gateway *Gateway
}

func newFixture(t *testing.T, writerOverride ...interfaces.ISnapshotWriter) *fixture {
	t.Helper()
	live := filepath.Join(t.TempDir(), "live_market_data.json")
	cfg := &models.MConfig{
		LogLevel: "INFO",
		Ingest:   models.MIngestConfig{Host: "127.0.0.1", Port: 9000, MaxMessageBytes: 1 << 20},
	}

	journal := &mockJournal{}
	var writer interfaces.ISnapshotWriter = snapshot.NewWriter(live)
	if len(writerOverride) > 0 {
		writer = writerOverride[0]
	}

	return &fixture{
		live:    live,
		journal: journal,
		gateway: NewGateway(cfg, logger.NewLoggerTo(io.Discard, "DEBUG", "Ingest"), writer, journal),
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(f.gateway.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/data"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, payload string) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

// -----------------------------------------------------------------------------
// Push receiver
// -----------------------------------------------------------------------------

func TestPushPersistsSnapshotAndAcks(t *testing.T) {
	f := newFixture(t)
	f.journal.On("RecordPush", mock.MatchedBy(func(r models.MPushRecord) bool {
		return r.Gateway == models.GatewayPush && r.Instrument == "QQQ" && r.Bars == 2
	})).Return(nil).Once()

	conn := f.dial(t)
	reply := roundTrip(t, conn, pushPayload)

	assert.Equal(t, "success", reply["status"])
	assert.EqualValues(t, 2, reply["bars_received"])
	_, err := time.Parse(time.RFC3339, reply["timestamp"].(string))
	assert.NoError(t, err)

	decoded, err := snapshot.Read(f.live)
	require.NoError(t, err)
	assert.Len(t, decoded.Snapshot, 2)
	f.journal.AssertExpectations(t)
}

func TestPushKeepsConnectionAfterBadInput(t *testing.T) {
	f := newFixture(t)
	f.journal.On("RecordPush", mock.Anything).Return(nil)

	conn := f.dial(t)

	reply := roundTrip(t, conn, `this is not json`)
	assert.Equal(t, "error", reply["status"])
	assert.NotEmpty(t, reply["message"])

	reply = roundTrip(t, conn, `{}`)
	assert.Equal(t, "error", reply["status"])
	_, err := os.Stat(f.live)
	assert.True(t, os.IsNotExist(err))

	reply = roundTrip(t, conn, pushPayload)
	assert.Equal(t, "success", reply["status"])
}

func TestPushAcceptsEnvelopeShape(t *testing.T) {
	f := newFixture(t)
	f.journal.On("RecordPush", mock.Anything).Return(nil)

	conn := f.dial(t)
	reply := roundTrip(t, conn, webhookPayload)
	assert.Equal(t, "success", reply["status"])
	assert.EqualValues(t, 1, reply["bars_received"])

	decoded, err := snapshot.Read(f.live)
	require.NoError(t, err)
	assert.Equal(t, "QQQ", decoded.Snapshot.Instrument())
}

func TestPushSucceedsWhenJournalFails(t *testing.T) {
	f := newFixture(t)
	f.journal.On("RecordPush", mock.Anything).Return(errors.New("database is locked"))

	conn := f.dial(t)
	reply := roundTrip(t, conn, pushPayload)
	assert.Equal(t, "success", reply["status"])
}

func TestPushReportsWriteFailure(t *testing.T) {
	f := newFixture(t, failingWriter{})

	conn := f.dial(t)
	reply := roundTrip(t, conn, pushPayload)
	assert.Equal(t, "error", reply["status"])
	assert.Contains(t, reply["message"], "disk full")
	f.journal.AssertNotCalled(t, "RecordPush", mock.Anything)
}

// -----------------------------------------------------------------------------
// Webhook
// -----------------------------------------------------------------------------

func postWebhook(f *fixture, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ninjatrader/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	f.gateway.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhookAcceptsBars(t *testing.T) {
	f := newFixture(t)
	f.journal.On("RecordPush", mock.MatchedBy(func(r models.MPushRecord) bool {
		return r.Gateway == models.GatewayWebhook && r.Bars == 1
	})).Return(nil).Once()

	w := postWebhook(f, webhookPayload)
	require.Equal(t, http.StatusOK, w.Code)

	var ack models.MWebhookAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "success", ack.Status)
	assert.Equal(t, 1, ack.BarsReceived)
	assert.Equal(t, "Received 1 bars for QQQ", ack.Message)

	decoded, err := snapshot.Read(f.live)
	require.NoError(t, err)
	bar := decoded.Snapshot["2025-11-13T09:30:00"]
	assert.Equal(t, "QQQ", bar.Instrument)
	assert.Contains(t, bar.Panels, "Panel ?")
	f.journal.AssertExpectations(t)
}

func TestWebhookRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"instrument":`},
		{"array", `[1,2]`},
		{"missing instrument", `{"bars":[{"time":"2025-01-02","open":1,"high":1,"low":1,"close":1,"volume":1}]}`},
		{"empty bars", `{"instrument":"QQQ","bars":[]}`},
		{"missing bars", `{"instrument":"QQQ"}`},
		{"bars not a list", `{"instrument":"QQQ","bars":"nope"}`},
		{"bar without time", `{"instrument":"QQQ","bars":[{"open":1,"high":1,"low":1,"close":1,"volume":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := postWebhook(f, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"status":"error"`)
			_, err := os.Stat(f.live)
			assert.True(t, os.IsNotExist(err))
			f.journal.AssertNotCalled(t, "RecordPush", mock.Anything)
		})
	}
}

func TestWebhookWriteFailureIsServerError(t *testing.T) {
	f := newFixture(t, failingWriter{})

	w := postWebhook(f, webhookPayload)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "disk full")
}

func TestWebhookHealth(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.gateway.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ninjatrader/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body models.MStatusEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Message)
}

func TestPushesListing(t *testing.T) {
	f := newFixture(t)
	recs := []models.MPushRecord{{ID: 2, Gateway: models.GatewayWebhook, Instrument: "QQQ", Bars: 1}}
	f.journal.On("RecentPushes", 5).Return(recs, nil).Once()
	f.journal.On("RecentPushes", 500).Return([]models.MPushRecord{}, nil).Once()

	w := httptest.NewRecorder()
	f.gateway.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ninjatrader/pushes?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"instrument":"QQQ"`)

	w = httptest.NewRecorder()
	f.gateway.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ninjatrader/pushes?limit=9999", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	f.gateway.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ninjatrader/pushes?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.journal.AssertExpectations(t)
}
