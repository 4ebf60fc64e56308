package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Query protocol
// -----------------------------------------------------------------------------

const (
	ActionGetHistoricalData = "get_historical_data"
	ActionGetTickers        = "get_tickers"
	ActionSubscribe         = "subscribe"

	StatusSuccess = "success"
	StatusError   = "error"
	StatusOK      = "ok"

	DefaultDuration = "1 Y"
	DefaultBarSize  = "1 day"
)

type MQueryRequest struct {
	Action     string `json:"action"`
	Ticker     string `json:"ticker,omitempty"`
	Duration   string `json:"duration,omitempty"`
	BarSize    string `json:"bar_size,omitempty"`
	WhatToShow string `json:"what_to_show,omitempty"`
}

type MHistoricalDataResponse struct {
	Status    string          `json:"status"`
	Ticker    string          `json:"ticker"`
	Duration  string          `json:"duration"`
	BarSize   string          `json:"bar_size"`
	Freshness MFreshness      `json:"freshness"`
	Data      []MCanonicalBar `json:"data"`
}

type MTickersResponse struct {
	Status  string   `json:"status"`
	Tickers []string `json:"tickers"`
}

type MErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// MStatusEnvelope is the part of every reply a client inspects first.
type MStatusEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// MReloadEvent is pushed to subscribed query connections after a dataset swap.
type MReloadEvent struct {
	Status            string     `json:"status"`
	Event             string     `json:"event"`
	Ticker            string     `json:"ticker"`
	PreviousTicker    string     `json:"previous_ticker,omitempty"`
	Bars              int        `json:"bars"`
	Freshness         MFreshness `json:"freshness"`
	InstrumentChanged bool       `json:"instrument_changed"`
}

// -----------------------------------------------------------------------------
// Ingestion protocol
// -----------------------------------------------------------------------------

type MPushAck struct {
	Status       string `json:"status"`
	BarsReceived int    `json:"bars_received"`
	Timestamp    string `json:"timestamp"`
}

type MWebhookAck struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	BarsReceived int    `json:"bars_received"`
}

// MWebhookPayload is the envelope shape: one instrument, a list of flat bars.
type MWebhookPayload struct {
	Instrument string                       `json:"instrument"`
	Bars       []map[string]json.RawMessage `json:"bars"`
}
