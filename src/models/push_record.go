package models

import "time"

// MPushRecord is one accepted push, as kept in the push journal.
type MPushRecord struct {
	ID         int64     `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Gateway    string    `json:"gateway"` // "push" or "webhook"
	Instrument string    `json:"instrument"`
	Bars       int       `json:"bars"`
	Bytes      int       `json:"bytes"`
	RemoteAddr string    `json:"remote_addr"`
}

const (
	GatewayPush    = "push"
	GatewayWebhook = "webhook"
)
