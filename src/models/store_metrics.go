package models

// MStoreMetrics represents the reload bookkeeping of the market data store.
type MStoreMetrics struct {
	Reloads         int64   `json:"reloads"`
	FailedLoads     int64   `json:"failed_loads"`
	LastLoadSeconds float64 `json:"last_load_seconds"`
	BarsLoaded      int     `json:"bars_loaded"`
	LastReload      int64   `json:"last_reload"`
}
