package models

import "encoding/json"

// MRawBar is one bar as pushed by the producer. Panel values are kept as raw
// JSON numbers so rounding happens on the decimal text, not on a float.
type MRawBar struct {
	Date       string                                `json:"Date,omitempty"`
	Week       string                                `json:"Week,omitempty"`
	BarIndex   *int                                  `json:"BarIndex,omitempty"`
	Open       json.Number                           `json:"Open,omitempty"`
	High       json.Number                           `json:"High,omitempty"`
	Low        json.Number                           `json:"Low,omitempty"`
	Close      json.Number                           `json:"Close,omitempty"`
	Volume     json.Number                           `json:"Volume,omitempty"`
	Instrument string                                `json:"Instrument,omitempty"`
	Panels     map[string]map[string]json.RawMessage `json:"Panels,omitempty"`
}

// MSnapshot is one full push: BarKey -> bar. BarKeys sort chronologically.
type MSnapshot map[string]MRawBar

// Instrument returns the instrument of the earliest bar, or "UNKNOWN".
func (s MSnapshot) Instrument() string {
	var first string
	found := false
	for key := range s {
		if !found || key < first {
			first = key
			found = true
		}
	}
	if !found || s[first].Instrument == "" {
		return UnknownInstrument
	}
	return s[first].Instrument
}

const UnknownInstrument = "UNKNOWN"

// -----------------------------------------------------------------------------

// MFreshness tells where the served dataset came from.
type MFreshness string

const (
	FreshnessLive     MFreshness = "live"
	FreshnessFallback MFreshness = "fallback"
)
