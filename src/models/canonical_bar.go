package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// MCanonicalBar is the flat, query-facing bar. Indicators hold only the
// canonical fields present in the source; an absent key means "no indicator".
type MCanonicalBar struct {
	Time       string
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	Instrument string
	Indicators map[string]any
}

var canonicalBaseKeys = map[string]struct{}{
	"time": {}, "open": {}, "high": {}, "low": {}, "close": {}, "volume": {}, "instrument": {},
}

// Indicator returns a numeric indicator value.
func (b MCanonicalBar) Indicator(name string) (float64, bool) {
	v, ok := b.Indicators[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Keys lists every key the bar emits, sorted.
func (b MCanonicalBar) Keys() []string {
	keys := make([]string, 0, len(canonicalBaseKeys)+len(b.Indicators))
	for k := range canonicalBaseKeys {
		keys = append(keys, k)
	}
	for k := range b.Indicators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b MCanonicalBar) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(canonicalBaseKeys)+len(b.Indicators))
	for k, v := range b.Indicators {
		flat[k] = v
	}
	flat["time"] = b.Time
	flat["open"] = b.Open
	flat["high"] = b.High
	flat["low"] = b.Low
	flat["close"] = b.Close
	flat["volume"] = b.Volume
	flat["instrument"] = b.Instrument
	return json.Marshal(flat)
}

func (b *MCanonicalBar) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*b = MCanonicalBar{}
	targets := map[string]any{
		"time":       &b.Time,
		"open":       &b.Open,
		"high":       &b.High,
		"low":        &b.Low,
		"close":      &b.Close,
		"volume":     &b.Volume,
		"instrument": &b.Instrument,
	}
	for key, raw := range flat {
		if target, ok := targets[key]; ok {
			if err := json.Unmarshal(raw, target); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		if b.Indicators == nil {
			b.Indicators = make(map[string]any)
		}
		b.Indicators[key] = v
	}
	return nil
}
