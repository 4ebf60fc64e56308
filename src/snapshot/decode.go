package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"market-relay/src/flatten"
	"market-relay/src/helpers"
	"market-relay/src/models"
)

// Decoded is a parsed producer payload.
type Decoded struct {
	Snapshot models.MSnapshot
	// Envelope is true when the payload used the {instrument, bars} shape.
	Envelope bool
	// Skipped holds one error per bar that could not be decoded.
	Skipped []error
}

// Decode parses either producer shape into a snapshot. A JSON object holding
// both "instrument" and "bars" is an envelope; any other object is a
// BarKey -> bar mapping.
func Decode(payload []byte) (Decoded, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return Decoded{}, &helpers.ValidationError{MarketRelayError: helpers.MarketRelayError{Message: "payload must be a JSON object", Cause: err}}
	}
	if top == nil {
		return Decoded{}, helpers.NewValidationError("payload must be a JSON object")
	}

	_, hasInstrument := top["instrument"]
	_, hasBars := top["bars"]
	if hasInstrument && hasBars {
		var env models.MWebhookPayload
		if err := json.Unmarshal(payload, &env); err != nil {
			return Decoded{}, &helpers.ValidationError{MarketRelayError: helpers.MarketRelayError{Message: "invalid envelope", Cause: err}}
		}
		snap, err := FromEnvelope(env)
		if err != nil {
			return Decoded{}, err
		}
		return Decoded{Snapshot: snap, Envelope: true}, nil
	}

	out := Decoded{Snapshot: make(models.MSnapshot, len(top))}
	for key, raw := range top {
		var bar models.MRawBar
		if err := json.Unmarshal(raw, &bar); err != nil {
			out.Skipped = append(out.Skipped, fmt.Errorf("bar %s: %w", key, err))
			continue
		}
		out.Snapshot[key] = bar
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// FromEnvelope converts the envelope shape into a snapshot keyed by bar time.
// Indicator fields are put back under the panel the flattening table reads
// them from; unknown fields are dropped.
func FromEnvelope(env models.MWebhookPayload) (models.MSnapshot, error) {
	instrument := strings.TrimSpace(env.Instrument)
	if instrument == "" {
		return nil, helpers.NewValidationError("instrument must be a non-empty string")
	}
	if len(env.Bars) == 0 {
		return nil, helpers.NewValidationError("bars must be a non-empty list")
	}

	snap := make(models.MSnapshot, len(env.Bars))
	for i, fields := range env.Bars {
		bar, key, err := envelopeBar(fields)
		if err != nil {
			return nil, helpers.NewValidationError("bar %d: %v", i, err)
		}
		bar.Instrument = instrument
		snap[key] = bar
	}
	return snap, nil
}

func envelopeBar(fields map[string]json.RawMessage) (models.MRawBar, string, error) {
	var bar models.MRawBar

	rawTime, ok := fields["time"]
	if !ok {
		return bar, "", fmt.Errorf("missing time")
	}
	var t string
	if err := json.Unmarshal(rawTime, &t); err != nil || strings.TrimSpace(t) == "" {
		return bar, "", fmt.Errorf("time must be a non-empty string")
	}
	bar.Date = t

	prices := map[string]*json.Number{
		"open":   &bar.Open,
		"high":   &bar.High,
		"low":    &bar.Low,
		"close":  &bar.Close,
		"volume": &bar.Volume,
	}

	for name, raw := range fields {
		if name == "time" || name == "instrument" {
			continue
		}
		if target, isPrice := prices[name]; isPrice {
			n, err := number(raw)
			if err != nil {
				return bar, "", fmt.Errorf("%s: %w", name, err)
			}
			*target = n
			continue
		}
		panel, indicator, known := flatten.SourceOf(name)
		if !known {
			continue
		}
		if bar.Panels == nil {
			bar.Panels = make(map[string]map[string]json.RawMessage)
		}
		if bar.Panels[panel] == nil {
			bar.Panels[panel] = make(map[string]json.RawMessage)
		}
		bar.Panels[panel][indicator] = raw
	}
	return bar, t, nil
}

func number(raw json.RawMessage) (json.Number, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch n := v.(type) {
	case nil:
		return "", nil
	case json.Number:
		return n, nil
	default:
		return "", fmt.Errorf("must be a number, got %T", v)
	}
}
