package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"market-relay/src/models"

	"github.com/shopspring/decimal"
)

// Bar flattens one raw bar. key is the bar's BarKey; it becomes the bar time
// when the bar carries no Date of its own.
func Bar(key string, raw models.MRawBar) (models.MCanonicalBar, error) {
	out := models.MCanonicalBar{
		Time:       raw.Date,
		Instrument: raw.Instrument,
	}
	if out.Time == "" {
		out.Time = key
	}

	prices := []struct {
		name   string
		value  json.Number
		target *float64
	}{
		{"Open", raw.Open, &out.Open},
		{"High", raw.High, &out.High},
		{"Low", raw.Low, &out.Low},
		{"Close", raw.Close, &out.Close},
	}
	for _, p := range prices {
		d, err := parseNumber(p.value)
		if err != nil {
			return models.MCanonicalBar{}, fmt.Errorf("bar %s: %s: %w", key, p.name, err)
		}
		*p.target = round(d, pricePrecision)
	}

	vol, err := parseNumber(raw.Volume)
	if err != nil {
		return models.MCanonicalBar{}, fmt.Errorf("bar %s: Volume: %w", key, err)
	}
	out.Volume = vol.IntPart()

	for panel, values := range raw.Panels {
		for indicator, rawValue := range values {
			m, ok := index.bySource[sourceKey{panel, indicator}]
			if !ok {
				continue
			}
			v, present, err := indicatorValue(rawValue, m.Precision)
			if err != nil {
				return models.MCanonicalBar{}, fmt.Errorf("bar %s: %s/%s: %w", key, panel, indicator, err)
			}
			if !present {
				continue
			}
			if out.Indicators == nil {
				out.Indicators = make(map[string]any)
			}
			out.Indicators[m.Field] = v
		}
	}

	return out, nil
}

// -----------------------------------------------------------------------------

// Snapshot flattens every bar of a snapshot, sorted ascending by BarKey.
// Bars that cannot be converted are skipped and reported in skipped.
func Snapshot(snap models.MSnapshot) (bars []models.MCanonicalBar, skipped []error) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bars = make([]models.MCanonicalBar, 0, len(keys))
	for _, k := range keys {
		bar, err := Bar(k, snap[k])
		if err != nil {
			skipped = append(skipped, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, skipped
}

// -----------------------------------------------------------------------------

func parseNumber(n json.Number) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// indicatorValue decodes one panel value. Nulls are reported as absent,
// numbers are rounded, anything else is passed through untouched.
func indicatorValue(raw json.RawMessage, precision int32) (any, bool, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false, err
	}

	switch n := v.(type) {
	case nil:
		return nil, false, nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, false, err
		}
		return round(d, precision), true, nil
	default:
		return v, true, nil
	}
}

func round(d decimal.Decimal, places int32) float64 {
	f, _ := d.Round(places).Float64()
	return f
}
