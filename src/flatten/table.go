package flatten

import "fmt"

// Panel names as emitted by the producer. "Panel ?" is the producer's label
// for indicators whose chart panel index could not be resolved.
const (
	PanelUnknown = "Panel ?"
	Panel2       = "Panel 2"
	Panel3       = "Panel 3"
	Panel5       = "Panel 5"
)

const (
	pricePrecision     int32 = 2
	indicatorPrecision int32 = 3
)

// Mapping binds one (panel, indicator) pair to a canonical field.
type Mapping struct {
	Panel     string
	Indicator string
	Field     string
	Precision int32
}

// PanelTable is the complete set of indicator sources the engine understands.
// Pairs missing from it are dropped.
var PanelTable = []Mapping{
	{PanelUnknown, "SMA", "sma20", indicatorPrecision},
	{PanelUnknown, "Upper band", "bb_upper", indicatorPrecision},
	{PanelUnknown, "Trigger", "bb_middle", indicatorPrecision},
	{PanelUnknown, "Trigger Average", "bb_middle_avg", indicatorPrecision},
	{PanelUnknown, "Lower band", "bb_lower", indicatorPrecision},
	{PanelUnknown, "Upper", "dc_upper", indicatorPrecision},
	{PanelUnknown, "Mean", "dc_middle", pricePrecision},
	{PanelUnknown, "Lower", "dc_lower", indicatorPrecision},
	{PanelUnknown, "UpTrend", "uptrend", indicatorPrecision},
	{PanelUnknown, "DownTrend", "downtrend", indicatorPrecision},
	{Panel3, "Momentum", "momentum", indicatorPrecision},
	{Panel3, "Squeeze", "squeeze", indicatorPrecision},
	{Panel3, "RMOBar", "rmo_bar", indicatorPrecision},
	{Panel3, "RMOLine", "rmo_line", indicatorPrecision},
	{Panel2, "MomentumHistogram", "momentum_histogram", indicatorPrecision},
	{Panel2, "SqueezeDots", "squeeze_dots", indicatorPrecision},
	{Panel5, "Range value", "range", indicatorPrecision},
	{Panel5, "ATR", "atr", indicatorPrecision},
}

// webhookAliases maps the flat indicator names used by the HTTP producer onto
// canonical fields. Canonical names are accepted as-is.
var webhookAliases = map[string]string{
	"sma_20":            "sma20",
	"donchian_upper":    "dc_upper",
	"donchian_mean":     "dc_middle",
	"donchian_lower":    "dc_lower",
	"bollinger_upper":   "bb_upper",
	"bollinger_mean":    "bb_middle",
	"bollinger_trigger": "bb_middle_avg",
	"bollinger_lower":   "bb_lower",
}

type sourceKey struct {
	panel     string
	indicator string
}

type lookup struct {
	bySource map[sourceKey]Mapping
	byField  map[string]Mapping
}

var index = mustBuild(PanelTable)

// -----------------------------------------------------------------------------

// build indexes a table, refusing duplicate sources or duplicate targets.
func build(table []Mapping) (*lookup, error) {
	l := &lookup{
		bySource: make(map[sourceKey]Mapping, len(table)),
		byField:  make(map[string]Mapping, len(table)),
	}
	for _, m := range table {
		if m.Panel == "" || m.Indicator == "" || m.Field == "" {
			return nil, fmt.Errorf("incomplete mapping %+v", m)
		}
		key := sourceKey{m.Panel, m.Indicator}
		if prev, ok := l.bySource[key]; ok {
			return nil, fmt.Errorf("source %q/%q mapped twice (%s, %s)", m.Panel, m.Indicator, prev.Field, m.Field)
		}
		if prev, ok := l.byField[m.Field]; ok {
			return nil, fmt.Errorf("field %s has two sources (%s/%s, %s/%s)", m.Field, prev.Panel, prev.Indicator, m.Panel, m.Indicator)
		}
		if _, reserved := reservedFields[m.Field]; reserved {
			return nil, fmt.Errorf("field %s collides with a bar field", m.Field)
		}
		l.bySource[key] = m
		l.byField[m.Field] = m
	}
	return l, nil
}

func mustBuild(table []Mapping) *lookup {
	l, err := build(table)
	if err != nil {
		panic("flatten: invalid panel table: " + err.Error())
	}
	return l
}

var reservedFields = map[string]struct{}{
	"time": {}, "open": {}, "high": {}, "low": {}, "close": {}, "volume": {}, "instrument": {},
}

// -----------------------------------------------------------------------------

// Validate checks a mapping table the same way the built-in one is checked.
func Validate(table []Mapping) error {
	_, err := build(table)
	return err
}

// Fields returns every canonical indicator field in table order.
func Fields() []string {
	out := make([]string, 0, len(PanelTable))
	for _, m := range PanelTable {
		out = append(out, m.Field)
	}
	return out
}

// SourceOf resolves a canonical field or a webhook alias to its panel source.
func SourceOf(name string) (panel, indicator string, ok bool) {
	if alias, isAlias := webhookAliases[name]; isAlias {
		name = alias
	}
	m, ok := index.byField[name]
	if !ok {
		return "", "", false
	}
	return m.Panel, m.Indicator, true
}
