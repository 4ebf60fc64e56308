package utils

import (
	"regexp"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers market-hours questions for one exchange.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	MIC      string
	Fallback bool
	Timezone *time.Location
}

// Exchange suffixes as used by listing-style symbols (QQQ, VOD.L, 7203.T).
var suffixMIC = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".BR": "xbru",
	".MI": "xmil",
	".MC": "xmad",
	".ST": "xsto",
	".CO": "xcse",
	".HE": "xhel",
	".VI": "xwbo",
	".SW": "xswx",
	".TO": "xtse",
	".V":  "xtsx",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
	".KS": "xkrx",
	".TW": "xtai",
	".SS": "xshg",
	".SZ": "xshe",
}

// Futures contracts carry their expiry after the root, e.g. "ES 12-25".
var contractExpiry = regexp.MustCompile(`\s+\d{2}-\d{2}$`)

// -----------------------------------------------------------------------------

// MICFor maps an instrument name to the ISO 10383 code of its exchange.
// Anything unrecognised, futures roots included, is treated as US equity
// hours (xnys).
func MICFor(instrument string) string {
	symbol := strings.ToUpper(strings.TrimSpace(instrument))
	symbol = contractExpiry.ReplaceAllString(symbol, "")

	if i := strings.LastIndex(symbol, "."); i > 0 {
		if mic, ok := suffixMIC[symbol[i:]]; ok {
			return mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

func GetCalendar(instrument string) *TradingCalendar {
	mic := MICFor(instrument)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		mic = "xnys"
		cal = calendar.GetCalendar(mic)
	}

	if cal == nil {
		// Mon-Fri 09:30-16:00 New York time
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{MIC: mic, Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, MIC: mic, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		hour, minute := t.Hour(), t.Minute()
		return (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16
	}

	return tc.Calendar.IsOpen(t)
}
