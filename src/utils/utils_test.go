package utils

import (
	"io"
	"testing"
	"time"

	"market-relay/src/logger"

	"github.com/stretchr/testify/assert"
)

func TestMICFor(t *testing.T) {
	tests := []struct {
		instrument string
		want       string
	}{
		{"QQQ", "xnys"},
		{"qqq", "xnys"},
		{"ES 12-25", "xnys"},
		{"VOD.L", "xlon"},
		{"7203.T", "xtks"},
		{"BRK.B", "xnys"},
		{"", "xnys"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MICFor(tt.instrument), tt.instrument)
	}
}

func TestFallbackCalendarHours(t *testing.T) {
	tc := &TradingCalendar{Fallback: true, Timezone: time.UTC}

	tuesday := time.Date(2025, 1, 7, 10, 0, 0, 0, time.UTC)
	assert.True(t, tc.IsTradingDay(tuesday))
	assert.True(t, tc.IsOpenOnMinute(tuesday))
	assert.True(t, tc.IsOpenOnMinute(time.Date(2025, 1, 7, 9, 30, 0, 0, time.UTC)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2025, 1, 7, 9, 29, 0, 0, time.UTC)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2025, 1, 7, 16, 0, 0, 0, time.UTC)))

	saturday := time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)
	assert.False(t, tc.IsTradingDay(saturday))
	assert.False(t, tc.IsOpenOnMinute(saturday))
}

func TestMarketClockWeekend(t *testing.T) {
	mc := NewMarketClock(logger.NewLoggerTo(io.Discard, "ERROR", "MarketClock"))
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}

	saturday := time.Date(2025, 1, 4, 12, 0, 0, 0, ny)
	assert.False(t, mc.IsOpenAt("QQQ", saturday))

	tuesday := time.Date(2025, 1, 7, 11, 0, 0, 0, ny)
	assert.True(t, mc.IsOpenAt("QQQ", tuesday))
	assert.False(t, mc.IsOpenAt("", tuesday))
	assert.False(t, mc.IsOpenAt("UNKNOWN", tuesday))
}

func TestMarketClockCachesCalendars(t *testing.T) {
	mc := NewMarketClock(logger.NewLoggerTo(io.Discard, "ERROR", "MarketClock"))
	first := mc.calendarFor("QQQ")
	assert.Same(t, first, mc.calendarFor("QQQ"))
}
