package utils

import (
	"sync"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"
)

// MarketClock resolves and caches one calendar per instrument.
type MarketClock struct {
	Logger *logger.Logger

	mu        sync.RWMutex
	calendars map[string]*TradingCalendar
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketClock(l *logger.Logger) *MarketClock {
	return &MarketClock{
		Logger:    l,
		calendars: make(map[string]*TradingCalendar),
		now:       time.Now,
	}
}

// -----------------------------------------------------------------------------

func (mc *MarketClock) calendarFor(instrument string) *TradingCalendar {
	mc.mu.RLock()
	cal, ok := mc.calendars[instrument]
	mc.mu.RUnlock()
	if ok {
		return cal
	}

	cal = GetCalendar(instrument)
	if cal.Fallback {
		mc.Logger.Warning("No exchange calendar for %s (%s), using Mon-Fri 09:30-16:00 New York", instrument, cal.MIC)
	} else {
		mc.Logger.Debug("Mapped %s to calendar %s", instrument, cal.MIC)
	}

	mc.mu.Lock()
	mc.calendars[instrument] = cal
	mc.mu.Unlock()
	return cal
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the instrument's market is open right now. An empty
// or unknown instrument is never open.
func (mc *MarketClock) IsOpen(instrument string) bool {
	return mc.IsOpenAt(instrument, mc.now())
}

func (mc *MarketClock) IsOpenAt(instrument string, t time.Time) bool {
	if instrument == "" || instrument == models.UnknownInstrument {
		return false
	}
	return mc.calendarFor(instrument).IsOpenOnMinute(t.UTC())
}
