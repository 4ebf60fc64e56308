package store

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"market-relay/src/flatten"
	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"
	"market-relay/src/snapshot"
)

// -----------------------------------------------------------------------------
// Dataset
// -----------------------------------------------------------------------------

// Dataset is one loaded snapshot, already flattened. It is never modified
// after publication; a reload publishes a new Dataset.
type Dataset struct {
	Bars       []models.MCanonicalBar
	Tickers    []string
	Instrument string
	Freshness  models.MFreshness
	ModTime    time.Time
	LoadedAt   time.Time
	// Err is set when neither snapshot file could be loaded.
	Err error
}

// Event describes one dataset swap.
type Event struct {
	Instrument        string
	Previous          string
	Bars              int
	Freshness         models.MFreshness
	InstrumentChanged bool
	Err               error
}

// -----------------------------------------------------------------------------
// MarketDataStore
// -----------------------------------------------------------------------------

type MarketDataStore struct {
	livePath     string
	fallbackPath string
	interval     time.Duration
	Logger       *logger.Logger

	current atomic.Pointer[Dataset]

	// loadMu serialises loads; fields below it are owned by the loader.
	loadMu         sync.Mutex
	lastSeen       time.Time
	lastInstrument string

	listenersMu sync.RWMutex
	listeners   []func(Event)

	metricsMu sync.Mutex
	metrics   models.MStoreMetrics
}

// -----------------------------------------------------------------------------

func NewMarketDataStore(cfg models.MSnapshotConfig, log *logger.Logger) *MarketDataStore {
	s := &MarketDataStore{
		livePath:     cfg.LiveFile,
		fallbackPath: cfg.FallbackFile,
		interval:     time.Duration(cfg.PollIntervalSeconds) * time.Second,
		Logger:       log,
	}
	s.current.Store(&Dataset{
		Freshness: models.FreshnessFallback,
		Err:       errors.New("no market data loaded yet"),
	})
	return s
}

// -----------------------------------------------------------------------------

// Subscribe registers fn to be called after every Load. fn runs on the
// loading goroutine and must not block.
func (s *MarketDataStore) Subscribe(fn func(Event)) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// Current returns the dataset queries are currently served from.
func (s *MarketDataStore) Current() *Dataset {
	return s.current.Load()
}

// -----------------------------------------------------------------------------
// Loading
// -----------------------------------------------------------------------------

// Load reads the live snapshot, falling back to the fallback snapshot, and
// publishes the result. It returns an error only when both files failed, in
// which case an empty dataset is published.
func (s *MarketDataStore) Load() error {
	s.loadMu.Lock()
	started := time.Now()

	ds, liveErr := s.loadLive()
	if liveErr != nil {
		s.Logger.Warning("Could not load live data: %v", liveErr)

		var fbErr error
		ds, fbErr = s.loadFile(s.fallbackPath, models.FreshnessFallback, time.Time{})
		if fbErr != nil {
			s.Logger.Error("Error loading market data: %v", fbErr)
			ds = &Dataset{
				Freshness: models.FreshnessFallback,
				LoadedAt:  time.Now(),
				Err:       fmt.Errorf("no market data available: %w", errors.Join(liveErr, fbErr)),
			}
		} else {
			s.Logger.Info("Loaded %d bars from FALLBACK file %s", len(ds.Bars), s.fallbackPath)
		}
	}

	s.current.Store(ds)

	event := Event{
		Instrument: ds.Instrument,
		Previous:   s.lastInstrument,
		Bars:       len(ds.Bars),
		Freshness:  ds.Freshness,
		Err:        ds.Err,
	}
	if ds.Err == nil {
		event.InstrumentChanged = ds.Instrument != s.lastInstrument
		if event.InstrumentChanged {
			if s.lastInstrument != "" {
				s.Logger.Info("Instrument changed from %s to %s", s.lastInstrument, ds.Instrument)
			}
			s.lastInstrument = ds.Instrument
		}
		if ds.Freshness == models.FreshnessLive {
			s.Logger.Info("Loaded %d bars from LIVE data - Instrument: %s", len(ds.Bars), ds.Instrument)
		}
	}
	s.loadMu.Unlock()

	s.recordLoad(ds, time.Since(started))
	s.notify(event)
	return ds.Err
}

// loadLive must be called with loadMu held.
func (s *MarketDataStore) loadLive() (*Dataset, error) {
	info, err := os.Stat(s.livePath)
	if err != nil {
		s.lastSeen = time.Time{}
		return nil, helpers.NewSnapshotError(fmt.Sprintf("live file %s unavailable", s.livePath), err)
	}
	// Recorded before parsing so a broken file is retried only once it changes.
	s.lastSeen = info.ModTime()
	return s.loadFile(s.livePath, models.FreshnessLive, info.ModTime())
}

func (s *MarketDataStore) loadFile(path string, freshness models.MFreshness, modTime time.Time) (*Dataset, error) {
	decoded, err := snapshot.Read(path)
	if err != nil {
		return nil, err
	}
	for _, skipErr := range decoded.Skipped {
		s.Logger.Warning("Skipping undecodable bar in %s: %v", path, skipErr)
	}

	bars, skipped := flatten.Snapshot(decoded.Snapshot)
	for _, skipErr := range skipped {
		s.Logger.Warning("Error converting bar in %s: %v", path, skipErr)
	}
	if len(bars) == 0 {
		return nil, helpers.NewSnapshotError(fmt.Sprintf("%s holds no usable bars", path), nil)
	}

	return &Dataset{
		Bars:       bars,
		Tickers:    tickersOf(bars),
		Instrument: decoded.Snapshot.Instrument(),
		Freshness:  freshness,
		ModTime:    modTime,
		LoadedAt:   time.Now(),
	}, nil
}

func tickersOf(bars []models.MCanonicalBar) []string {
	seen := make(map[string]struct{})
	for _, b := range bars {
		if b.Instrument != "" {
			seen[b.Instrument] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// AvailableTickers returns the sorted distinct instruments of the current dataset.
func (s *MarketDataStore) AvailableTickers() ([]string, error) {
	ds := s.current.Load()
	if ds.Err != nil {
		return []string{}, ds.Err
	}
	return ds.Tickers, nil
}

// Query returns the whole current dataset sorted by time. The request's
// ticker, duration and bar size are not used for filtering. The returned
// slice is shared and must not be modified.
func (s *MarketDataStore) Query(req models.MQueryRequest) ([]models.MCanonicalBar, models.MFreshness, error) {
	ds := s.current.Load()
	if ds.Err != nil {
		return []models.MCanonicalBar{}, ds.Freshness, ds.Err
	}
	return ds.Bars, ds.Freshness, nil
}

// -----------------------------------------------------------------------------
// Metrics & notifications
// -----------------------------------------------------------------------------

func (s *MarketDataStore) recordLoad(ds *Dataset, took time.Duration) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()

	s.metrics.Reloads++
	if ds.Err != nil {
		s.metrics.FailedLoads++
	}
	s.metrics.LastLoadSeconds = took.Seconds()
	s.metrics.BarsLoaded = len(ds.Bars)
	s.metrics.LastReload = ds.LoadedAt.Unix()
}

func (s *MarketDataStore) Metrics() models.MStoreMetrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

func (s *MarketDataStore) notify(e Event) {
	s.listenersMu.RLock()
	listeners := append([]func(Event){}, s.listeners...)
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}
