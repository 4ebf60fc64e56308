package store

import (
	"context"
	"errors"
	"os"
	"time"

	"market-relay/src/models"
)

// Watch polls the live file's modification time every interval and reloads
// when it has advanced, or when the live file vanished while being served.
// It returns when ctx is cancelled.
func (s *MarketDataStore) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Logger.Info("Watching %s every %v", s.livePath, s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *MarketDataStore) poll() {
	info, err := os.Stat(s.livePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && s.Current().Freshness == models.FreshnessLive {
			s.Logger.Warning("Live file %s disappeared, reloading", s.livePath)
			s.Load()
		} else if !errors.Is(err, os.ErrNotExist) {
			s.Logger.Error("Error watching file: %v", err)
		}
		return
	}

	if s.changed(info.ModTime()) {
		s.Load()
	}
}

func (s *MarketDataStore) changed(modTime time.Time) bool {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	return s.lastSeen.IsZero() || modTime.After(s.lastSeen)
}
