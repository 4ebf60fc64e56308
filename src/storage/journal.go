package storage

import (
	"fmt"

	"market-relay/src/interfaces"
	"market-relay/src/logger"
	"market-relay/src/models"
)

const (
	DefaultRecentPushes = 20
	MaxRecentPushes     = 500
)

// NewPushJournal returns the journal backend selected by cfg.Storage.DBType.
// The backend is not yet initialized.
func NewPushJournal(cfg *models.MConfig, log *logger.Logger) (interfaces.IPushJournal, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteJournal(cfg, log), nil
	case "postgres":
		return NewPostgresJournal(cfg, log), nil
	case "none":
		return NopJournal{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}
}

// ClampLimit maps a requested listing size onto [1, MaxRecentPushes].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRecentPushes
	}
	if limit > MaxRecentPushes {
		return MaxRecentPushes
	}
	return limit
}

// -----------------------------------------------------------------------------

// NopJournal discards every record.
type NopJournal struct{}

func (NopJournal) Initialize() error { return nil }

func (NopJournal) RecordPush(models.MPushRecord) error { return nil }

func (NopJournal) RecentPushes(int) ([]models.MPushRecord, error) {
	return []models.MPushRecord{}, nil
}

func (NopJournal) Close() error { return nil }
