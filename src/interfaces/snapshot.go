package interfaces

import (
	"market-relay/src/models"
	"market-relay/src/store"
)

// -----------------------------------------------------------------------------
// ISnapshotStore is the read side the query service and health checks use.
// -----------------------------------------------------------------------------

type ISnapshotStore interface {
	AvailableTickers() ([]string, error)
	Query(req models.MQueryRequest) ([]models.MCanonicalBar, models.MFreshness, error)

	// Current returns the published dataset, for status reporting.
	Current() *store.Dataset
	Metrics() models.MStoreMetrics

	// Subscribe registers a non-blocking callback run after every reload.
	Subscribe(fn func(store.Event))
}

// -----------------------------------------------------------------------------
// ISnapshotWriter persists a snapshot received by an ingestion gateway.
// -----------------------------------------------------------------------------

type ISnapshotWriter interface {
	// Write replaces the live snapshot atomically and returns the bytes written.
	Write(snap models.MSnapshot) (int, error)
}
