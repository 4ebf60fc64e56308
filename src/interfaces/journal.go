package interfaces

import "market-relay/src/models"

// -----------------------------------------------------------------------------
// IPushJournal records accepted pushes. It never stores the pushed bars.
// -----------------------------------------------------------------------------

type IPushJournal interface {

	// Initialize opens the backend and creates the journal table if needed.
	Initialize() error

	// RecordPush appends one entry.
	RecordPush(rec models.MPushRecord) error

	// RecentPushes returns up to limit entries, newest first.
	RecentPushes(limit int) ([]models.MPushRecord, error)

	// Close the underlying connection
	Close() error
}
