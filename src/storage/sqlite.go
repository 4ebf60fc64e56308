package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteJournal struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteJournal(cfg *models.MConfig, log *logger.Logger) *SQLiteJournal {
	return &SQLiteJournal{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) Initialize() error {
	dsn := d.Config.Storage.DBPath

	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return helpers.NewDatabaseError("failed to create journal directory", err)
		}
	}

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open sqlite journal", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("failed to reach sqlite journal", err)
	}

	// Pushes arrive from two gateways at once.
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}
	return d.CleanupOldData()
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS push_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			received_at INTEGER NOT NULL,
			gateway TEXT NOT NULL,
			instrument TEXT,
			bars INTEGER,
			bytes INTEGER,
			remote_addr TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("failed to create push_history", err)
	}
	if _, err := d.DB.Exec(`CREATE INDEX IF NOT EXISTS push_history_received_at ON push_history (received_at)`); err != nil {
		return helpers.NewDatabaseError("failed to index push_history", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) RecordPush(rec models.MPushRecord) error {
	_, err := d.DB.Exec(`
		INSERT INTO push_history (received_at, gateway, instrument, bars, bytes, remote_addr)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ReceivedAt.UTC().UnixMilli(), rec.Gateway, rec.Instrument, rec.Bars, rec.Bytes, rec.RemoteAddr)
	if err != nil {
		return helpers.NewDatabaseError("failed to record push", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) RecentPushes(limit int) ([]models.MPushRecord, error) {
	rows, err := d.DB.Query(`
		SELECT id, received_at, gateway, instrument, bars, bytes, remote_addr
		FROM push_history
		ORDER BY received_at DESC, id DESC
		LIMIT ?
	`, ClampLimit(limit))
	if err != nil {
		return nil, helpers.NewDatabaseError("failed to list pushes", err)
	}
	defer rows.Close()

	return scanPushes(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	res, err := d.DB.Exec("DELETE FROM push_history WHERE received_at < ?", cutoff)
	if err != nil {
		d.Logger.Error("Cleanup push_history error: %v", err)
		return nil
	}
	if n, _ := res.RowsAffected(); n > 0 {
		d.Logger.Info("Removed %d journal entries older than %d days", n, retentionDays)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func scanPushes(rows *sql.Rows) ([]models.MPushRecord, error) {
	out := []models.MPushRecord{}
	for rows.Next() {
		var (
			rec        models.MPushRecord
			receivedAt int64
			instrument sql.NullString
			remoteAddr sql.NullString
		)
		if err := rows.Scan(&rec.ID, &receivedAt, &rec.Gateway, &instrument, &rec.Bars, &rec.Bytes, &remoteAddr); err != nil {
			return nil, helpers.NewDatabaseError("failed to read push", err)
		}
		rec.ReceivedAt = time.UnixMilli(receivedAt).UTC()
		rec.Instrument = instrument.String
		rec.RemoteAddr = remoteAddr.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("failed to iterate pushes", err)
	}
	return out, nil
}
