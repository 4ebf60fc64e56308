package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"market-relay/src/helpers"
	"market-relay/src/logger"
	"market-relay/src/models"

	_ "github.com/lib/pq"
)

var unsafeSchemaChars = regexp.MustCompile(`[^a-z0-9_]`)

// -----------------------------------------------------------------------------

type PostgresJournal struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewPostgresJournal keeps the journal in a schema named after the
// application, so several relays can share one database.
func NewPostgresJournal(cfg *models.MConfig, log *logger.Logger) *PostgresJournal {
	return &PostgresJournal{
		Config: cfg,
		Schema: SchemaName(cfg.Name),
		Logger: log,
	}
}

// SchemaName lowercases name and replaces anything outside [a-z0-9_].
func SchemaName(name string) string {
	s := unsafeSchemaChars.ReplaceAllString(strings.ToLower(name), "_")
	if s == "" {
		return "market_relay"
	}
	return s
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("failed to open postgres journal", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("failed to reach postgres journal", err)
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	if err := d.createTables(); err != nil {
		return err
	}
	if err := d.CleanupOldData(); err != nil {
		return err
	}

	d.Logger.Info("PostgresJournal initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) table() string {
	return fmt.Sprintf(`"%s"."push_history"`, d.Schema)
}

func (d *PostgresJournal) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			received_at BIGINT NOT NULL,
			gateway TEXT NOT NULL,
			instrument TEXT,
			bars INTEGER,
			bytes INTEGER,
			remote_addr TEXT
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("failed to create push_history", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) RecordPush(rec models.MPushRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (received_at, gateway, instrument, bars, bytes, remote_addr)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, d.table())
	if _, err := d.DB.Exec(query, rec.ReceivedAt.UTC().UnixMilli(), rec.Gateway, rec.Instrument, rec.Bars, rec.Bytes, rec.RemoteAddr); err != nil {
		return helpers.NewDatabaseError("failed to record push", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) RecentPushes(limit int) ([]models.MPushRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, received_at, gateway, instrument, bars, bytes, remote_addr
		FROM %s
		ORDER BY received_at DESC, id DESC
		LIMIT $1
	`, d.table())
	rows, err := d.DB.Query(query, ClampLimit(limit))
	if err != nil {
		return nil, helpers.NewDatabaseError("failed to list pushes", err)
	}
	defer rows.Close()

	return scanPushes(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) CleanupOldData() error {
	retentionDays := d.Config.Storage.RetentionDays
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).UnixMilli()

	if _, err := d.DB.Exec(fmt.Sprintf("DELETE FROM %s WHERE received_at < $1", d.table()), cutoff); err != nil {
		d.Logger.Error("Cleanup push_history error: %v", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
