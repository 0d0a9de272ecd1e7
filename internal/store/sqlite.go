package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/trackit/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Load reads the scan state for an account. An account with no persisted
// state gets the default empty state.
func (s *SQLiteStore) Load(ctx context.Context, accountID string) (model.ScanState, error) {
	state := model.NewScanState()

	var row struct {
		LastUID  int64        `db:"last_uid"`
		LastScan sql.NullTime `db:"last_scan"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT last_uid, last_scan FROM scan_state WHERE account_id = ?", accountID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("loading scan state for %s: %w", accountID, err)
	}

	state.Watermark = uint32(row.LastUID)
	if row.LastScan.Valid {
		state.LastScan = row.LastScan.Time
	}

	var seen []string
	err = s.db.SelectContext(ctx, &seen,
		"SELECT tracking_id FROM seen_ids WHERE account_id = ?", accountID,
	)
	if err != nil {
		return state, fmt.Errorf("loading seen ids for %s: %w", accountID, err)
	}
	for _, id := range seen {
		state.SeenIDs[id] = struct{}{}
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT supplier, tracking_id, email_uid, message_id, subject, sender, date, snippet, url
		FROM matches WHERE account_id = ? ORDER BY position ASC`, accountID,
	)
	if err != nil {
		return state, fmt.Errorf("loading match cache for %s: %w", accountID, err)
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return state, err
		}
		state.Recent = append(state.Recent, m)
	}

	return state, rows.Err()
}

// Save persists the full scan state for an account in one transaction:
// the watermark row is upserted, the seen set is extended, and the match
// cache is replaced in its current order.
func (s *SQLiteStore) Save(ctx context.Context, accountID string, state model.ScanState) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var lastScan interface{}
	if !state.LastScan.IsZero() {
		lastScan = state.LastScan.UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO scan_state (account_id, last_uid, last_scan, updated_at)
		VALUES (?, ?, ?, ?)`,
		accountID, int64(state.Watermark), lastScan, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving scan state for %s: %w", accountID, err)
	}

	seenStmt, err := tx.PreparexContext(ctx,
		"INSERT OR IGNORE INTO seen_ids (account_id, tracking_id) VALUES (?, ?)",
	)
	if err != nil {
		return fmt.Errorf("preparing seen-id insert: %w", err)
	}
	defer seenStmt.Close()

	for id := range state.SeenIDs {
		if _, err := seenStmt.ExecContext(ctx, accountID, id); err != nil {
			return fmt.Errorf("saving seen id %q: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM matches WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("clearing match cache for %s: %w", accountID, err)
	}

	matchStmt, err := tx.PreparexContext(ctx, `
		INSERT INTO matches (
			id, account_id, supplier, tracking_id, email_uid,
			message_id, subject, sender, date, snippet, url, position
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing match insert: %w", err)
	}
	defer matchStmt.Close()

	for i, m := range state.Recent {
		var date interface{}
		if !m.Date.IsZero() {
			date = m.Date.UTC()
		}
		_, err := matchStmt.ExecContext(ctx,
			uuid.New().String(), accountID, m.Supplier, m.TrackingID, int64(m.EmailUID),
			m.MessageID, m.Subject, m.Sender, date, m.Snippet, m.URL, i,
		)
		if err != nil {
			return fmt.Errorf("saving match %s/%s: %w", m.Supplier, m.TrackingID, err)
		}
	}

	return tx.Commit()
}

// scanMatch scans a match row from a sqlx.Rows result set.
func scanMatch(rows *sqlx.Rows) (model.TrackingMatch, error) {
	var (
		m        model.TrackingMatch
		emailUID int64
		date     sql.NullTime
	)

	err := rows.Scan(
		&m.Supplier, &m.TrackingID, &emailUID,
		&m.MessageID, &m.Subject, &m.Sender, &date, &m.Snippet, &m.URL,
	)
	if err != nil {
		return model.TrackingMatch{}, fmt.Errorf("scanning match row: %w", err)
	}

	m.EmailUID = uint32(emailUID)
	if date.Valid {
		m.Date = date.Time
	}

	return m, nil
}
