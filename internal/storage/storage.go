// Package storage provides SQLite-backed persistence for market snapshots.
//
// The snapshot table is append-only: rows are never updated or deleted by the
// scanner, and duplicate (platform, market_id, ts) keys are permitted. Readers
// therefore never observe partial rows, only a possibly-stale view relative to
// an in-flight append.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oddsflow/scanner/internal/models"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/oddsflow/scanner.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "oddsflow", "scanner.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id            TEXT PRIMARY KEY,
			platform      TEXT NOT NULL,
			market_id     TEXT NOT NULL,
			title         TEXT NOT NULL,
			category      TEXT,
			ts            INTEGER NOT NULL,
			p             REAL NOT NULL,
			flow          REAL NOT NULL,
			depth         REAL NOT NULL,
			bid           REAL,
			ask           REAL,
			mid           REAL,
			volume_24h    REAL,
			open_interest REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_market_ts ON snapshots(platform, market_id, ts)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const snapshotCols = `id, platform, market_id, title, category, ts, p, flow, depth,
	bid, ask, mid, volume_24h, open_interest`

// Append inserts one snapshot. It never deduplicates: repeated observations of
// the same market at the same tick produce distinct rows.
func (s *Storage) Append(snap *models.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	_, err := s.db.Exec(`
		INSERT INTO snapshots
			(id, platform, market_id, title, category, ts, p, flow, depth,
			 bid, ask, mid, volume_24h, open_interest)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.ID, snap.Platform, snap.MarketID, snap.Title, nullString(snap.Category),
		snap.Timestamp.UnixNano(), snap.P, snap.Flow, snap.Depth,
		nullFloat(snap.Bid), nullFloat(snap.Ask), nullFloat(snap.Mid),
		nullFloat(snap.Volume24h), nullFloat(snap.OpenInterest),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// DistinctMarkets returns every (platform, market_id) pair that has at least
// one stored snapshot.
func (s *Storage) DistinctMarkets() ([]models.MarketKey, error) {
	rows, err := s.db.Query(`SELECT DISTINCT platform, market_id FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct markets: %w", err)
	}
	defer rows.Close()

	var keys []models.MarketKey
	for rows.Next() {
		var k models.MarketKey
		if err := rows.Scan(&k.Platform, &k.MarketID); err != nil {
			return nil, fmt.Errorf("failed to scan market key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Latest returns the most recent snapshot for a market, or nil when the
// market has no history.
func (s *Storage) Latest(platform, marketID string) (*models.Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT `+snapshotCols+` FROM snapshots
		WHERE platform = ? AND market_id = ?
		ORDER BY ts DESC LIMIT 1`, platform, marketID)

	snap, err := scanSnapshot(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// FlowHistory returns up to n flow values for a market, newest first.
func (s *Storage) FlowHistory(platform, marketID string, n int) ([]float64, error) {
	rows, err := s.db.Query(`
		SELECT flow FROM snapshots
		WHERE platform = ? AND market_id = ?
		ORDER BY ts DESC LIMIT ?`, platform, marketID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query flow history: %w", err)
	}
	defer rows.Close()

	var flows []float64
	for rows.Next() {
		var f float64
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}

// History returns up to n full snapshots for a market, newest first.
func (s *Storage) History(platform, marketID string, n int) ([]models.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT `+snapshotCols+` FROM snapshots
		WHERE platform = ? AND market_id = ?
		ORDER BY ts DESC LIMIT ?`, platform, marketID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var snaps []models.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// SnapshotCount returns the total number of stored snapshots.
func (s *Storage) SnapshotCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

func scanSnapshot(scan func(dest ...any) error) (*models.Snapshot, error) {
	var snap models.Snapshot
	var category sql.NullString
	var tsNano int64
	var bid, ask, mid, vol, oi sql.NullFloat64

	err := scan(
		&snap.ID, &snap.Platform, &snap.MarketID, &snap.Title, &category,
		&tsNano, &snap.P, &snap.Flow, &snap.Depth,
		&bid, &ask, &mid, &vol, &oi,
	)
	if err != nil {
		return nil, err
	}

	snap.Category = category.String
	snap.Timestamp = time.Unix(0, tsNano)
	snap.Bid = floatPtr(bid)
	snap.Ask = floatPtr(ask)
	snap.Mid = floatPtr(mid)
	snap.Volume24h = floatPtr(vol)
	snap.OpenInterest = floatPtr(oi)
	return &snap, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
