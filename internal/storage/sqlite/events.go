package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/airship-atc/pkg/logger"
	_ "modernc.org/sqlite"
)

// ModeChangeRecord is one avoidance mode transition of an airship
type ModeChangeRecord struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	AirshipID   string    `json:"airship_id"`
	RouteID     int       `json:"route_id"`
	Phase       string    `json:"phase"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	SpeedFactor float64   `json:"speed_factor"`
	Timestamp   time.Time `json:"timestamp"`
}

// DockEventRecord is one completed dock
type DockEventRecord struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	AirshipID     string    `json:"airship_id"`
	RouteID       int       `json:"route_id"`
	Site          string    `json:"site"`
	Leg           int       `json:"leg"`
	DidHold       bool      `json:"did_hold"`
	SlowCount     int       `json:"slow_count"`
	ExtraHold     float64   `json:"extra_hold"`
	ExtraSlowdown float64   `json:"extra_slowdown"`
	Wait          float64   `json:"wait"`
	Timestamp     time.Time `json:"timestamp"`
}

// EventStorage is a SQLite-based store for airship mode changes and docks
type EventStorage struct {
	db             *sql.DB
	logger         *logger.Logger
	maxEventsInAPI int
}

// NewEventStorage opens the database at dbPath and creates the event tables
func NewEventStorage(dbPath string, maxEventsInAPI int, log *logger.Logger) (*EventStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "journal mode"},
		{"PRAGMA synchronous=NORMAL", "synchronous mode"},
		{"PRAGMA busy_timeout=5000", "busy timeout"},
		{"PRAGMA cache_size=10000", "cache size"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.what, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &EventStorage{
		db:             db,
		logger:         storageLogger,
		maxEventsInAPI: maxEventsInAPI,
	}, nil
}

// Close closes the database connection
func (s *EventStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *EventStorage) GetDB() *sql.DB {
	return s.db
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS mode_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			airship_id TEXT NOT NULL,
			route_id INTEGER NOT NULL,
			phase TEXT NOT NULL,
			from_mode TEXT NOT NULL,
			to_mode TEXT NOT NULL,
			speed_factor REAL,
			timestamp TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create mode_changes table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS dock_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			airship_id TEXT NOT NULL,
			route_id INTEGER NOT NULL,
			site TEXT NOT NULL,
			leg INTEGER NOT NULL,
			did_hold INTEGER DEFAULT 0,
			slow_count INTEGER DEFAULT 0,
			extra_hold REAL,
			extra_slowdown REAL,
			wait REAL,
			timestamp TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create dock_events table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_mode_changes_airship ON mode_changes(run_id, airship_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_dock_events_airship ON dock_events(run_id, airship_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_dock_events_site ON dock_events(site)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// InsertModeChange records a mode transition
func (s *EventStorage) InsertModeChange(rec *ModeChangeRecord) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO mode_changes (run_id, airship_id, route_id, phase, from_mode, to_mode, speed_factor, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.AirshipID, rec.RouteID, rec.Phase, rec.From, rec.To, rec.SpeedFactor,
		rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.Error("Failed to insert mode change", logger.Error(err),
			logger.String("airship", rec.AirshipID), logger.String("to", rec.To))
		return 0, fmt.Errorf("failed to insert mode change: %w", err)
	}
	return result.LastInsertId()
}

// InsertDockEvent records a completed dock
func (s *EventStorage) InsertDockEvent(rec *DockEventRecord) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO dock_events (run_id, airship_id, route_id, site, leg, did_hold, slow_count, extra_hold, extra_slowdown, wait, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.AirshipID, rec.RouteID, rec.Site, rec.Leg, boolToInt(rec.DidHold), rec.SlowCount,
		rec.ExtraHold, rec.ExtraSlowdown, rec.Wait, rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		s.logger.Error("Failed to insert dock event", logger.Error(err),
			logger.String("airship", rec.AirshipID), logger.String("site", rec.Site))
		return 0, fmt.Errorf("failed to insert dock event: %w", err)
	}
	return result.LastInsertId()
}

// GetModeHistory returns the most recent mode changes of an airship, newest
// first. A limit of zero or less uses the configured API maximum.
func (s *EventStorage) GetModeHistory(runID, airshipID string, limit int) ([]*ModeChangeRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, airship_id, route_id, phase, from_mode, to_mode, speed_factor, timestamp
		FROM mode_changes
		WHERE run_id = ? AND airship_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, runID, airshipID, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query mode history: %w", err)
	}
	defer rows.Close()

	var records []*ModeChangeRecord
	for rows.Next() {
		var rec ModeChangeRecord
		var speed sql.NullFloat64
		var ts string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.AirshipID, &rec.RouteID, &rec.Phase,
			&rec.From, &rec.To, &speed, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan mode change row: %w", err)
		}
		if speed.Valid {
			rec.SpeedFactor = speed.Float64
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// GetDockHistory returns the most recent docks of an airship, newest first
func (s *EventStorage) GetDockHistory(runID, airshipID string, limit int) ([]*DockEventRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, airship_id, route_id, site, leg, did_hold, slow_count, extra_hold, extra_slowdown, wait, timestamp
		FROM dock_events
		WHERE run_id = ? AND airship_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, runID, airshipID, s.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query dock history: %w", err)
	}
	defer rows.Close()

	var records []*DockEventRecord
	for rows.Next() {
		var rec DockEventRecord
		var didHold int
		var extraHold, extraSlow, wait sql.NullFloat64
		var ts string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.AirshipID, &rec.RouteID, &rec.Site, &rec.Leg,
			&didHold, &rec.SlowCount, &extraHold, &extraSlow, &wait, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan dock event row: %w", err)
		}
		rec.DidHold = didHold != 0
		rec.ExtraHold = extraHold.Float64
		rec.ExtraSlowdown = extraSlow.Float64
		rec.Wait = wait.Float64
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountDocks returns how many docks were recorded at site during a run
func (s *EventStorage) CountDocks(runID, site string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM dock_events WHERE run_id = ? AND site = ?`, runID, site).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count docks: %w", err)
	}
	return n, nil
}

// limit caps n at the API maximum; -1 means no limit to SQLite
func (s *EventStorage) limit(n int) int {
	if s.maxEventsInAPI <= 0 {
		if n <= 0 {
			return -1
		}
		return n
	}
	if n <= 0 || n > s.maxEventsInAPI {
		return s.maxEventsInAPI
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
