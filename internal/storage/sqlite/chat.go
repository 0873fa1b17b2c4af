package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/airship-atc/pkg/logger"
)

// ChatRecord is one line said by a pilot
type ChatRecord struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	AirshipID string    `json:"airship_id"`
	RouteID   int       `json:"route_id"`
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// ChatStorage handles storage of pilot chat lines. It shares the event
// database connection.
type ChatStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewChatStorage creates the chat table on db
func NewChatStorage(db *sql.DB, log *logger.Logger) (*ChatStorage, error) {
	s := &ChatStorage{
		db:     db,
		logger: log.Named("sqlite-chat"),
	}
	if err := s.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize chat storage: %w", err)
	}
	return s, nil
}

func (s *ChatStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			airship_id TEXT NOT NULL,
			route_id INTEGER NOT NULL,
			phrase_key TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create chat_lines table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_lines_airship ON chat_lines(run_id, airship_id, id)`)
	if err != nil {
		return fmt.Errorf("failed to create chat_lines index: %w", err)
	}
	return nil
}

// StoreChatLine stores a chat line and returns its id
func (s *ChatStorage) StoreChatLine(rec *ChatRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO chat_lines (run_id, airship_id, route_id, phrase_key, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.AirshipID,
		rec.RouteID,
		rec.Key,
		rec.Text,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert chat line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	return id, nil
}

// GetChatLines returns the latest chat lines of an airship, newest first
func (s *ChatStorage) GetChatLines(runID, airshipID string, limit, offset int) ([]*ChatRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, airship_id, route_id, phrase_key, content, created_at
		FROM chat_lines
		WHERE run_id = ? AND airship_id = ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		runID, airshipID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat lines: %w", err)
	}
	defer rows.Close()
	return scanChat(rows)
}

// GetRecentChat returns the latest chat lines of a run across all airships
func (s *ChatStorage) GetRecentChat(runID string, limit int) ([]*ChatRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, airship_id, route_id, phrase_key, content, created_at
		FROM chat_lines
		WHERE run_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent chat: %w", err)
	}
	defer rows.Close()
	return scanChat(rows)
}

func scanChat(rows *sql.Rows) ([]*ChatRecord, error) {
	var records []*ChatRecord
	for rows.Next() {
		var rec ChatRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.AirshipID, &rec.RouteID, &rec.Key, &rec.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat line: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		rec.CreatedAt = t
		records = append(records, &rec)
	}
	return records, rows.Err()
}
