package conversation

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
	_ "modernc.org/sqlite"
)

// searchIndex is an optional keyword-search accelerant over historical
// turns, backed by SQLite FTS-free LIKE matching (kept simple: this is
// an index, not a second source of truth — Open Question resolution 1).
type searchIndex struct {
	db     *sql.DB
	logger *slog.Logger
}

func openSearchIndex(path string, logger *slog.Logger) (*searchIndex, error) {
	if path == "" {
		return nil, nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite search index: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS turns (
	user_id    TEXT NOT NULL,
	thread_id  TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	ts         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_user ON turns(user_id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite search index schema: %w", err)
	}

	return &searchIndex{db: db, logger: logger}, nil
}

func (idx *searchIndex) record(userID, threadID string, msg models.Message) error {
	if idx == nil {
		return nil
	}
	_, err := idx.db.Exec(
		`INSERT INTO turns (user_id, thread_id, role, content, ts) VALUES (?, ?, ?, ?, ?)`,
		userID, threadID, string(msg.Role), msg.Content, msg.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	)
	return err
}

func (idx *searchIndex) deleteThread(userID, threadID string) error {
	if idx == nil {
		return nil
	}
	_, err := idx.db.Exec(`DELETE FROM turns WHERE user_id = ? AND thread_id = ?`, userID, threadID)
	return err
}

func (idx *searchIndex) search(query, userID string, limit int) ([]HistoryHit, error) {
	like := "%" + strings.ToLower(query) + "%"

	sqlQuery := `SELECT user_id, thread_id, role, content, ts FROM turns WHERE lower(content) LIKE ?`
	args := []any{like}
	if userID != "" {
		sqlQuery += ` AND user_id = ?`
		args = append(args, userID)
	}
	sqlQuery += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := idx.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []HistoryHit
	for rows.Next() {
		var h HistoryHit
		var role, ts string
		if err := rows.Scan(&h.UserID, &h.ThreadID, &role, &h.Content, &ts); err != nil {
			return nil, err
		}
		h.Role = models.Role(role)
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			h.Timestamp = parsed
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
