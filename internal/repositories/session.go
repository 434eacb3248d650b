package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
)

// SessionRepository persists stream sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new [models.Session] with generated ID and sequence
func (r *SessionRepository) Create(s *models.Session) error {
	return withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(tx, "sessions")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		id := shared.GenerateID()
		query := `
			INSERT INTO sessions (id, sequence, base_url, transport, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`

		if _, err := tx.Exec(query, id, sequence, s.BaseURL, s.Transport, s.StartedAt, s.EndedAt); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}

		s.ID = id
		s.Sequence = sequence
		return nil
	})
}

// End records the end time of an open session
func (r *SessionRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found or already ended: %s", id)
	}

	return nil
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `
		SELECT id, sequence, base_url, transport, started_at, ended_at
		FROM sessions
		WHERE id = ?
	`

	s, err := scanSession(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return s, err
}

// Latest retrieves the most recently started session
func (r *SessionRepository) Latest() (*models.Session, error) {
	query := `
		SELECT id, sequence, base_url, transport, started_at, ended_at
		FROM sessions
		ORDER BY sequence DESC
		LIMIT 1
	`

	s, err := scanSession(r.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no sessions recorded")
	}
	return s, err
}

// List retrieves sessions newest first. A limit of zero returns all of them.
func (r *SessionRepository) List(limit int) ([]*models.Session, error) {
	query := `
		SELECT id, sequence, base_url, transport, started_at, ended_at
		FROM sessions
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

// Delete removes a session and, through the foreign key, its events
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found: %s", id)
	}

	return nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		s       models.Session
		endedAt sql.NullTime
	)

	err := row.Scan(&s.ID, &s.Sequence, &s.BaseURL, &s.Transport, &s.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	return &s, nil
}
