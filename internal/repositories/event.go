package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
)

// EventRepository persists journaled stream events.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository with the given database connection
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts a [models.JournalEvent] with generated ID and sequence
func (r *EventRepository) Append(e *models.JournalEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(tx, "events")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}

		id := shared.GenerateID()
		query := `
			INSERT INTO events (id, sequence, session_id, kind, entry_id, payload, origin, received_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`

		_, err = tx.Exec(query,
			id,
			sequence,
			e.SessionID,
			e.Kind.String(),
			e.EntryID,
			string(e.Payload),
			e.Origin,
			e.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}

		e.ID = id
		e.Sequence = sequence
		return nil
	})
}

// List retrieves events in arrival order matching the given criteria.
//
// Supported keys: "session_id" (string), "entry_id" (int64), "kind" (models.EventKind),
// "origin" (string), "limit" (int, keeps the most recent n).
func (r *EventRepository) List(criteria map[string]any) ([]*models.JournalEvent, error) {
	query := `
		SELECT id, sequence, session_id, kind, entry_id, payload, origin, received_at
		FROM events
		WHERE 1 = 1
	`

	args := []any{}

	if sessionID, ok := criteria["session_id"].(string); ok && sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}

	if entryID, ok := criteria["entry_id"].(int64); ok && entryID > 0 {
		query += " AND entry_id = ?"
		args = append(args, entryID)
	}

	if kind, ok := criteria["kind"].(models.EventKind); ok {
		query += " AND kind = ?"
		args = append(args, kind.String())
	}

	if origin, ok := criteria["origin"].(string); ok && origin != "" {
		query += " AND origin = ?"
		args = append(args, origin)
	}

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query = "SELECT * FROM (" + query + " ORDER BY sequence DESC LIMIT ?)"
		args = append(args, limit)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.JournalEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

// Replay decodes every event of a session in arrival order.
func (r *EventRepository) Replay(sessionID string) ([]models.Event, error) {
	records, err := r.List(map[string]any{"session_id": sessionID})
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(records))
	for _, rec := range records {
		ev, err := rec.Event()
		if err != nil {
			return nil, fmt.Errorf("event #%d: %w", rec.Sequence, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Count returns the number of stored events.
func (r *EventRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// Prune keeps the newest retain events and deletes the rest. It returns the number deleted.
func (r *EventRepository) Prune(retain int) (int64, error) {
	if retain <= 0 {
		return 0, nil
	}

	query := `
		DELETE FROM events
		WHERE sequence <= (
			SELECT sequence FROM events ORDER BY sequence DESC LIMIT 1 OFFSET ?
		)
	`

	result, err := r.db.Exec(query, retain)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}

func scanEvent(row scanner) (*models.JournalEvent, error) {
	var (
		e       models.JournalEvent
		kind    string
		payload string
	)

	err := row.Scan(&e.ID, &e.Sequence, &e.SessionID, &kind, &e.EntryID, &payload, &e.Origin, &e.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}

	k, err := models.ParseEventKindName(kind)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", e.ID, err)
	}
	e.Kind = k
	e.Payload = []byte(payload)

	return &e, nil
}
