// package repositories provides the journal's persistence layer.
package repositories

import (
	"database/sql"
	"fmt"
)

// sequenced lists the tables with a companion "<table>_sequence" counter.
var sequenced = map[string]string{
	"sessions": "sessions_sequence",
	"events":   "events_sequence",
}

// NextSequence increments and returns the next sequence number for table inside tx, so the
// counter only advances when the row that uses it is committed.
//
// Sequence numbers order sessions and events by arrival. `journal list` shows the session sequence.
func NextSequence(tx *sql.Tx, table string) (int, error) {
	counter, ok := sequenced[table]
	if !ok {
		return 0, fmt.Errorf("no sequence for table %q", table)
	}

	if _, err := tx.Exec(fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", counter)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := tx.QueryRow(fmt.Sprintf("SELECT value FROM %s WHERE id = 1", counter)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}
	return sequence, nil
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
