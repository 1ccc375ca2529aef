package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upBackfillStatistics, downBackfillStatistics)
}

// upBackfillStatistics creates an empty statistics row for every resume
// that has none.
func upBackfillStatistics(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT r.id FROM resumes r
		LEFT JOIN resume_statistics s ON s.resume_id = r.id
		WHERE s.id IS NULL`)
	if err != nil {
		return fmt.Errorf("getting resumes without statistics: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}

	now := time.Now()
	insert := rebind(`INSERT INTO resume_statistics (id, created_at, updated_at, resume_id, views, downloads) VALUES (?, ?, ?, ?, 0, 0)`)
	for _, resumeID := range ids {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("creating uuid: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, id.String(), now, now, resumeID); err != nil {
			return fmt.Errorf("inserting statistics for resume %s: %w", resumeID, err)
		}
	}
	return nil
}

func downBackfillStatistics(ctx context.Context, tx *sql.Tx) error {
	return nil
}
