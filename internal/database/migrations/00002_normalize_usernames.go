package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/justsurfingit/resume-builder/pkg/resume"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upNormalizeUsernames, downNormalizeUsernames)
}

// upNormalizeUsernames rewrites usernames into their canonical form. A
// username whose canonical form is already taken keeps its value.
func upNormalizeUsernames(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `SELECT id, username FROM users`)
	if err != nil {
		return fmt.Errorf("getting users: %w", err)
	}
	taken := make(map[string]bool)
	type pending struct{ id, from, to string }
	var changes []pending
	for rows.Next() {
		var id, username string
		if err := rows.Scan(&id, &username); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		taken[username] = true
		if normalized := resume.ToUsername(username); normalized != username && normalized != "" {
			changes = append(changes, pending{id: id, from: username, to: normalized})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}

	update := rebind(`UPDATE users SET username = ?, display_username = ? WHERE id = ?`)
	for _, c := range changes {
		if taken[c.to] {
			continue
		}
		if _, err := tx.ExecContext(ctx, update, c.to, c.from, c.id); err != nil {
			return fmt.Errorf("updating user %s: %w", c.id, err)
		}
		taken[c.to] = true
		delete(taken, c.from)
	}
	return nil
}

func downNormalizeUsernames(ctx context.Context, tx *sql.Tx) error {
	return nil
}
