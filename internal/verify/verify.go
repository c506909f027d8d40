// Package verify inspects a loaded match database so external tooling can
// assert that ingestion actually populated every table.
package verify

import (
	"context"
	"database/sql"
	"fmt"

	"smitelog/internal/store"
)

// Report holds per-table row counts for one match.
type Report struct {
	MatchID string
	Counts  map[store.Table]int
}

// EmptyTables lists every table with zero rows for the match, the matches
// table included: a missing match row shows up here as an empty matches
// table.
func (r *Report) EmptyTables() []store.Table {
	var empty []store.Table
	for _, t := range store.AllTables {
		if r.Counts[t] == 0 {
			empty = append(empty, t)
		}
	}
	return empty
}

// Matches lists every match id present in the database.
func Matches(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT match_id FROM matches ORDER BY match_id`)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count builds a Report for one match.
func Count(ctx context.Context, db *sql.DB, matchID string) (*Report, error) {
	report := &Report{MatchID: matchID, Counts: make(map[store.Table]int)}
	for _, table := range store.AllTables {
		var n int
		err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+string(table)+` WHERE match_id = ?`, matchID).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		report.Counts[table] = n
	}
	return report, nil
}
