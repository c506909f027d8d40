package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Table names the eight target tables.
type Table string

const (
	TableMatches        Table = "matches"
	TablePlayers        Table = "players"
	TablePlayerStats    Table = "player_stats"
	TableCombatEvents   Table = "combat_events"
	TableTimelineEvents Table = "timeline_events"
	TableItemEvents     Table = "item_events"
	TableRewardEvents   Table = "reward_events"
	TablePlayerEvents   Table = "player_events"
)

// AllTables lists every table in dependency order: matches first, so a
// forced clear (which iterates in reverse) and any future FK enforcement
// both behave.
var AllTables = []Table{
	TableMatches,
	TablePlayers,
	TablePlayerStats,
	TableCombatEvents,
	TableTimelineEvents,
	TableItemEvents,
	TableRewardEvents,
	TablePlayerEvents,
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		source_file TEXT,
		map_name TEXT,
		game_type TEXT,
		start_time TEXT,
		end_time TEXT,
		duration_seconds INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		player_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		team_id INTEGER,
		god_name TEXT,
		role TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS player_stats (
		stat_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		team_id INTEGER,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		assists INTEGER NOT NULL DEFAULT 0,
		damage_dealt INTEGER NOT NULL DEFAULT 0,
		damage_taken INTEGER NOT NULL DEFAULT 0,
		healing_done INTEGER NOT NULL DEFAULT 0,
		damage_mitigated INTEGER NOT NULL DEFAULT 0,
		gold_earned INTEGER NOT NULL DEFAULT 0,
		experience_earned INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS combat_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		source_entity TEXT,
		target_entity TEXT,
		ability_name TEXT,
		damage_amount INTEGER,
		damage_mitigated INTEGER,
		location_x REAL,
		location_y REAL
	)`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		event_time TEXT,
		game_time_seconds REAL,
		event_type TEXT,
		event_category TEXT,
		importance INTEGER,
		entity_name TEXT,
		target_name TEXT,
		team_id INTEGER,
		location_x REAL,
		location_y REAL,
		value REAL,
		event_description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS item_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		player_name TEXT,
		item_name TEXT,
		cost INTEGER,
		location_x REAL,
		location_y REAL
	)`,
	`CREATE TABLE IF NOT EXISTS reward_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		entity_name TEXT,
		reward_amount INTEGER,
		source_type TEXT,
		location_x REAL,
		location_y REAL
	)`,
	`CREATE TABLE IF NOT EXISTS player_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		player_name TEXT,
		value TEXT,
		team_id INTEGER
	)`,
	// The (match_id, event_time) indexes back the analytical queries the
	// downstream agent issues against each event table.
	`CREATE INDEX IF NOT EXISTS idx_combat_events_match_time ON combat_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_timeline_events_match_time ON timeline_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_item_events_match_time ON item_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_reward_events_match_time ON reward_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_player_events_match_time ON player_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_players_match ON players(match_id)`,
	`CREATE INDEX IF NOT EXISTS idx_player_stats_match ON player_stats(match_id)`,
}

// EnsureSchema creates the tables and indexes if they don't exist. Safe to
// call on every run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ClearMatch deletes every row belonging to matchID across all tables in a
// single transaction, so an external reader never observes a half-cleared
// match.
func (s *Store) ClearMatch(ctx context.Context, matchID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}

	// Dependents first, matches last.
	for i := len(AllTables) - 1; i >= 0; i-- {
		table := AllTables[i]
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE match_id = ?`, table), matchID); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear: %w", err)
	}
	s.log.Info("cleared existing match data", zap.String("match_id", matchID))
	return nil
}

// FinalizeMatch fills in the fields of the match row that are only known
// once the whole file has been read.
func (s *Store) FinalizeMatch(ctx context.Context, matchID string, mapName, gameType, startTime, endTime *string, durationSeconds *int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE matches
		SET map_name = ?, game_type = ?, start_time = ?, end_time = ?, duration_seconds = ?
		WHERE match_id = ?
	`, mapName, gameType, startTime, endTime, durationSeconds, matchID)
	if err != nil {
		return fmt.Errorf("finalize match %s: %w", matchID, err)
	}
	return nil
}
