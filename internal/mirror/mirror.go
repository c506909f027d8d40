// Package mirror replays a loaded match database into Postgres so
// fleet-wide analytics can query many matches at once. The SQLite store
// stays the source of truth; mirroring is read-only against it.
package mirror

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const insertBatchSize = 500

// Mirror pushes match data into a Postgres database.
type Mirror struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to Postgres at dsn.
func New(ctx context.Context, dsn string, logger *zap.Logger) (*Mirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Mirror{pool: pool, log: logger}, nil
}

// Close releases the connection pool.
func (m *Mirror) Close() {
	m.pool.Close()
}

// tableSpec describes one mirrored table: surrogate keys are not copied,
// Postgres assigns its own.
type tableSpec struct {
	name string
	cols []string
}

var mirrorTables = []tableSpec{
	{"matches", []string{"match_id", "source_file", "map_name", "game_type", "start_time", "end_time", "duration_seconds"}},
	{"players", []string{"match_id", "player_name", "team_id", "god_name", "role"}},
	{"player_stats", []string{"match_id", "player_name", "team_id", "kills", "deaths", "assists", "damage_dealt", "damage_taken", "healing_done", "damage_mitigated", "gold_earned", "experience_earned"}},
	{"combat_events", []string{"match_id", "event_time", "event_type", "source_entity", "target_entity", "ability_name", "damage_amount", "damage_mitigated", "location_x", "location_y"}},
	{"timeline_events", []string{"match_id", "event_time", "game_time_seconds", "event_type", "event_category", "importance", "entity_name", "target_name", "team_id", "location_x", "location_y", "value", "event_description"}},
	{"item_events", []string{"match_id", "event_time", "event_type", "player_name", "item_name", "cost", "location_x", "location_y"}},
	{"reward_events", []string{"match_id", "event_time", "event_type", "entity_name", "reward_amount", "source_type", "location_x", "location_y"}},
	{"player_events", []string{"match_id", "event_time", "event_type", "player_name", "value", "team_id"}},
}

var createStatements = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		source_file TEXT,
		map_name TEXT,
		game_type TEXT,
		start_time TEXT,
		end_time TEXT,
		duration_seconds BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS players (
		player_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		team_id BIGINT,
		god_name TEXT,
		role TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS player_stats (
		stat_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		player_name TEXT NOT NULL,
		team_id BIGINT,
		kills BIGINT NOT NULL DEFAULT 0,
		deaths BIGINT NOT NULL DEFAULT 0,
		assists BIGINT NOT NULL DEFAULT 0,
		damage_dealt BIGINT NOT NULL DEFAULT 0,
		damage_taken BIGINT NOT NULL DEFAULT 0,
		healing_done BIGINT NOT NULL DEFAULT 0,
		damage_mitigated BIGINT NOT NULL DEFAULT 0,
		gold_earned BIGINT NOT NULL DEFAULT 0,
		experience_earned BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS combat_events (
		event_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		source_entity TEXT,
		target_entity TEXT,
		ability_name TEXT,
		damage_amount BIGINT,
		damage_mitigated BIGINT,
		location_x DOUBLE PRECISION,
		location_y DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		event_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		event_time TEXT,
		game_time_seconds DOUBLE PRECISION,
		event_type TEXT,
		event_category TEXT,
		importance BIGINT,
		entity_name TEXT,
		target_name TEXT,
		team_id BIGINT,
		location_x DOUBLE PRECISION,
		location_y DOUBLE PRECISION,
		value DOUBLE PRECISION,
		event_description TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS item_events (
		event_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		player_name TEXT,
		item_name TEXT,
		cost BIGINT,
		location_x DOUBLE PRECISION,
		location_y DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS reward_events (
		event_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		entity_name TEXT,
		reward_amount BIGINT,
		source_type TEXT,
		location_x DOUBLE PRECISION,
		location_y DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS player_events (
		event_id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL,
		event_time TEXT,
		event_type TEXT,
		player_name TEXT,
		value TEXT,
		team_id BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_combat_events_match_time ON combat_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_timeline_events_match_time ON timeline_events(match_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_reward_events_match_time ON reward_events(match_id, event_time)`,
}

// EnsureSchema creates the mirror tables if they don't exist.
func (m *Mirror) EnsureSchema(ctx context.Context) error {
	for _, stmt := range createStatements {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure mirror schema: %w", err)
		}
	}
	return nil
}

// Push replays one match from the local store into Postgres. Existing
// mirror rows for the match are cleared first, so pushing is idempotent.
// The clear and the re-insert share one transaction, so a reader of the
// mirror never sees the match cleared but unfilled.
func (m *Mirror) Push(ctx context.Context, src *sql.DB, matchID string) error {
	if err := m.EnsureSchema(ctx); err != nil {
		return err
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin push: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := len(mirrorTables) - 1; i >= 0; i-- {
		spec := mirrorTables[i]
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE match_id = $1`, spec.name), matchID); err != nil {
			return fmt.Errorf("clear mirror %s: %w", spec.name, err)
		}
	}

	for _, spec := range mirrorTables {
		n, err := m.copyTable(ctx, tx, src, matchID, spec)
		if err != nil {
			return err
		}
		m.log.Info("mirrored table",
			zap.String("table", spec.name),
			zap.String("match_id", matchID),
			zap.Int("rows", n))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit push: %w", err)
	}
	return nil
}

func (m *Mirror) copyTable(ctx context.Context, tx pgx.Tx, src *sql.DB, matchID string, spec tableSpec) (int, error) {
	cols := ""
	placeholders := ""
	for i, c := range spec.cols {
		if i > 0 {
			cols += ", "
			placeholders += ", "
		}
		cols += c
		placeholders += fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, spec.name, cols, placeholders)

	// rowid order reproduces file order for the event tables.
	rows, err := src.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE match_id = ? ORDER BY rowid`, cols, spec.name), matchID)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", spec.name, err)
	}
	defer rows.Close()

	total := 0
	batch := &pgx.Batch{}
	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert into mirror %s: %w", spec.name, err)
		}
		batch = &pgx.Batch{}
		return nil
	}

	for rows.Next() {
		values := make([]any, len(spec.cols))
		ptrs := make([]any, len(spec.cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return total, fmt.Errorf("scan %s: %w", spec.name, err)
		}
		batch.Queue(insertSQL, values...)
		total++
		if batch.Len() >= insertBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return total, fmt.Errorf("iterate %s: %w", spec.name, err)
	}
	return total, flush()
}
