package store

// Row is one normalized row bound for a specific table. Args must match the
// column order of the table's insert statement.
type Row interface {
	Table() Table
	Args() []any
}

var insertStatements = map[Table]string{
	TableMatches: `INSERT INTO matches (match_id, source_file, map_name, game_type, start_time, end_time, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	TablePlayers: `INSERT INTO players (match_id, player_name, team_id, god_name, role)
		VALUES (?, ?, ?, ?, ?)`,
	TablePlayerStats: `INSERT INTO player_stats (match_id, player_name, team_id, kills, deaths, assists, damage_dealt, damage_taken, healing_done, damage_mitigated, gold_earned, experience_earned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	TableCombatEvents: `INSERT INTO combat_events (match_id, event_time, event_type, source_entity, target_entity, ability_name, damage_amount, damage_mitigated, location_x, location_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	TableTimelineEvents: `INSERT INTO timeline_events (match_id, event_time, game_time_seconds, event_type, event_category, importance, entity_name, target_name, team_id, location_x, location_y, value, event_description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	TableItemEvents: `INSERT INTO item_events (match_id, event_time, event_type, player_name, item_name, cost, location_x, location_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	TableRewardEvents: `INSERT INTO reward_events (match_id, event_time, event_type, entity_name, reward_amount, source_type, location_x, location_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	TablePlayerEvents: `INSERT INTO player_events (match_id, event_time, event_type, player_name, value, team_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
}

// MatchRow is the root row for an ingested file. Pointer fields persist as
// NULL until finalization.
type MatchRow struct {
	MatchID         string
	SourceFile      string
	MapName         *string
	GameType        *string
	StartTime       *string
	EndTime         *string
	DurationSeconds *int64
}

func (MatchRow) Table() Table { return TableMatches }
func (r MatchRow) Args() []any {
	return []any{r.MatchID, r.SourceFile, r.MapName, r.GameType, r.StartTime, r.EndTime, r.DurationSeconds}
}

// PlayerRow records one roster entry.
type PlayerRow struct {
	MatchID    string
	PlayerName string
	TeamID     *int64
	GodName    *string
	Role       *string
}

func (PlayerRow) Table() Table { return TablePlayers }
func (r PlayerRow) Args() []any {
	return []any{r.MatchID, r.PlayerName, r.TeamID, r.GodName, r.Role}
}

// StatRow is the finalized per-player aggregate.
type StatRow struct {
	MatchID          string
	PlayerName       string
	TeamID           *int64
	Kills            int64
	Deaths           int64
	Assists          int64
	DamageDealt      int64
	DamageTaken      int64
	HealingDone      int64
	DamageMitigated  int64
	GoldEarned       int64
	ExperienceEarned int64
}

func (StatRow) Table() Table { return TablePlayerStats }
func (r StatRow) Args() []any {
	return []any{r.MatchID, r.PlayerName, r.TeamID, r.Kills, r.Deaths, r.Assists,
		r.DamageDealt, r.DamageTaken, r.HealingDone, r.DamageMitigated, r.GoldEarned, r.ExperienceEarned}
}

// CombatRow is one combat interaction.
type CombatRow struct {
	MatchID         string
	EventTime       *string
	EventType       string
	SourceEntity    string
	TargetEntity    string
	AbilityName     *string
	DamageAmount    *int64
	DamageMitigated *int64
	LocationX       *float64
	LocationY       *float64
}

func (CombatRow) Table() Table { return TableCombatEvents }
func (r CombatRow) Args() []any {
	return []any{r.MatchID, r.EventTime, r.EventType, r.SourceEntity, r.TargetEntity,
		r.AbilityName, r.DamageAmount, r.DamageMitigated, r.LocationX, r.LocationY}
}

// TimelineRow is a timeline-significant event.
type TimelineRow struct {
	MatchID         string
	EventTime       *string
	GameTimeSeconds *float64
	EventType       string
	EventCategory   string
	Importance      int64
	EntityName      string
	TargetName      *string
	TeamID          *int64
	LocationX       *float64
	LocationY       *float64
	Value           *float64
	Description     string
}

func (TimelineRow) Table() Table { return TableTimelineEvents }
func (r TimelineRow) Args() []any {
	return []any{r.MatchID, r.EventTime, r.GameTimeSeconds, r.EventType, r.EventCategory,
		r.Importance, r.EntityName, r.TargetName, r.TeamID, r.LocationX, r.LocationY, r.Value, r.Description}
}

// ItemRow is one item purchase or use.
type ItemRow struct {
	MatchID    string
	EventTime  *string
	EventType  string
	PlayerName string
	ItemName   string
	Cost       *int64
	LocationX  *float64
	LocationY  *float64
}

func (ItemRow) Table() Table { return TableItemEvents }
func (r ItemRow) Args() []any {
	return []any{r.MatchID, r.EventTime, r.EventType, r.PlayerName, r.ItemName, r.Cost, r.LocationX, r.LocationY}
}

// RewardRow is one gold or experience grant.
type RewardRow struct {
	MatchID      string
	EventTime    *string
	EventType    string
	EntityName   string
	RewardAmount *int64
	SourceType   *string
	LocationX    *float64
	LocationY    *float64
}

func (RewardRow) Table() Table { return TableRewardEvents }
func (r RewardRow) Args() []any {
	return []any{r.MatchID, r.EventTime, r.EventType, r.EntityName, r.RewardAmount, r.SourceType, r.LocationX, r.LocationY}
}

// PlayerEventRow records a player-scoped status change.
type PlayerEventRow struct {
	MatchID    string
	EventTime  *string
	EventType  string
	PlayerName string
	Value      *string
	TeamID     *int64
}

func (PlayerEventRow) Table() Table { return TablePlayerEvents }
func (r PlayerEventRow) Args() []any {
	return []any{r.MatchID, r.EventTime, r.EventType, r.PlayerName, r.Value, r.TeamID}
}
