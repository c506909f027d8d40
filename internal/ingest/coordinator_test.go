package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"smitelog/internal/store"
)

var sampleLines = []string{
	`{"eventType":"start","matchID":"M-100","mapName":"Conquest","gameType":"Ranked","time":"2025.03.19-04.09.28"}`,
	`{"eventType":"playermsg","type":"RoleAssigned","sourceowner":"Anubis","itemname":"EMid","value1":"1","time":"2025.03.19-04.09.30"}`,
	`{"eventType":"playermsg","type":"RoleAssigned","sourceowner":"Ra","itemname":"EMid","value1":"2","time":"2025.03.19-04.09.31"}`,
	`{"eventType":"playermsg","type":"GodPicked","sourceowner":"Anubis","itemname":"Anubis","value1":"1","time":"2025.03.19-04.09.40"}`,
	`{"eventType":"itemmsg","type":"ItemPurchase","sourceowner":"Anubis","itemname":"Book of Thoth","value1":"2300","time":"2025.03.19-04.10.00"}`,
	`{"eventType":"CombatMsg","type":"Damage","sourceowner":"Anubis","targetowner":"Ra","itemname":"Mummify","value1":"250","value2":"40","locationx":"-1024.5","locationy":"880.2","time":"2025.03.19-04.12.00"}`,
	`{"eventType":"RewardMsg","type":"Currency","sourceowner":"Anubis","itemname":"MinionKill","value1":"63","time":"2025.03.19-04.12.05"}`,
	`{"eventType":"RewardMsg","type":"Experience","sourceowner":"Anubis","itemname":"MinionKill","value1":"120","time":"2025.03.19-04.12.05"}`,
	`{"eventType":"CombatMsg","type":"KillingBlow","sourceowner":"Anubis","targetowner":"Ra","value1":"312","time":"2025.03.19-04.15.00"}`,
	`{"eventType":"ChatMsg","sourceowner":"Ra","text":"gg","time":"2025.03.19-04.40.00"}`,
	`{"eventType":"end","value1":"1","time":"2025.03.19-04.41.02"}`,
}

func writeLines(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func run(t *testing.T, cfg Config) *Summary {
	t.Helper()
	summary, err := New(cfg, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return summary
}

func tableCounts(t *testing.T, dbPath, matchID string) map[store.Table]int {
	t.Helper()
	s, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	out := map[store.Table]int{}
	for _, table := range store.AllTables {
		var n int
		err := s.DB().QueryRow(`SELECT COUNT(*) FROM `+string(table)+` WHERE match_id = ?`, matchID).Scan(&n)
		if err != nil {
			t.Fatalf("count %s failed: %v", table, err)
		}
		out[table] = n
	}
	return out
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	logPath := writeLines(t, dir, "CombatLog.log", sampleLines)
	dbPath := filepath.Join(dir, "match.db")

	summary := run(t, Config{
		SourcePath:    logPath,
		DBPath:        dbPath,
		BatchSize:     3,
		SkipMalformed: true,
	})

	if !summary.Succeeded() {
		t.Fatalf("state = %v, want done", summary.State)
	}
	if summary.MatchID != "M-100" {
		t.Errorf("MatchID = %q, want M-100", summary.MatchID)
	}
	if summary.LinesRead != len(sampleLines) {
		t.Errorf("LinesRead = %d, want %d", summary.LinesRead, len(sampleLines))
	}
	if summary.LinesSkipped != 0 || summary.EventsUnroutable != 0 || summary.Warnings != 0 {
		t.Errorf("counters = skipped %d, unroutable %d, warnings %d",
			summary.LinesSkipped, summary.EventsUnroutable, summary.Warnings)
	}

	counts := tableCounts(t, dbPath, "M-100")
	want := map[store.Table]int{
		store.TableMatches:      1,
		store.TablePlayers:      2, // Anubis, Ra
		store.TablePlayerStats:  2,
		store.TableCombatEvents: 2,
		// start, end, kill, 2300g item purchase
		store.TableTimelineEvents: 4,
		store.TableItemEvents:     1,
		store.TableRewardEvents:   2,
		store.TablePlayerEvents:   3,
	}
	for table, n := range want {
		if counts[table] != n {
			t.Errorf("%s = %d rows, want %d", table, counts[table], n)
		}
	}

	// Match row is finalized with boundaries and duration.
	s, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()
	var mapName string
	var dur int64
	err = s.DB().QueryRow(`SELECT map_name, duration_seconds FROM matches WHERE match_id = 'M-100'`).
		Scan(&mapName, &dur)
	if err != nil {
		t.Fatalf("query match failed: %v", err)
	}
	if mapName != "Conquest" || dur != 1894 {
		t.Errorf("match = (%q, %d), want (Conquest, 1894)", mapName, dur)
	}
}

// contentColumns lists every column except the reassigned surrogate keys.
var contentColumns = map[store.Table][]string{
	store.TableMatches:        {"match_id", "source_file", "map_name", "game_type", "start_time", "end_time", "duration_seconds"},
	store.TablePlayers:        {"match_id", "player_name", "team_id", "god_name", "role"},
	store.TablePlayerStats:    {"match_id", "player_name", "team_id", "kills", "deaths", "assists", "damage_dealt", "damage_taken", "healing_done", "damage_mitigated", "gold_earned", "experience_earned"},
	store.TableCombatEvents:   {"match_id", "event_time", "event_type", "source_entity", "target_entity", "ability_name", "damage_amount", "damage_mitigated", "location_x", "location_y"},
	store.TableTimelineEvents: {"match_id", "event_time", "game_time_seconds", "event_type", "event_category", "importance", "entity_name", "target_name", "team_id", "location_x", "location_y", "value", "event_description"},
	store.TableItemEvents:     {"match_id", "event_time", "event_type", "player_name", "item_name", "cost", "location_x", "location_y"},
	store.TableRewardEvents:   {"match_id", "event_time", "event_type", "entity_name", "reward_amount", "source_type", "location_x", "location_y"},
	store.TablePlayerEvents:   {"match_id", "event_time", "event_type", "player_name", "value", "team_id"},
}

// tableContent dumps every non-surrogate column in insertion order, one
// formatted string per row.
func tableContent(t *testing.T, dbPath, matchID string) map[store.Table][]string {
	t.Helper()
	s, err := store.Open(dbPath, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	out := map[store.Table][]string{}
	for _, table := range store.AllTables {
		cols := strings.Join(contentColumns[table], ", ")
		rows, err := s.DB().Query(
			`SELECT `+cols+` FROM `+string(table)+` WHERE match_id = ? ORDER BY rowid`, matchID)
		if err != nil {
			t.Fatalf("dump %s failed: %v", table, err)
		}
		for rows.Next() {
			values := make([]any, len(contentColumns[table]))
			ptrs := make([]any, len(values))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				t.Fatalf("scan %s failed: %v", table, err)
			}
			out[table] = append(out[table], fmt.Sprintf("%v", values))
		}
		if err := rows.Err(); err != nil {
			t.Fatalf("iterate %s failed: %v", table, err)
		}
		rows.Close()
	}
	return out
}

// A forced clear-and-reingest of the same file must yield identical row
// content, surrogate keys aside.
func TestRun_IdempotentReload(t *testing.T) {
	dir := t.TempDir()
	logPath := writeLines(t, dir, "CombatLog.log", sampleLines)
	dbPath := filepath.Join(dir, "match.db")

	cfg := Config{SourcePath: logPath, DBPath: dbPath, BatchSize: 2, SkipMalformed: true}
	run(t, cfg)
	first := tableContent(t, dbPath, "M-100")

	cfg.ForceReload = true
	run(t, cfg)
	second := tableContent(t, dbPath, "M-100")

	for _, table := range store.AllTables {
		if len(first[table]) != len(second[table]) {
			t.Errorf("%s: %d rows after first run, %d after reload", table, len(first[table]), len(second[table]))
			continue
		}
		for i := range first[table] {
			if first[table][i] != second[table][i] {
				t.Errorf("%s row %d differs after reload:\n first: %s\nsecond: %s",
					table, i, first[table][i], second[table][i])
			}
		}
	}
}

// Without a forced reload, re-ingesting an existing match must fail rather
// than silently duplicate rows.
func TestRun_RepeatWithoutForceFails(t *testing.T) {
	dir := t.TempDir()
	logPath := writeLines(t, dir, "CombatLog.log", sampleLines)
	dbPath := filepath.Join(dir, "match.db")

	cfg := Config{SourcePath: logPath, DBPath: dbPath, SkipMalformed: true}
	run(t, cfg)

	summary, err := New(cfg, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected failure on duplicate match id")
	}
	if summary.State != StateFailed {
		t.Errorf("state = %v, want failed", summary.State)
	}

	counts := tableCounts(t, dbPath, "M-100")
	if counts[store.TableMatches] != 1 {
		t.Errorf("matches = %d after failed rerun, want 1", counts[store.TableMatches])
	}
}

func TestRun_MalformedTolerance(t *testing.T) {
	dir := t.TempDir()
	lines := append([]string{}, sampleLines[:4]...)
	lines = append(lines, `{{{garbage`)
	lines = append(lines, sampleLines[4:]...)
	lines = append(lines, `also not json`)
	logPath := writeLines(t, dir, "noisy.log", lines)

	// Tolerant: all valid lines land, both bad lines counted.
	summary := run(t, Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "tolerant.db"),
		SkipMalformed: true,
	})
	if summary.LinesSkipped != 2 {
		t.Errorf("LinesSkipped = %d, want 2", summary.LinesSkipped)
	}
	counts := tableCounts(t, filepath.Join(dir, "tolerant.db"), "M-100")
	if counts[store.TableCombatEvents] != 2 {
		t.Errorf("combat_events = %d, want 2", counts[store.TableCombatEvents])
	}

	// Intolerant: fails at the first malformed line.
	summary, err := New(Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "strict.db"),
		SkipMalformed: false,
	}, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected failure in intolerant mode")
	}
	if summary.State != StateFailed {
		t.Errorf("state = %v, want failed", summary.State)
	}
	if summary.LinesSkipped != 1 {
		t.Errorf("LinesSkipped = %d at failure, want 1", summary.LinesSkipped)
	}
}

// A line past the length cap is skipped like any other malformed line; it
// must not abort a tolerant run or drop the lines after it.
func TestRun_OversizedLineSkippedWhenTolerant(t *testing.T) {
	dir := t.TempDir()
	huge := `{"eventType":"ChatMsg","sourceowner":"Ra","text":"` + strings.Repeat("a", 2<<20) + `"}`
	lines := append([]string{}, sampleLines[:5]...)
	lines = append(lines, huge)
	lines = append(lines, sampleLines[5:]...)
	logPath := writeLines(t, dir, "CombatLog.log", lines)

	summary := run(t, Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "tolerant.db"),
		SkipMalformed: true,
	})
	if summary.LinesSkipped != 1 {
		t.Errorf("LinesSkipped = %d, want 1", summary.LinesSkipped)
	}
	if summary.LinesRead != len(lines) {
		t.Errorf("LinesRead = %d, want %d", summary.LinesRead, len(lines))
	}
	counts := tableCounts(t, filepath.Join(dir, "tolerant.db"), "M-100")
	if counts[store.TableCombatEvents] != 2 {
		t.Errorf("combat_events = %d after oversized line, want 2", counts[store.TableCombatEvents])
	}

	// Intolerant mode still refuses the line.
	summary, err := New(Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "strict.db"),
		SkipMalformed: false,
	}, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected failure on oversized line in intolerant mode")
	}
	if summary.State != StateFailed {
		t.Errorf("state = %v, want failed", summary.State)
	}
}

func TestRun_UnclassifiedEventsCountedAndDropped(t *testing.T) {
	dir := t.TempDir()
	lines := append([]string{}, sampleLines...)
	lines = append(lines, `{"eventType":"TelemetryHeartbeat","value1":"1"}`)
	logPath := writeLines(t, dir, "CombatLog.log", lines)

	summary := run(t, Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "match.db"),
		SkipMalformed: true,
	})
	if summary.EventsUnroutable != 1 {
		t.Errorf("EventsUnroutable = %d, want 1", summary.EventsUnroutable)
	}
	if summary.LinesSkipped != 0 {
		t.Errorf("LinesSkipped = %d, want 0", summary.LinesSkipped)
	}
}

func TestRun_FallbackIdentity(t *testing.T) {
	dir := t.TempDir()
	// No start event at all.
	logPath := writeLines(t, dir, "scrim_042.log", sampleLines[1:])

	summary := run(t, Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "match.db"),
		SkipMalformed: true,
	})
	if summary.MatchID != "match-scrim_042" {
		t.Errorf("MatchID = %q, want match-scrim_042", summary.MatchID)
	}
}

func TestRun_DedupeSuppressesRepeatedLines(t *testing.T) {
	dir := t.TempDir()
	lines := append([]string{}, sampleLines...)
	// Client reconnects re-emit recent lines verbatim.
	lines = append(lines, sampleLines[5], sampleLines[6])
	logPath := writeLines(t, dir, "CombatLog.log", lines)

	summary := run(t, Config{
		SourcePath:    logPath,
		DBPath:        filepath.Join(dir, "match.db"),
		SkipMalformed: true,
		Dedupe:        true,
	})
	if summary.DuplicatesSuppressed != 2 {
		t.Errorf("DuplicatesSuppressed = %d, want 2", summary.DuplicatesSuppressed)
	}
	counts := tableCounts(t, filepath.Join(dir, "match.db"), "M-100")
	if counts[store.TableCombatEvents] != 2 {
		t.Errorf("combat_events = %d with dedupe, want 2", counts[store.TableCombatEvents])
	}
}

func TestRun_MissingSourceFileFails(t *testing.T) {
	dir := t.TempDir()
	summary, err := New(Config{
		SourcePath: filepath.Join(dir, "absent.log"),
		DBPath:     filepath.Join(dir, "match.db"),
	}, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected failure for missing source file")
	}
	if summary.State != StateFailed {
		t.Errorf("state = %v, want failed", summary.State)
	}
}
