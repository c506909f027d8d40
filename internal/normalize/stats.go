package normalize

import (
	"sort"

	"smitelog/internal/store"
)

// playerTotals is the running aggregate for one player within one match.
type playerTotals struct {
	teamID           *int64
	godName          *string
	role             *string
	kills            int64
	deaths           int64
	assists          int64
	damageDealt      int64
	damageTaken      int64
	healingDone      int64
	damageMitigated  int64
	goldEarned       int64
	experienceEarned int64
}

// StatsAccumulator folds combat and reward events into per-player totals for
// a single match. It is owned by the Normalizer, never shared across
// matches, so concurrent ingestions of different files can't interfere.
//
// The roster is whoever appeared in a playermsg plus anyone who received a
// reward: minions and jungle camps deal damage but are never granted gold or
// assigned roles, so this keeps NPC entities out of player_stats.
type StatsAccumulator struct {
	matchID string
	players map[string]*playerTotals
	roster  map[string]bool
}

// NewStatsAccumulator creates an empty accumulator for one match.
func NewStatsAccumulator(matchID string) *StatsAccumulator {
	return &StatsAccumulator{
		matchID: matchID,
		players: make(map[string]*playerTotals),
		roster:  make(map[string]bool),
	}
}

func (a *StatsAccumulator) totals(name string) *playerTotals {
	t, ok := a.players[name]
	if !ok {
		t = &playerTotals{}
		a.players[name] = t
	}
	return t
}

// Register adds a player to the roster with an optional team.
func (a *StatsAccumulator) Register(name string, teamID *int64) {
	if name == "" {
		return
	}
	a.roster[name] = true
	t := a.totals(name)
	if teamID != nil {
		t.teamID = teamID
	}
}

// SetRole records the role assigned to a rostered player.
func (a *StatsAccumulator) SetRole(name, role string) {
	if name == "" || role == "" {
		return
	}
	a.roster[name] = true
	a.totals(name).role = &role
}

// SetGod records the god a rostered player picked.
func (a *StatsAccumulator) SetGod(name, god string) {
	if name == "" || god == "" {
		return
	}
	a.roster[name] = true
	a.totals(name).godName = &god
}

// FoldDamage records damage dealt by source against target.
func (a *StatsAccumulator) FoldDamage(source, target string, amount, mitigated *int64) {
	if amount == nil {
		return
	}
	if source != "" {
		t := a.totals(source)
		t.damageDealt += *amount
		if mitigated != nil {
			t.damageMitigated += *mitigated
		}
	}
	if target != "" {
		a.totals(target).damageTaken += *amount
	}
}

// FoldHealing records healing done by source.
func (a *StatsAccumulator) FoldHealing(source string, amount *int64) {
	if source == "" || amount == nil {
		return
	}
	a.totals(source).healingDone += *amount
}

// FoldKill records a killing blow by source against target.
func (a *StatsAccumulator) FoldKill(source, target string) {
	if source != "" {
		a.totals(source).kills++
	}
	if target != "" {
		a.totals(target).deaths++
	}
}

// FoldReward records a gold or experience grant. Reward recipients join the
// roster.
func (a *StatsAccumulator) FoldReward(recipient, rewardType string, amount *int64) {
	if recipient == "" || amount == nil {
		return
	}
	a.roster[recipient] = true
	t := a.totals(recipient)
	switch rewardType {
	case "Currency":
		t.goldEarned += *amount
	case "Experience":
		t.experienceEarned += *amount
	}
}

func (a *StatsAccumulator) sortedRoster() []string {
	names := make([]string, 0, len(a.roster))
	for name := range a.roster {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FinalizePlayers emits one players row per rostered player, in name order
// so re-ingestion writes identical row sequences.
func (a *StatsAccumulator) FinalizePlayers() []store.Row {
	names := a.sortedRoster()
	rows := make([]store.Row, 0, len(names))
	for _, name := range names {
		t := a.players[name]
		if t == nil {
			t = &playerTotals{}
		}
		rows = append(rows, store.PlayerRow{
			MatchID:    a.matchID,
			PlayerName: name,
			TeamID:     t.teamID,
			GodName:    t.godName,
			Role:       t.role,
		})
	}
	return rows
}

// Finalize emits one player_stats row per rostered player, in name order.
func (a *StatsAccumulator) Finalize() []store.Row {
	names := a.sortedRoster()
	rows := make([]store.Row, 0, len(names))
	for _, name := range names {
		t := a.players[name]
		if t == nil {
			t = &playerTotals{}
		}
		rows = append(rows, store.StatRow{
			MatchID:          a.matchID,
			PlayerName:       name,
			TeamID:           t.teamID,
			Kills:            t.kills,
			Deaths:           t.deaths,
			Assists:          t.assists,
			DamageDealt:      t.damageDealt,
			DamageTaken:      t.damageTaken,
			HealingDone:      t.healingDone,
			DamageMitigated:  t.damageMitigated,
			GoldEarned:       t.goldEarned,
			ExperienceEarned: t.experienceEarned,
		})
	}
	return rows
}
