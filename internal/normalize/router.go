package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"smitelog/internal/events"
	"smitelog/internal/store"
)

// ErrUnroutable reports an event that decoded cleanly but cannot be mapped
// to any table rows, typically because its subtype discriminator is missing.
// The whole event is skipped; nothing partial is ever queued.
var ErrUnroutable = errors.New("event not routable")

// MatchInfo collects the match-level fields that are only complete once the
// whole file has been read.
type MatchInfo struct {
	MapName   *string
	GameType  *string
	StartTime *string
	EndTime   *string

	start time.Time
	end   time.Time
}

// DurationSeconds returns the match length, when both boundaries were seen.
func (m *MatchInfo) DurationSeconds() *int64 {
	if m.start.IsZero() || m.end.IsZero() {
		return nil
	}
	d := int64(m.end.Sub(m.start) / time.Second)
	return &d
}

// Normalizer maps decoded events onto rows for the eight target tables. One
// Normalizer serves exactly one match; all its mutable state (player stats,
// match info, warning count) is scoped here.
type Normalizer struct {
	matchID  string
	policy   *Policy
	stats    *StatsAccumulator
	info     MatchInfo
	warnings int
	log      *zap.Logger
}

// New creates a Normalizer for one match.
func New(matchID string, policy *Policy, logger *zap.Logger) *Normalizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		matchID: matchID,
		policy:  policy,
		stats:   NewStatsAccumulator(matchID),
		log:     logger,
	}
}

// Warnings reports how many field coercion failures were absorbed.
func (n *Normalizer) Warnings() int {
	return n.warnings
}

// Info returns the accumulated match-level fields.
func (n *Normalizer) Info() *MatchInfo {
	return &n.info
}

// Finalize emits the roster and per-player aggregate rows. Call once, at
// end of input.
func (n *Normalizer) Finalize() []store.Row {
	rows := n.stats.FinalizePlayers()
	return append(rows, n.stats.Finalize()...)
}

// coerceInt parses a numeric field, substituting nil and counting a warning
// when the value is present but unparseable.
func (n *Normalizer) coerceInt(field, raw string) *int64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		n.warnings++
		n.log.Debug("unparseable numeric field",
			zap.String("field", field), zap.String("value", raw))
		return nil
	}
	i := int64(v)
	return &i
}

func (n *Normalizer) coerceFloat(field, raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		n.warnings++
		n.log.Debug("unparseable numeric field",
			zap.String("field", field), zap.String("value", raw))
		return nil
	}
	return &v
}

// coerceTime parses an event timestamp into its stored RFC 3339 form. The
// raw time.Time comes back too, for game-clock arithmetic.
func (n *Normalizer) coerceTime(raw string) (*string, time.Time) {
	if strings.TrimSpace(raw) == "" {
		return nil, time.Time{}
	}
	ts, err := events.ParseTime(strings.TrimSpace(raw))
	if err != nil {
		n.warnings++
		n.log.Debug("unparseable timestamp", zap.String("value", raw))
		return nil, time.Time{}
	}
	formatted := ts.UTC().Format(time.RFC3339)
	return &formatted, ts
}

// gameSeconds converts an absolute event time to seconds since match start.
func (n *Normalizer) gameSeconds(ts time.Time) *float64 {
	if ts.IsZero() || n.info.start.IsZero() {
		return nil
	}
	s := ts.Sub(n.info.start).Seconds()
	return &s
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Normalize routes one event to zero or more rows. Either every row derived
// from the event is returned, or none are and the error explains why.
func (n *Normalizer) Normalize(ev events.Event) ([]store.Row, error) {
	switch e := ev.(type) {
	case events.Start:
		return n.routeStart(e), nil
	case events.End:
		return n.routeEnd(e), nil
	case events.Combat:
		return n.routeCombat(e)
	case events.Reward:
		return n.routeReward(e)
	case events.Item:
		return n.routeItem(e)
	case events.Player:
		return n.routePlayer(e)
	case events.Chat:
		// Recognized, stored nowhere.
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unhandled kind %q", ErrUnroutable, ev.Kind())
	}
}

func (n *Normalizer) routeStart(e events.Start) []store.Row {
	formatted, ts := n.coerceTime(e.Time)
	if n.info.MapName == nil {
		n.info.MapName = optStr(e.MapName)
	}
	if n.info.GameType == nil {
		n.info.GameType = optStr(e.GameType)
	}
	if n.info.StartTime == nil {
		n.info.StartTime = formatted
		n.info.start = ts
	}

	return []store.Row{store.TimelineRow{
		MatchID:         n.matchID,
		EventTime:       formatted,
		GameTimeSeconds: n.gameSeconds(ts),
		EventType:       "MatchStart",
		EventCategory:   "match",
		Importance:      n.policy.MatchImportance,
		EntityName:      n.matchID,
		Description:     fmt.Sprintf("Match started on %s", e.MapName),
	}}
}

func (n *Normalizer) routeEnd(e events.End) []store.Row {
	formatted, ts := n.coerceTime(e.Time)
	n.info.EndTime = formatted
	n.info.end = ts

	desc := "Match ended"
	if e.WinningTeam != "" {
		desc = fmt.Sprintf("Match ended, team %s won", e.WinningTeam)
	}
	return []store.Row{store.TimelineRow{
		MatchID:         n.matchID,
		EventTime:       formatted,
		GameTimeSeconds: n.gameSeconds(ts),
		EventType:       "MatchEnd",
		EventCategory:   "match",
		Importance:      n.policy.MatchImportance,
		EntityName:      n.matchID,
		TeamID:          n.coerceInt("value1", e.WinningTeam),
		Description:     desc,
	}}
}

func (n *Normalizer) routeCombat(e events.Combat) ([]store.Row, error) {
	if strings.TrimSpace(e.Type) == "" {
		return nil, fmt.Errorf("%w: CombatMsg without type", ErrUnroutable)
	}

	formatted, ts := n.coerceTime(e.Time)
	damage := n.coerceInt("value1", e.Value1)
	mitigated := n.coerceInt("value2", e.Value2)
	locX := n.coerceFloat("locationx", e.LocationX)
	locY := n.coerceFloat("locationy", e.LocationY)

	switch e.Type {
	case "KillingBlow":
		n.stats.FoldKill(e.Source, e.Target)
	case "Healing":
		n.stats.FoldHealing(e.Source, damage)
	default:
		n.stats.FoldDamage(e.Source, e.Target, damage, mitigated)
	}

	rows := []store.Row{store.CombatRow{
		MatchID:         n.matchID,
		EventTime:       formatted,
		EventType:       e.Type,
		SourceEntity:    e.Source,
		TargetEntity:    e.Target,
		AbilityName:     optStr(e.Ability),
		DamageAmount:    damage,
		DamageMitigated: mitigated,
		LocationX:       locX,
		LocationY:       locY,
	}}

	if importance, ok := n.policy.combatImportance(e.Type, damage); ok {
		var value *float64
		if damage != nil {
			v := float64(*damage)
			value = &v
		}
		rows = append(rows, store.TimelineRow{
			MatchID:         n.matchID,
			EventTime:       formatted,
			GameTimeSeconds: n.gameSeconds(ts),
			EventType:       e.Type,
			EventCategory:   "combat",
			Importance:      importance,
			EntityName:      e.Source,
			TargetName:      optStr(e.Target),
			LocationX:       locX,
			LocationY:       locY,
			Value:           value,
			Description:     combatDescription(e),
		})
	}
	return rows, nil
}

func combatDescription(e events.Combat) string {
	switch e.Type {
	case "KillingBlow":
		return fmt.Sprintf("%s killed %s", e.Source, e.Target)
	case "Healing":
		return fmt.Sprintf("%s healed %s for %s", e.Source, e.Target, e.Value1)
	default:
		if e.Ability != "" {
			return fmt.Sprintf("%s hit %s with %s for %s", e.Source, e.Target, e.Ability, e.Value1)
		}
		return fmt.Sprintf("%s hit %s for %s", e.Source, e.Target, e.Value1)
	}
}

func (n *Normalizer) routeReward(e events.Reward) ([]store.Row, error) {
	if strings.TrimSpace(e.Type) == "" {
		return nil, fmt.Errorf("%w: RewardMsg without type", ErrUnroutable)
	}

	formatted, ts := n.coerceTime(e.Time)
	amount := n.coerceInt("value1", e.Value1)
	locX := n.coerceFloat("locationx", e.LocationX)
	locY := n.coerceFloat("locationy", e.LocationY)

	n.stats.FoldReward(e.Recipient, e.Type, amount)

	rows := []store.Row{store.RewardRow{
		MatchID:      n.matchID,
		EventTime:    formatted,
		EventType:    e.Type,
		EntityName:   e.Recipient,
		RewardAmount: amount,
		SourceType:   optStr(e.Source),
		LocationX:    locX,
		LocationY:    locY,
	}}

	if importance, ok := n.policy.rewardImportance(amount); ok {
		var value *float64
		if amount != nil {
			v := float64(*amount)
			value = &v
		}
		rows = append(rows, store.TimelineRow{
			MatchID:         n.matchID,
			EventTime:       formatted,
			GameTimeSeconds: n.gameSeconds(ts),
			EventType:       e.Type,
			EventCategory:   "economy",
			Importance:      importance,
			EntityName:      e.Recipient,
			LocationX:       locX,
			LocationY:       locY,
			Value:           value,
			Description:     fmt.Sprintf("%s earned %s (%s)", e.Recipient, e.Value1, e.Source),
		})
	}
	return rows, nil
}

func (n *Normalizer) routeItem(e events.Item) ([]store.Row, error) {
	if strings.TrimSpace(e.Type) == "" {
		return nil, fmt.Errorf("%w: itemmsg without type", ErrUnroutable)
	}

	formatted, ts := n.coerceTime(e.Time)
	cost := n.coerceInt("value1", e.Value1)
	locX := n.coerceFloat("locationx", e.LocationX)
	locY := n.coerceFloat("locationy", e.LocationY)

	rows := []store.Row{store.ItemRow{
		MatchID:    n.matchID,
		EventTime:  formatted,
		EventType:  e.Type,
		PlayerName: e.Player,
		ItemName:   e.ItemName,
		Cost:       cost,
		LocationX:  locX,
		LocationY:  locY,
	}}

	if importance, ok := n.policy.itemImportance(cost); ok {
		var value *float64
		if cost != nil {
			v := float64(*cost)
			value = &v
		}
		rows = append(rows, store.TimelineRow{
			MatchID:         n.matchID,
			EventTime:       formatted,
			GameTimeSeconds: n.gameSeconds(ts),
			EventType:       e.Type,
			EventCategory:   "economy",
			Importance:      importance,
			EntityName:      e.Player,
			LocationX:       locX,
			LocationY:       locY,
			Value:           value,
			Description:     fmt.Sprintf("%s bought %s", e.Player, e.ItemName),
		})
	}
	return rows, nil
}

func (n *Normalizer) routePlayer(e events.Player) ([]store.Row, error) {
	if strings.TrimSpace(e.Type) == "" {
		return nil, fmt.Errorf("%w: playermsg without type", ErrUnroutable)
	}

	formatted, _ := n.coerceTime(e.Time)
	team := n.coerceInt("value1", e.Team)
	n.stats.Register(e.Player, team)

	// Role assignments and god picks shape the roster; the players table
	// itself is emitted at finalize, one row per player, so a player who
	// hovered three gods doesn't show up three times.
	switch e.Type {
	case "RoleAssigned":
		n.stats.SetRole(e.Player, e.Value)
	case "GodPicked":
		n.stats.SetGod(e.Player, e.Value)
	}

	return []store.Row{store.PlayerEventRow{
		MatchID:    n.matchID,
		EventTime:  formatted,
		EventType:  e.Type,
		PlayerName: e.Player,
		Value:      optStr(e.Value),
		TeamID:     team,
	}}, nil
}
