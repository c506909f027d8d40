package events

import "time"

// Kind identifies the event family carried on a log line. The values match
// the eventType discriminator emitted by the game client.
type Kind string

const (
	KindStart  Kind = "start"
	KindEnd    Kind = "end"
	KindCombat Kind = "CombatMsg"
	KindReward Kind = "RewardMsg"
	KindItem   Kind = "itemmsg"
	KindPlayer Kind = "playermsg"
	KindChat   Kind = "ChatMsg"
)

// TimeLayout is the timestamp format used by the combat log
// (e.g. "2025.03.19-04.09.28").
const TimeLayout = "2006.01.02-15.04.05"

// ParseTime parses a combat-log timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Event is the decoded form of one log line. Concrete types carry only the
// fields their kind actually emits; numeric fields stay strings here because
// the client serializes them inconsistently and coercion is the normalizer's
// job.
type Event interface {
	Kind() Kind
}

// Start marks the beginning of a match and optionally carries the match
// identifier used as the partition key for everything else.
type Start struct {
	MatchID  string
	MapName  string
	GameType string
	Time     string
}

func (Start) Kind() Kind { return KindStart }

// End marks the end of a match.
type End struct {
	MatchID     string
	WinningTeam string
	Time        string
}

func (End) Kind() Kind { return KindEnd }

// Combat is a damage, healing, crowd-control, or killing-blow interaction.
// Type distinguishes the subtypes (Damage, CritDamage, Healing, CrowdControl,
// KillingBlow). Value1 is the primary amount, Value2 the mitigated portion.
type Combat struct {
	Type      string
	Source    string
	Target    string
	Ability   string
	Value1    string
	Value2    string
	LocationX string
	LocationY string
	Text      string
	Time      string
}

func (Combat) Kind() Kind { return KindCombat }

// Reward is a gold or experience grant. Type is Currency or Experience,
// Source names the granting mechanic (minion kill, objective, passive).
type Reward struct {
	Type      string
	Recipient string
	Source    string
	Value1    string
	LocationX string
	LocationY string
	Text      string
	Time      string
}

func (Reward) Kind() Kind { return KindReward }

// Item is an item purchase or use by a player.
type Item struct {
	Type      string
	Player    string
	ItemName  string
	Value1    string
	LocationX string
	LocationY string
	Time      string
}

func (Item) Kind() Kind { return KindItem }

// Player is a player status change: role assignment, god pick, god hover.
type Player struct {
	Type   string
	Player string
	Value  string
	Team   string
	Time   string
}

func (Player) Kind() Kind { return KindPlayer }

// Chat is an in-match chat message. Chat lines are decoded so they are not
// counted as malformed, but they produce no rows.
type Chat struct {
	Player string
	Text   string
	Time   string
}

func (Chat) Kind() Kind { return KindChat }
