package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind reports a line that decoded as JSON but carries no
// recognized eventType. Callers count these separately from structural
// decode failures.
var ErrUnknownKind = errors.New("unrecognized eventType")

// flexString accepts JSON strings, numbers, booleans, and null. The game
// client is inconsistent about quoting numeric fields, so a type mismatch on
// one field must not reject the whole line.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// wireEvent is the superset of fields across all event kinds.
type wireEvent struct {
	EventType   flexString `json:"eventType"`
	Type        flexString `json:"type"`
	MatchID     flexString `json:"matchID"`
	MapName     flexString `json:"mapName"`
	GameType    flexString `json:"gameType"`
	Time        flexString `json:"time"`
	SourceOwner flexString `json:"sourceowner"`
	TargetOwner flexString `json:"targetowner"`
	ItemName    flexString `json:"itemname"`
	Value1      flexString `json:"value1"`
	Value2      flexString `json:"value2"`
	LocationX   flexString `json:"locationx"`
	LocationY   flexString `json:"locationy"`
	Text        flexString `json:"text"`
}

// Decode turns one raw log line into a typed event. It returns
// ErrUnknownKind for well-formed JSON without a recognized discriminator;
// any other error is a structural decode failure.
func Decode(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("decode line: %w", err)
	}

	switch Kind(strings.TrimSpace(string(w.EventType))) {
	case KindStart:
		return Start{
			MatchID:  string(w.MatchID),
			MapName:  string(w.MapName),
			GameType: string(w.GameType),
			Time:     string(w.Time),
		}, nil
	case KindEnd:
		return End{
			MatchID:     string(w.MatchID),
			WinningTeam: string(w.Value1),
			Time:        string(w.Time),
		}, nil
	case KindCombat:
		return Combat{
			Type:      string(w.Type),
			Source:    string(w.SourceOwner),
			Target:    string(w.TargetOwner),
			Ability:   string(w.ItemName),
			Value1:    string(w.Value1),
			Value2:    string(w.Value2),
			LocationX: string(w.LocationX),
			LocationY: string(w.LocationY),
			Text:      string(w.Text),
			Time:      string(w.Time),
		}, nil
	case KindReward:
		return Reward{
			Type:      string(w.Type),
			Recipient: string(w.SourceOwner),
			Source:    string(w.ItemName),
			Value1:    string(w.Value1),
			LocationX: string(w.LocationX),
			LocationY: string(w.LocationY),
			Text:      string(w.Text),
			Time:      string(w.Time),
		}, nil
	case KindItem:
		return Item{
			Type:      string(w.Type),
			Player:    string(w.SourceOwner),
			ItemName:  string(w.ItemName),
			Value1:    string(w.Value1),
			LocationX: string(w.LocationX),
			LocationY: string(w.LocationY),
			Time:      string(w.Time),
		}, nil
	case KindPlayer:
		return Player{
			Type:   string(w.Type),
			Player: string(w.SourceOwner),
			Value:  string(w.ItemName),
			Team:   string(w.Value1),
			Time:   string(w.Time),
		}, nil
	case KindChat:
		return Chat{
			Player: string(w.SourceOwner),
			Text:   string(w.Text),
			Time:   string(w.Time),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(w.EventType))
	}
}
