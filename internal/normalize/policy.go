package normalize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy decides which events are timeline-significant and how important
// they are. The classification rule is configuration, not code: operators
// tune thresholds per game mode without touching the router.
type Policy struct {
	// Combat
	KillImportance   int64 `yaml:"kill_importance"`
	DamageThreshold  int64 `yaml:"damage_threshold"`
	DamageImportance int64 `yaml:"damage_importance"`

	// Economy
	RewardThreshold   int64 `yaml:"reward_threshold"`
	RewardImportance  int64 `yaml:"reward_importance"`
	ItemCostThreshold int64 `yaml:"item_cost_threshold"`
	ItemImportance    int64 `yaml:"item_importance"`

	// Match boundaries
	MatchImportance int64 `yaml:"match_importance"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() *Policy {
	return &Policy{
		KillImportance:    8,
		DamageThreshold:   500,
		DamageImportance:  6,
		RewardThreshold:   300,
		RewardImportance:  4,
		ItemCostThreshold: 2000,
		ItemImportance:    5,
		MatchImportance:   10,
	}
}

// LoadPolicy reads a YAML policy file over the defaults, so a file only
// needs the keys it wants to change.
func LoadPolicy(path string) (*Policy, error) {
	p := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return p, nil
}

// combatImportance reports whether a combat event of the given subtype and
// damage belongs on the timeline.
func (p *Policy) combatImportance(subtype string, damage *int64) (int64, bool) {
	if subtype == "KillingBlow" {
		return p.KillImportance, true
	}
	if damage != nil && *damage >= p.DamageThreshold {
		return p.DamageImportance, true
	}
	return 0, false
}

func (p *Policy) rewardImportance(amount *int64) (int64, bool) {
	if amount != nil && *amount >= p.RewardThreshold {
		return p.RewardImportance, true
	}
	return 0, false
}

func (p *Policy) itemImportance(cost *int64) (int64, bool) {
	if cost != nil && *cost >= p.ItemCostThreshold {
		return p.ItemImportance, true
	}
	return 0, false
}
