package models

import (
	"fmt"
	"time"
)

// Comparator is how a requirement measures a metric against its target.
type Comparator string

const (
	ComparatorGTE     Comparator = "gte"
	ComparatorLTE     Comparator = "lte"
	ComparatorEQ      Comparator = "eq"
	ComparatorBetween Comparator = "between"
)

// Requirement is one predicate of an achievement. Metric names resolve against
// the user's stat counters, with "level" reading the progression level itself.
type Requirement struct {
	Metric      string     `json:"metric"`
	Comparator  Comparator `json:"comparator"`
	Target      int64      `json:"target"`
	UpperTarget int64      `json:"upper_target,omitempty"` // between only
}

// Validate rejects malformed requirements up front instead of probing fields
// at evaluation time.
func (r Requirement) Validate() error {
	if r.Metric == "" {
		return fmt.Errorf("requirement metric must not be empty")
	}
	switch r.Comparator {
	case ComparatorGTE, ComparatorLTE, ComparatorEQ:
		return nil
	case ComparatorBetween:
		if r.UpperTarget < r.Target {
			return fmt.Errorf("requirement %q: between upper bound %d below target %d", r.Metric, r.UpperTarget, r.Target)
		}
		return nil
	default:
		return fmt.Errorf("requirement %q: unknown comparator %q", r.Metric, r.Comparator)
	}
}

// Satisfaction returns how far the current value satisfies the requirement,
// in [0,1]. Threshold comparators (gte) report fractional progress; the exact
// ones (lte, eq, between) are all-or-nothing.
func (r Requirement) Satisfaction(current int64) float64 {
	switch r.Comparator {
	case ComparatorGTE:
		if r.Target <= 0 {
			return 1
		}
		f := float64(current) / float64(r.Target)
		if f < 0 {
			return 0
		}
		if f > 1 {
			return 1
		}
		return f
	case ComparatorLTE:
		if current <= r.Target {
			return 1
		}
	case ComparatorEQ:
		if current == r.Target {
			return 1
		}
	case ComparatorBetween:
		if current >= r.Target && current <= r.UpperTarget {
			return 1
		}
	}
	return 0
}

// Achievement is a published template, not per-user state. TimesEarned and
// UniqueEarners are aggregate analytics counters.
type Achievement struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_EXCHANGE"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	IconURL     string `gorm:"type:text" json:"icon_url"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary

	Requirements []Requirement `gorm:"serializer:json;type:jsonb" json:"requirements"`

	RewardXP       int64            `json:"reward_xp" gorm:"default:0"`
	RewardCurrency map[string]int64 `gorm:"serializer:json;type:jsonb" json:"reward_currency"`

	MaxProgress   int  `json:"max_progress" gorm:"default:1"`
	IsRepeatable  bool `json:"is_repeatable" gorm:"default:false"`
	CooldownHours int  `json:"cooldown_hours" gorm:"default:0"`
	IsActive      bool `json:"is_active" gorm:"default:true"`

	TimesEarned   int64 `json:"times_earned" gorm:"default:0"`
	UniqueEarners int64 `json:"unique_earners" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Validate checks the whole template before it is published.
func (a Achievement) Validate() error {
	if a.Code == "" {
		return fmt.Errorf("achievement code must not be empty")
	}
	if a.MaxProgress < 1 {
		return fmt.Errorf("achievement %s: max progress must be >= 1", a.Code)
	}
	if len(a.Requirements) == 0 {
		return fmt.Errorf("achievement %s: at least one requirement required", a.Code)
	}
	for _, r := range a.Requirements {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("achievement %s: %w", a.Code, err)
		}
	}
	return nil
}

// DefaultAchievements seeds the catalog on first boot.
var DefaultAchievements = []Achievement{
	{
		Code:        "FIRST_STEPS",
		Name:        "First Steps",
		Description: "Complete your first challenge",
		Rarity:      "common",
		Requirements: []Requirement{
			{Metric: "challenges_completed", Comparator: ComparatorGTE, Target: 1},
		},
		RewardXP:       50,
		RewardCurrency: map[string]int64{"coins": 25},
		MaxProgress:    1,
	},
	{
		Code:        "CHALLENGE_GRINDER",
		Name:        "Challenge Grinder",
		Description: "Complete 25 challenges",
		Rarity:      "rare",
		Requirements: []Requirement{
			{Metric: "challenges_completed", Comparator: ComparatorGTE, Target: 25},
		},
		RewardXP:       500,
		RewardCurrency: map[string]int64{"coins": 250},
		MaxProgress:    25,
	},
	{
		Code:        "LEVEL_10",
		Name:        "Double Digits",
		Description: "Reach level 10",
		Rarity:      "common",
		Requirements: []Requirement{
			{Metric: "level", Comparator: ComparatorGTE, Target: 10},
		},
		RewardXP:       200,
		RewardCurrency: map[string]int64{"gems": 10},
		MaxProgress:    10,
	},
	{
		Code:        "TOURNAMENT_CHAMP",
		Name:        "Tournament Champion",
		Description: "Win a tournament",
		Rarity:      "epic",
		Requirements: []Requirement{
			{Metric: "tournaments_won", Comparator: ComparatorGTE, Target: 1},
		},
		RewardXP:       1000,
		RewardCurrency: map[string]int64{"coins": 1000, "gems": 50},
		MaxProgress:    1,
	},
	{
		Code:        "MARKET_MAKER",
		Name:        "Market Maker",
		Description: "Perform 10 currency exchanges",
		Rarity:      "rare",
		Requirements: []Requirement{
			{Metric: "exchanges_completed", Comparator: ComparatorGTE, Target: 10},
		},
		RewardXP:       300,
		RewardCurrency: map[string]int64{"gems": 15},
		MaxProgress:    10,
	},
	{
		Code:        "DAILY_DEVOTION",
		Name:        "Daily Devotion",
		Description: "Complete a daily challenge. Resets every day.",
		Rarity:      "common",
		Requirements: []Requirement{
			{Metric: "daily_challenges_completed", Comparator: ComparatorGTE, Target: 1},
		},
		RewardXP:      25,
		MaxProgress:   1,
		IsRepeatable:  true,
		CooldownHours: 24,
	},
}
