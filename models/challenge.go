package models

import "time"

// ChallengeType drives the schedule window of generated instances.
type ChallengeType string

const (
	ChallengeDaily   ChallengeType = "daily"
	ChallengeWeekly  ChallengeType = "weekly"
	ChallengeMonthly ChallengeType = "monthly"
	ChallengeSpecial ChallengeType = "special"
)

// ChallengeTemplate is the static definition a Challenge instance is stamped
// from. Descriptions may be seeded by an external generator; the engine treats
// them as opaque text.
type ChallengeTemplate struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string        `gorm:"uniqueIndex;not null" json:"code"` // slugified name
	Name        string        `gorm:"not null" json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Type        ChallengeType `gorm:"type:varchar(16);default:'daily'" json:"type"`
	Difficulty  string        `gorm:"type:varchar(16);not null" json:"difficulty"` // easy, medium, hard, expert

	MinLevel      int `json:"min_level" gorm:"default:1"`
	EstimatedMins int `json:"estimated_mins" gorm:"default:15"`

	BaseXP           int64            `json:"base_xp" gorm:"default:0"`
	BaseCurrency     map[string]int64 `gorm:"serializer:json;type:jsonb" json:"base_currency"`
	RewardMultiplier float64          `json:"reward_multiplier" gorm:"default:1"`

	MaxScore        int64  `json:"max_score" gorm:"default:100"`
	ScoringFormula  string `gorm:"type:varchar(32);default:'linear'" json:"scoring_formula"`
	AttemptsPerUser int    `json:"attempts_per_user" gorm:"default:1"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Challenge is a live instance with a schedule window [StartDate, EndDate).
// Completions and AverageScore are running statistics; everything else is
// frozen at generation time.
type Challenge struct {
	ID          string        `gorm:"primaryKey;type:uuid" json:"id"`
	TemplateID  string        `gorm:"index;not null" json:"template_id"`
	CreatedBy   string        `gorm:"index" json:"created_by"` // requesting user
	Name        string        `json:"name"`
	Description string        `gorm:"type:text" json:"description"`
	Type        ChallengeType `gorm:"type:varchar(16)" json:"type"`
	Difficulty  string        `gorm:"type:varchar(16)" json:"difficulty"`

	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`

	RewardXP       int64            `json:"reward_xp"`
	RewardCurrency map[string]int64 `gorm:"serializer:json;type:jsonb" json:"reward_currency"`
	Multiplier     float64          `json:"multiplier" gorm:"default:1"`

	MinLevel        int   `json:"min_level" gorm:"default:1"`
	MaxScore        int64 `json:"max_score"`
	AttemptsPerUser int   `json:"attempts_per_user" gorm:"default:1"`

	Completions  int64   `json:"completions" gorm:"default:0"`
	AverageScore float64 `json:"average_score" gorm:"default:0"`

	IsActive bool  `json:"is_active" gorm:"default:true"`
	Version  int64 `gorm:"default:0" json:"-"`

	Timestamps
}

// ChallengeAttempt tracks one user's participation in one challenge.
type ChallengeAttempt struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string `gorm:"not null;index;uniqueIndex:idx_challenge_user" json:"challenge_id"`
	UserID      string `gorm:"not null;index;uniqueIndex:idx_challenge_user" json:"user_id"`

	Attempts    int        `json:"attempts" gorm:"default:0"`
	BestScore   int64      `json:"best_score" gorm:"default:0"`
	LastScore   int64      `json:"last_score" gorm:"default:0"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Timestamps
}

// DefaultChallengeTemplates seeds the registry on first boot.
var DefaultChallengeTemplates = []ChallengeTemplate{
	{
		Code:          "daily-focus-sprint",
		Name:          "Daily Focus Sprint",
		Description:   "Stay on task for three uninterrupted focus sessions today.",
		Type:          ChallengeDaily,
		Difficulty:    "easy",
		MinLevel:      1,
		EstimatedMins: 30,
		BaseXP:        50,
		BaseCurrency:  map[string]int64{"coins": 20},
		MaxScore:      100,
		AttemptsPerUser: 3,
	},
	{
		Code:          "daily-deep-dive",
		Name:          "Daily Deep Dive",
		Description:   "Finish a full deep-work block without breaking streak.",
		Type:          ChallengeDaily,
		Difficulty:    "medium",
		MinLevel:      3,
		EstimatedMins: 60,
		BaseXP:        120,
		BaseCurrency:  map[string]int64{"coins": 50},
		MaxScore:      100,
		AttemptsPerUser: 2,
	},
	{
		Code:             "weekly-marathon",
		Name:             "Weekly Marathon",
		Description:      "Hit your weekly goal five days out of seven.",
		Type:             ChallengeWeekly,
		Difficulty:       "hard",
		MinLevel:         5,
		EstimatedMins:    120,
		BaseXP:           400,
		BaseCurrency:     map[string]int64{"coins": 150, "gems": 5},
		RewardMultiplier: 1.5,
		MaxScore:         500,
		AttemptsPerUser:  1,
	},
	{
		Code:             "monthly-mastery",
		Name:             "Monthly Mastery",
		Description:      "Sustain your streak across a full month.",
		Type:             ChallengeMonthly,
		Difficulty:       "expert",
		MinLevel:         10,
		EstimatedMins:    240,
		BaseXP:           2000,
		BaseCurrency:     map[string]int64{"coins": 500, "gems": 25},
		RewardMultiplier: 2,
		MaxScore:         1000,
		AttemptsPerUser:  1,
	},
	{
		Code:          "lightning-round",
		Name:          "Lightning Round",
		Description:   "A quick burst challenge for a spare moment.",
		Type:          ChallengeSpecial,
		Difficulty:    "easy",
		MinLevel:      1,
		EstimatedMins: 10,
		BaseXP:        25,
		BaseCurrency:  map[string]int64{"coins": 10},
		MaxScore:      50,
		AttemptsPerUser: 5,
	},
}
