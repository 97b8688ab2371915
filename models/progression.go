package models

import (
	"time"

	"gorm.io/gorm"
)

// AchievementState is the per-user slice of one achievement, stored inline on
// the progression record so a single write covers counters and grants.
type AchievementState struct {
	Progress       int        `json:"progress"`
	MaxProgress    int        `json:"max_progress"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TimesCompleted int        `json:"times_completed"`
}

// UserProgression is the one-per-user gamification record: level, XP, currency
// balances, stat counters and achievement progress (denormalized for performance).
// Mutations go through the services only, as a versioned read-modify-write.
type UserProgression struct {
	ID             string `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string `gorm:"uniqueIndex;not null" json:"external_user_id"` // links to profile service

	// Core progression. Experience is XP inside the current level; the
	// invariant 0 <= Experience < ExperienceToNext holds at rest.
	Level            int   `json:"level" gorm:"default:1"`
	Experience       int64 `json:"experience" gorm:"default:0"`
	ExperienceToNext int64 `json:"experience_to_next" gorm:"default:100"`
	TotalExperience  int64 `json:"total_experience" gorm:"default:0"` // monotonic, never clamped

	Balances     map[string]int64             `gorm:"serializer:json;type:jsonb" json:"balances"`
	Stats        map[string]int64             `gorm:"serializer:json;type:jsonb" json:"stats"`
	Achievements map[string]*AchievementState `gorm:"serializer:json;type:jsonb" json:"achievements"` // keyed by achievement ID

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	// Optimistic lock; bumped on every write.
	Version int64 `gorm:"default:0" json:"-"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
