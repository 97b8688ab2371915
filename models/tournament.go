package models

import "time"

type TournamentStatus string

const (
	TournamentDraft        TournamentStatus = "draft"
	TournamentRegistration TournamentStatus = "registration"
	TournamentActive       TournamentStatus = "active"
	TournamentCompleted    TournamentStatus = "completed"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
)

type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// Tournament is a single-elimination bracket competition. Bracket advancement
// and terminal reward distribution run under the Version optimistic lock so
// racing result submissions cannot skip a round or pay out twice.
type Tournament struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string           `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string           `gorm:"not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	Status      TournamentStatus `gorm:"type:varchar(16);default:'draft'" json:"status"`

	TeamSize        int `json:"team_size" gorm:"default:1"`
	MinParticipants int `json:"min_participants" gorm:"default:2"`
	MaxParticipants int `json:"max_participants" gorm:"default:0"` // 0 = unbounded

	// Eligibility: minimum level plus achievement codes the user must hold.
	MinLevel             int      `json:"min_level" gorm:"default:1"`
	RequiredAchievements []string `gorm:"serializer:json;type:jsonb" json:"required_achievements"`

	CurrentRound int    `json:"current_round" gorm:"default:0"`
	TotalRounds  int    `json:"total_rounds" gorm:"default:0"`
	WinnerID     string `json:"winner_id,omitempty"`

	// Fixed per-match winner bundle, plus the terminal bundles.
	MatchRewardXP               int64            `json:"match_reward_xp" gorm:"default:25"`
	MatchRewardCurrency         map[string]int64 `gorm:"serializer:json;type:jsonb" json:"match_reward_currency"`
	ChampionRewardXP            int64            `json:"champion_reward_xp" gorm:"default:1000"`
	ChampionRewardCurrency      map[string]int64 `gorm:"serializer:json;type:jsonb" json:"champion_reward_currency"`
	ParticipationRewardXP       int64            `json:"participation_reward_xp" gorm:"default:50"`
	ParticipationRewardCurrency map[string]int64 `gorm:"serializer:json;type:jsonb" json:"participation_reward_currency"`

	RewardsDistributed bool `json:"rewards_distributed" gorm:"default:false"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Version int64 `gorm:"default:0" json:"-"`

	Timestamps
}

// TournamentParticipant is one registered entrant. Seed is 0 until Start
// shuffles the field and assigns seeds.
type TournamentParticipant struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string `gorm:"not null;index;uniqueIndex:idx_tournament_user" json:"tournament_id"`
	UserID       string `gorm:"not null;index;uniqueIndex:idx_tournament_user" json:"user_id"`
	TeamID       string `json:"team_id,omitempty"`

	Seed         int       `json:"seed" gorm:"default:0"`
	RegisteredAt time.Time `json:"registered_at" gorm:"autoCreateTime"`
}

// TournamentRound marks the lifecycle of one bracket level. All matches of a
// round complete before the next round is generated.
type TournamentRound struct {
	ID           string      `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string      `gorm:"not null;index;uniqueIndex:idx_tournament_round" json:"tournament_id"`
	Number       int         `gorm:"not null;uniqueIndex:idx_tournament_round" json:"number"`
	Status       RoundStatus `gorm:"type:varchar(16);default:'pending'" json:"status"`
}

// TournamentMatch holds up to two participant slots. A bye match is created
// already completed with the unpaired participant as winner. The winner's
// reward bundle and the loser's stat update are each their own atomic unit;
// WinnerRewardRecorded and LoserStatRecorded flip only after the respective
// grant commits, and the reconciliation worker replays unmarked ones.
type TournamentMatch struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string `gorm:"not null;index" json:"tournament_id"`
	Round        int    `gorm:"not null;index" json:"round"`
	Slot         int    `gorm:"not null" json:"slot"`

	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id,omitempty"` // empty = bye

	Status       MatchStatus `gorm:"type:varchar(16);default:'scheduled'" json:"status"`
	WinnerID     string      `json:"winner_id,omitempty"`
	LoserID      string      `json:"loser_id,omitempty"`
	Player1Score int64       `json:"player1_score" gorm:"default:0"`
	Player2Score int64       `json:"player2_score" gorm:"default:0"`
	IsBye        bool        `json:"is_bye" gorm:"default:false"`

	WinnerRewardRecorded bool       `json:"-" gorm:"default:false"`
	LoserStatRecorded    bool       `json:"-" gorm:"default:false"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`

	Timestamps
}
