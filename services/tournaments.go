package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"player-progression-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// TournamentService runs the draft → registration → active → completed state
// machine: registration with eligibility checks, bracket construction, round
// advancement as results arrive and the one-shot terminal payout.
//
// Odd fields get byes: the unpaired participant of any round receives a match
// created already completed with them as winner, so advancement treats it like
// any finished match.
type TournamentService struct {
	DB      *gorm.DB
	Ledger  *LedgerService
	Tracker *AchievementService
	Now     func() time.Time
	Rand    *rand.Rand
}

func NewTournamentService(db *gorm.DB, ledger *LedgerService, tracker *AchievementService, rng *rand.Rand) *TournamentService {
	return &TournamentService{DB: db, Ledger: ledger, Tracker: tracker, Now: time.Now, Rand: rng}
}

// CreateTournament publishes a draft bracket definition.
func (s *TournamentService) CreateTournament(t *models.Tournament) error {
	if t.Name == "" {
		return fmt.Errorf("tournament name required")
	}
	if t.MinParticipants < 2 {
		t.MinParticipants = 2
	}
	if t.MaxParticipants > 0 && t.MaxParticipants < t.MinParticipants {
		return fmt.Errorf("max participants %d below minimum %d", t.MaxParticipants, t.MinParticipants)
	}
	if t.TeamSize < 1 {
		t.TeamSize = 1
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Slug == "" {
		t.Slug = slug.Make(t.Name)
	}
	t.Status = models.TournamentDraft
	return s.DB.Create(t).Error
}

// OpenRegistration moves a draft tournament into the registration window.
func (s *TournamentService) OpenRegistration(tournamentID string) (bool, error) {
	res := s.DB.Model(&models.Tournament{}).
		Where("id = ? AND status = ?", tournamentID, models.TournamentDraft).
		Update("status", models.TournamentRegistration)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Register adds a user to the field. False when the tournament is not taking
// registrations, the user fails eligibility (level floor plus every required
// achievement), the field is full, or the user is already in.
func (s *TournamentService) Register(externalUserID, tournamentID, teamID string) (bool, error) {
	t, err := s.getTournament(tournamentID)
	if err != nil {
		return false, err
	}
	if t.Status != models.TournamentRegistration {
		return false, nil
	}

	prog, err := s.Ledger.EnsureProgression(externalUserID)
	if err != nil {
		return false, err
	}
	if prog.Level < t.MinLevel {
		return false, nil
	}
	if len(t.RequiredAchievements) > 0 {
		held, err := s.holdsAll(prog, t.RequiredAchievements)
		if err != nil {
			return false, err
		}
		if !held {
			return false, nil
		}
	}

	var count int64
	if err := s.DB.Model(&models.TournamentParticipant{}).
		Where("tournament_id = ?", tournamentID).Count(&count).Error; err != nil {
		return false, err
	}
	if t.MaxParticipants > 0 && count >= int64(t.MaxParticipants) {
		return false, nil
	}

	participant := models.TournamentParticipant{
		ID:           uuid.NewString(),
		TournamentID: tournamentID,
		UserID:       externalUserID,
		TeamID:       teamID,
	}
	if err := s.DB.Create(&participant).Error; err != nil {
		// Unique index: already registered.
		var existing models.TournamentParticipant
		if lookupErr := s.DB.Where("tournament_id = ? AND user_id = ?", tournamentID, externalUserID).
			First(&existing).Error; lookupErr == nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// holdsAll checks the user completed every listed achievement code at least
// once (repeatables count while completed or previously completed).
func (s *TournamentService) holdsAll(prog *models.UserProgression, codes []string) (bool, error) {
	var achievements []models.Achievement
	if err := s.DB.Where("code IN ?", codes).Find(&achievements).Error; err != nil {
		return false, err
	}
	byCode := make(map[string]models.Achievement, len(achievements))
	for _, a := range achievements {
		byCode[a.Code] = a
	}
	for _, code := range codes {
		a, ok := byCode[code]
		if !ok {
			return false, fmt.Errorf("%w: achievement %s", ErrNotFound, code)
		}
		state := prog.Achievements[a.ID]
		if state == nil || state.TimesCompleted < 1 {
			return false, nil
		}
	}
	return true, nil
}

// Start locks the field: shuffles participants, assigns seeds in shuffled
// order, sizes the bracket and generates round one. False when the tournament
// is not in registration or the field is too small.
func (s *TournamentService) Start(tournamentID string) (bool, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		var started, retry bool
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var t models.Tournament
			if err := tx.Where("id = ?", tournamentID).First(&t).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: tournament %s", ErrNotFound, tournamentID)
				}
				return err
			}
			if t.Status != models.TournamentRegistration {
				return nil
			}

			var participants []models.TournamentParticipant
			if err := tx.Where("tournament_id = ?", t.ID).
				Order("registered_at ASC").Find(&participants).Error; err != nil {
				return err
			}
			if len(participants) < t.MinParticipants {
				return nil
			}

			s.Rand.Shuffle(len(participants), func(i, j int) {
				participants[i], participants[j] = participants[j], participants[i]
			})
			for i := range participants {
				participants[i].Seed = i + 1
				if err := tx.Model(&models.TournamentParticipant{}).
					Where("id = ?", participants[i].ID).
					Update("seed", participants[i].Seed).Error; err != nil {
					return err
				}
			}

			n := len(participants)
			totalRounds := int(math.Ceil(math.Log2(float64(max(n, 2)))))

			for number := 1; number <= totalRounds; number++ {
				status := models.RoundPending
				if number == 1 {
					status = models.RoundActive
				}
				round := models.TournamentRound{
					ID:           uuid.NewString(),
					TournamentID: t.ID,
					Number:       number,
					Status:       status,
				}
				if err := tx.Create(&round).Error; err != nil {
					return err
				}
			}

			entrants := make([]string, n)
			for i, p := range participants {
				entrants[i] = p.UserID
			}
			if err := s.createRoundMatches(tx, t.ID, 1, entrants); err != nil {
				return err
			}

			now := s.Now()
			res := tx.Model(&models.Tournament{}).
				Where("id = ? AND version = ?", t.ID, t.Version).
				UpdateColumns(map[string]interface{}{
					"status":        models.TournamentActive,
					"current_round": 1,
					"total_rounds":  totalRounds,
					"started_at":    now,
					"version":       t.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				retry = true
				return errRetryCAS
			}
			started = true
			return nil
		})
		if retry && errors.Is(err, errRetryCAS) {
			continue
		}
		if err != nil {
			return false, err
		}
		return started, nil
	}
	return false, ErrConflict
}

// createRoundMatches pairs entrants sequentially (0,1), (2,3), …; an odd
// trailing entrant gets a bye recorded as an already-completed match.
func (s *TournamentService) createRoundMatches(tx *gorm.DB, tournamentID string, round int, entrants []string) error {
	now := s.Now()
	slot := 0
	for i := 0; i < len(entrants); i += 2 {
		slot++
		match := models.TournamentMatch{
			ID:           uuid.NewString(),
			TournamentID: tournamentID,
			Round:        round,
			Slot:         slot,
			Player1ID:    entrants[i],
		}
		if i+1 < len(entrants) {
			match.Player2ID = entrants[i+1]
		} else {
			match.IsBye = true
			match.Status = models.MatchCompleted
			match.WinnerID = entrants[i]
			// No match played: nothing to pay, nothing to record.
			match.WinnerRewardRecorded = true
			match.LoserStatRecorded = true
			at := now
			match.CompletedAt = &at
		}
		if err := tx.Create(&match).Error; err != nil {
			return err
		}
	}
	return nil
}

// SubmitMatchResult records a finished match, pays the winner's fixed match
// bundle, updates the loser's counters as a separate atomic unit and then
// advances the bracket. False when the match is already completed or the
// tournament is not active.
func (s *TournamentService) SubmitMatchResult(matchID, winnerID, loserID string, winnerScore, loserScore int64) (bool, error) {
	var match models.TournamentMatch
	if err := s.DB.Where("id = ?", matchID).First(&match).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		return false, err
	}

	valid := (winnerID == match.Player1ID && loserID == match.Player2ID) ||
		(winnerID == match.Player2ID && loserID == match.Player1ID)
	if !valid {
		return false, fmt.Errorf("%w: winner=%s loser=%s for match %s", ErrInvalidResult, winnerID, loserID, matchID)
	}

	t, err := s.getTournament(match.TournamentID)
	if err != nil {
		return false, err
	}
	if t.Status != models.TournamentActive {
		return false, nil
	}

	p1Score, p2Score := winnerScore, loserScore
	if winnerID == match.Player2ID {
		p1Score, p2Score = loserScore, winnerScore
	}

	now := s.Now()
	// Status guard in the WHERE makes recording first-wins under races.
	res := s.DB.Model(&models.TournamentMatch{}).
		Where("id = ? AND status <> ?", matchID, models.MatchCompleted).
		UpdateColumns(map[string]interface{}{
			"status":        models.MatchCompleted,
			"winner_id":     winnerID,
			"loser_id":      loserID,
			"player1_score": p1Score,
			"player2_score": p2Score,
			"completed_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	// Winner reward and loser counters are each their own atomic unit. A lost
	// grant leaves its per-match marker unset and the reconciliation worker
	// replays it; the recorded result itself stands either way.
	winnerBundle := RewardBundle{
		XP:       t.MatchRewardXP,
		Currency: t.MatchRewardCurrency,
		Stats:    map[string]int64{"matches_played": 1, "matches_won": 1},
	}
	if _, err := s.Ledger.GrantBundle(winnerID, winnerBundle, "match_"+matchID); err == nil {
		s.DB.Model(&models.TournamentMatch{}).
			Where("id = ?", matchID).
			Update("winner_reward_recorded", true)
	} else {
		log.Printf("⚠️ Winner reward for match %s deferred to reconcile: %v", matchID, err)
	}

	loserBundle := RewardBundle{Stats: map[string]int64{"matches_played": 1, "matches_lost": 1}}
	if _, err := s.Ledger.GrantBundle(loserID, loserBundle, "match_"+matchID); err == nil {
		s.DB.Model(&models.TournamentMatch{}).
			Where("id = ?", matchID).
			Update("loser_stat_recorded", true)
	} else {
		log.Printf("⚠️ Loser stats for match %s deferred to reconcile: %v", matchID, err)
	}

	if err := s.AdvanceBracket(match.TournamentID); err != nil {
		return true, err
	}
	return true, nil
}

// AdvanceBracket closes the active round once all its matches are completed
// and either generates the next round from the winners or, after the final,
// completes the tournament and distributes terminal rewards exactly once. The
// round transition and the tournament version bump share one transaction so
// two racing submitters cannot both skip advancement.
func (s *TournamentService) AdvanceBracket(tournamentID string) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		var distribute bool
		var snapshot models.Tournament
		err := s.DB.Transaction(func(tx *gorm.DB) error {
			var t models.Tournament
			if err := tx.Where("id = ?", tournamentID).First(&t).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: tournament %s", ErrNotFound, tournamentID)
				}
				return err
			}
			if t.Status != models.TournamentActive {
				return nil
			}

			var matches []models.TournamentMatch
			if err := tx.Where("tournament_id = ? AND round = ?", t.ID, t.CurrentRound).
				Order("slot ASC").Find(&matches).Error; err != nil {
				return err
			}
			if len(matches) == 0 {
				return nil
			}
			winners := make([]string, 0, len(matches))
			for _, m := range matches {
				if m.Status != models.MatchCompleted {
					return nil
				}
				winners = append(winners, m.WinnerID)
			}

			if err := tx.Model(&models.TournamentRound{}).
				Where("tournament_id = ? AND number = ?", t.ID, t.CurrentRound).
				Update("status", models.RoundCompleted).Error; err != nil {
				return err
			}

			if t.CurrentRound < t.TotalRounds {
				next := t.CurrentRound + 1
				if err := s.createRoundMatches(tx, t.ID, next, winners); err != nil {
					return err
				}
				if err := tx.Model(&models.TournamentRound{}).
					Where("tournament_id = ? AND number = ?", t.ID, next).
					Update("status", models.RoundActive).Error; err != nil {
					return err
				}
				res := tx.Model(&models.Tournament{}).
					Where("id = ? AND version = ?", t.ID, t.Version).
					UpdateColumns(map[string]interface{}{
						"current_round": next,
						"version":       t.Version + 1,
					})
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return errRetryCAS
				}
				return nil
			}

			// Final round done: the sole winner of its single match is champion.
			champion := winners[0]
			now := s.Now()
			res := tx.Model(&models.Tournament{}).
				Where("id = ? AND version = ? AND rewards_distributed = ?", t.ID, t.Version, false).
				UpdateColumns(map[string]interface{}{
					"status":              models.TournamentCompleted,
					"winner_id":           champion,
					"rewards_distributed": true,
					"completed_at":        now,
					"version":             t.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errRetryCAS
			}
			snapshot = t
			snapshot.WinnerID = champion
			distribute = true
			return nil
		})
		if errors.Is(err, errRetryCAS) {
			continue
		}
		if err != nil {
			return err
		}
		if distribute {
			return s.distributeTerminalRewards(&snapshot)
		}
		return nil
	}
	return ErrConflict
}

// distributeTerminalRewards pays the champion bundle and the flat
// participation bundle. The rewards_distributed flag flipped under the version
// check guarantees at most one caller reaches this point per tournament.
func (s *TournamentService) distributeTerminalRewards(t *models.Tournament) error {
	var participants []models.TournamentParticipant
	if err := s.DB.Where("tournament_id = ?", t.ID).
		Order("seed ASC").Find(&participants).Error; err != nil {
		return err
	}

	championBundle := RewardBundle{
		XP:       t.ChampionRewardXP,
		Currency: t.ChampionRewardCurrency,
		Stats:    map[string]int64{"tournaments_played": 1, "tournaments_won": 1},
	}
	if _, err := s.Ledger.GrantBundle(t.WinnerID, championBundle, "tournament_"+t.ID+"_champion"); err != nil {
		return err
	}

	for _, p := range participants {
		if p.UserID == t.WinnerID {
			continue
		}
		bundle := RewardBundle{
			XP:       t.ParticipationRewardXP,
			Currency: t.ParticipationRewardCurrency,
			Stats:    map[string]int64{"tournaments_played": 1},
		}
		if _, err := s.Ledger.GrantBundle(p.UserID, bundle, "tournament_"+t.ID+"_participation"); err != nil {
			return err
		}
	}

	if s.Tracker != nil {
		if _, err := s.Tracker.CheckAchievements(t.WinnerID); err != nil {
			return err
		}
	}
	return nil
}

// Bracket is the read model of a tournament's rounds and matches.
type Bracket struct {
	Tournament models.Tournament                `json:"tournament"`
	Rounds     []models.TournamentRound         `json:"rounds"`
	Matches    map[int][]models.TournamentMatch `json:"matches"` // keyed by round number
}

// GetBracket assembles the full bracket view.
func (s *TournamentService) GetBracket(tournamentID string) (*Bracket, error) {
	t, err := s.getTournament(tournamentID)
	if err != nil {
		return nil, err
	}
	var rounds []models.TournamentRound
	if err := s.DB.Where("tournament_id = ?", t.ID).Order("number ASC").Find(&rounds).Error; err != nil {
		return nil, err
	}
	var matches []models.TournamentMatch
	if err := s.DB.Where("tournament_id = ?", t.ID).Order("round ASC, slot ASC").Find(&matches).Error; err != nil {
		return nil, err
	}
	byRound := map[int][]models.TournamentMatch{}
	for _, m := range matches {
		byRound[m.Round] = append(byRound[m.Round], m)
	}
	return &Bracket{Tournament: *t, Rounds: rounds, Matches: byRound}, nil
}

// ListTournaments returns the catalog, newest first.
func (s *TournamentService) ListTournaments() ([]models.Tournament, error) {
	var tournaments []models.Tournament
	err := s.DB.Order("created_at DESC").Find(&tournaments).Error
	return tournaments, err
}

func (s *TournamentService) getTournament(tournamentID string) (*models.Tournament, error) {
	var t models.Tournament
	if err := s.DB.Where("id = ?", tournamentID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tournament %s", ErrNotFound, tournamentID)
		}
		return nil, err
	}
	return &t, nil
}
