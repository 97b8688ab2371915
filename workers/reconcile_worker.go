// workers/reconcile_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"player-progression-system/models"
	"player-progression-system/services"

	"gorm.io/gorm"
)

// MatchRewardReconcileWorker repairs partially-applied match results. A match
// result lands as three atomic units: the match row itself, the winner's
// reward bundle and the loser's stat counters. When either grant is lost to a
// crash or a version conflict, the match row keeps its marker
// (winner_reward_recorded / loser_stat_recorded) unset; this worker replays
// the missing grants until they stick.
type MatchRewardReconcileWorker struct {
	db       *gorm.DB
	ledger   *services.LedgerService
	interval time.Duration
	batch    int
}

func NewMatchRewardReconcileWorker(db *gorm.DB, ledger *services.LedgerService) *MatchRewardReconcileWorker {
	return &MatchRewardReconcileWorker{
		db:       db,
		ledger:   ledger,
		interval: 1 * time.Minute,
		batch:    100,
	}
}

func (w *MatchRewardReconcileWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Match Reward Reconcile Worker…")
	go w.run(ctx)
}

func (w *MatchRewardReconcileWorker) run(ctx context.Context) {
	// Catch up on anything left behind before the ticker starts.
	if err := w.SweepOnce(ctx); err != nil {
		log.Printf("⚠️ Initial reconcile sweep failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SweepOnce(ctx); err != nil {
				log.Printf("❌ Reconcile sweep failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Match Reward Reconcile Worker stopped")
			return
		}
	}
}

// SweepOnce replays the winner reward and loser stat grants for completed
// matches whose markers never flipped. Each marker flips only after its grant
// commits, so delivery is at-least-once: a crash between grant and marker can
// double a grant in that narrow window, which is acceptable for repair
// traffic.
func (w *MatchRewardReconcileWorker) SweepOnce(ctx context.Context) error {
	var matches []models.TournamentMatch
	err := w.db.WithContext(ctx).
		Where("status = ? AND is_bye = ? AND (winner_reward_recorded = ? OR loser_stat_recorded = ?)",
			models.MatchCompleted, false, false, false).
		Limit(w.batch).
		Find(&matches).Error
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	log.Printf("📥 Reconciling %d match(es) with missing grants…", len(matches))

	var repaired int
	for _, m := range matches {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ok := true
		if !m.WinnerRewardRecorded && m.WinnerID != "" {
			ok = w.replayWinnerReward(&m) && ok
		}
		if !m.LoserStatRecorded && m.LoserID != "" {
			ok = w.replayLoserStats(&m) && ok
		}
		if ok {
			repaired++
		}
	}

	log.Printf("✅ Reconciled %d/%d match(es)", repaired, len(matches))
	return nil
}

func (w *MatchRewardReconcileWorker) replayWinnerReward(m *models.TournamentMatch) bool {
	var tournament models.Tournament
	if err := w.db.Where("id = ?", m.TournamentID).First(&tournament).Error; err != nil {
		log.Printf("⚠️ Tournament %s missing for match %s: %v", m.TournamentID, m.ID, err)
		return false
	}
	bundle := services.RewardBundle{
		XP:       tournament.MatchRewardXP,
		Currency: tournament.MatchRewardCurrency,
		Stats:    map[string]int64{"matches_played": 1, "matches_won": 1},
	}
	if _, err := w.ledger.GrantBundle(m.WinnerID, bundle, "match_"+m.ID); err != nil {
		log.Printf("⚠️ Failed to replay winner reward for match %s: %v", m.ID, err)
		return false
	}
	if err := w.db.Model(&models.TournamentMatch{}).
		Where("id = ?", m.ID).
		Update("winner_reward_recorded", true).Error; err != nil {
		log.Printf("⚠️ Failed to mark winner reward for match %s: %v", m.ID, err)
		return false
	}
	return true
}

func (w *MatchRewardReconcileWorker) replayLoserStats(m *models.TournamentMatch) bool {
	bundle := services.RewardBundle{
		Stats: map[string]int64{"matches_played": 1, "matches_lost": 1},
	}
	if _, err := w.ledger.GrantBundle(m.LoserID, bundle, "match_"+m.ID); err != nil {
		log.Printf("⚠️ Failed to replay loser stats for match %s: %v", m.ID, err)
		return false
	}
	if err := w.db.Model(&models.TournamentMatch{}).
		Where("id = ?", m.ID).
		Update("loser_stat_recorded", true).Error; err != nil {
		log.Printf("⚠️ Failed to mark loser stats for match %s: %v", m.ID, err)
		return false
	}
	return true
}
