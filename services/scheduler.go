// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartInflationScheduler runs the supply adjustment sweep hourly. Each
// currency enforces its own 24h window, so the hourly cadence just keeps the
// adjustment close to the window boundary.
func (s *ExchangeService) StartInflationScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			if err := s.SweepInflation(); err != nil {
				log.Printf("[Scheduler] Inflation sweep failed: %v", err)
				return
			}
			log.Printf("✅ Inflation sweep completed")
		}),
	)
}

// StartExpiryScheduler deactivates challenge instances whose window has
// passed, every minute.
func (s *ChallengeService) StartExpiryScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			n, err := s.DeactivateExpired()
			if err != nil {
				log.Printf("[Scheduler] Challenge expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("✅ Deactivated %d expired challenges", n)
			}
		}),
	)
}
