// services/scheduler.go
package services

import (
	"log"
	"time"

	"matatena-server/models"

	"github.com/go-co-op/gocron/v2"
)

// StartSweeper runs the stale-match sweep on a timer. Matches that never
// got a guest within ttl are deleted; joined matches are kept forever as
// history.
func (s *MatchService) StartSweeper(ttl time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(func() {
			s.sweepStale(ttl)
		}),
	)
}

func (s *MatchService) sweepStale(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)
	res := s.DB.Where("guest_id IS NULL AND started_at < ?", cutoff).Delete(&models.Match{})
	if res.Error != nil {
		log.Printf("[Sweeper] DB error: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("🧹 Swept %d stale unjoined matches", res.RowsAffected)
	}
}
