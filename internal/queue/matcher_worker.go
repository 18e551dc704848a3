package queue

import (
	"context"
	"log"
	"time"

	"github.com/chainduel/backend/internal/config"
)

// StartMatcherWorker runs the background pairing loop. The immediate attempt
// on enqueue handles the common case; this worker picks up entries whose
// partner arrived during a lost race or after a store hiccup.
func StartMatcherWorker(ctx context.Context, svc *Service, cfg *config.Config) {
	interval := time.Duration(cfg.MatcherPollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[MATCHER] Starting matcher worker (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[MATCHER] Worker stopped")
			return
		case <-ticker.C:
			svc.matchAllTiers(ctx)
		}
	}
}

func (s *Service) matchAllTiers(ctx context.Context) {
	var tiers []int
	err := s.db.SelectContext(ctx, &tiers,
		`SELECT DISTINCT bet_tier
		 FROM matchmaking_queue
		 WHERE status = 'waiting' AND expires_at > now()
		 ORDER BY bet_tier`)
	if err != nil {
		log.Printf("[MATCHER] Failed to list tiers with waiting entries: %v", err)
		return
	}

	for _, tier := range tiers {
		// Pair until the tier is exhausted.
		for s.tryMatchTier(ctx, tier) {
		}
	}
}
