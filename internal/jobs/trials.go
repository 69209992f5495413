package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// TrialExpirer reverts elapsed trials and reports how many were reverted.
type TrialExpirer interface {
	ExpireTrials() int
}

// StartTrialChecker runs the expiry sweep immediately and then on every tick
// until ctx is cancelled.
func StartTrialChecker(ctx context.Context, expirer TrialExpirer, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		sweep(expirer)
		for {
			select {
			case <-ticker.C:
				sweep(expirer)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("trial checker started")
}

func sweep(expirer TrialExpirer) {
	if n := expirer.ExpireTrials(); n > 0 {
		log.Info().Int("reverted", n).Msg("expired trials reverted to free")
	}
}
