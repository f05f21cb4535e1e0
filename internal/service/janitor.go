package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Purger is a collection whose soft-deleted entities can be reclaimed.
type Purger interface {
	Name() string
	Purge(before time.Time) int
}

// PurgeDeleted reclaims entities soft-deleted more than maxAge ago, every
// interval, until ctx is done. A non-positive maxAge or interval disables it.
func PurgeDeleted(ctx context.Context, interval, maxAge time.Duration, targets ...Purger) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cutoff := now.Add(-maxAge)
			for _, t := range targets {
				if n := t.Purge(cutoff); n > 0 {
					log.Info().Str("resource", t.Name()).Int("purged", n).Msg("reclaimed soft-deleted entities")
				}
			}
		}
	}
}
