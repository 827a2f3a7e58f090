package directory

import (
	"context"
	"time"
)

// SetSleep replaces the pause between batches.
func (s *Syncer) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}
