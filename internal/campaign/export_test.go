package campaign

import (
	"context"
	"time"
)

// SetSleep replaces the pause used between cycles and passes
func SetSleep(r *Runner, fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// SetClock replaces the clock used for cycle report timestamps
func SetClock(r *Runner, now func() time.Time) {
	r.now = now
}
