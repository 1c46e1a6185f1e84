package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrStillProcessing means polling gave up before the job finished. The job itself
// may still complete; callers should show it as in progress, not failed.
var ErrStillProcessing = errors.New("job still processing")

type Terminal interface {
	IsTerminal() bool
}

type PollConfig struct {
	Interval time.Duration
	Attempts int
}

// DefaultPollConfig checks every 5s for up to two minutes.
var DefaultPollConfig = PollConfig{Interval: 5 * time.Second, Attempts: 24}

// Poll calls fetch until it reports a terminal state or the attempts run out. On
// exhaustion it returns the last observed state with ErrStillProcessing.
func Poll[T Terminal](ctx context.Context, fetch func(context.Context) (T, error), cfg PollConfig) (T, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}

	var last T
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		state, err := fetch(ctx)
		if err != nil {
			return last, err
		}
		last = state
		if state.IsTerminal() {
			return state, nil
		}
		if attempt == cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}
	return last, ErrStillProcessing
}
