package provision

import (
	"context"
	"fmt"
	"time"
)

// Polling windows for resources that transition asynchronously. The
// control-plane APIs are eventually consistent, so each transition is
// watched at a fixed interval with a hard cap.
const (
	agentPollInterval = 10 * time.Second
	agentPollTimeout  = 5 * time.Minute

	ingestionPollInterval = 30 * time.Second
	ingestionPollTimeout  = 10 * time.Minute

	collectionPollInterval = 30 * time.Second
	collectionPollTimeout  = 5 * time.Minute

	tablePollInterval = 5 * time.Second
	tablePollTimeout  = 2 * time.Minute
)

// waitFor polls check at a fixed interval until it reports done or the
// window closes. check runs once immediately so fast transitions do not
// pay a full interval. A non-nil error from check aborts the wait.
func waitFor(ctx context.Context, what string, interval, timeout time.Duration, check func(context.Context) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timed out after %s waiting for %s", timeout, what)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// sleepCtx pauses for d unless ctx is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
