package ayon

import (
	"context"
	"fmt"
	"time"
)

// PollOptions controls how long a waiter polls the server
type PollOptions struct {
	Tries    int
	Interval time.Duration
	// InitialDelay is slept once before the first poll
	InitialDelay time.Duration
}

// DefaultPollOptions polls ten times, six seconds apart
func DefaultPollOptions() PollOptions {
	return PollOptions{Tries: 10, Interval: 6 * time.Second}
}

func (p PollOptions) withDefaults() PollOptions {
	d := DefaultPollOptions()
	if p.Tries <= 0 {
		p.Tries = d.Tries
	}
	if p.Interval <= 0 {
		p.Interval = d.Interval
	}
	return p
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaitForEvent polls the event until its status is finished. Any request
// failure aborts the wait.
func (c *Client) WaitForEvent(ctx context.Context, eventID string, opts PollOptions) (*Event, error) {
	opts = opts.withDefaults()
	if err := sleep(ctx, opts.InitialDelay); err != nil {
		return nil, err
	}

	var ev *Event
	for try := 0; try < opts.Tries; try++ {
		var err error
		ev, err = c.Event(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("failed to get event %s: %w", eventID, err)
		}
		if ev.Finished() {
			return ev, nil
		}
		c.logger.Debug("event not finished", "event", eventID, "status", ev.Status, "try", try+1)
		if err := sleep(ctx, opts.Interval); err != nil {
			return nil, err
		}
	}
	return ev, fmt.Errorf("%w: event %s is '%s' after %d tries", ErrEventNotFinished, eventID, ev.Status, opts.Tries)
}

// WaitForRestart polls /api/info until the server reports a version.
// Errors while the server is down are ignored.
func (c *Client) WaitForRestart(ctx context.Context, opts PollOptions) error {
	opts = opts.withDefaults()
	if err := sleep(ctx, opts.InitialDelay); err != nil {
		return err
	}

	for try := 0; try < opts.Tries; try++ {
		info, err := c.Info(ctx)
		if err == nil && info.Version != "" {
			c.logger.Debug("server is back", "version", info.Version, "try", try+1)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := sleep(ctx, opts.Interval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %s", ErrServerNotRestarted, time.Duration(opts.Tries)*opts.Interval)
}

// RestartAndWait restarts the server and waits for it to come back
func (c *Client) RestartAndWait(ctx context.Context, opts PollOptions) error {
	if err := c.Restart(ctx); err != nil {
		return fmt.Errorf("failed to restart server: %w", err)
	}
	return c.WaitForRestart(ctx, opts)
}
