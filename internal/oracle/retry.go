package oracle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	defaultRetryBackoff = 100 * time.Millisecond
	maxRetryBackoff     = 10 * time.Second
)

// readWithRetry calls read until it succeeds, the attempts run out or ctx ends.
// The backoff doubles per attempt up to maxRetryBackoff.
func (c *FeedCache) readWithRetry(ctx context.Context, feed Feed, read func(context.Context) error) error {
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	for attempt := 0; ; attempt++ {
		err := read(ctx)
		if err == nil || attempt >= retries {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.logger.Debug("retrying feed read",
			zap.String("pair", string(feed.Base)+"/"+string(feed.Quote)),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}
}
